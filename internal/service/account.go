package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hermod-app/hermod/internal/config"
	"github.com/hermod-app/hermod/internal/db"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/hermod-app/hermod/internal/template"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	maxUsernameLength      = 64
	defaultResetRequestTTL = time.Hour
	mailTimeout            = 30 * time.Second
	maxPendingResets       = 64
)

type AccountStore interface {
	CredentialStore
	AccountLookup
	CreateAccount(ctx context.Context, acc *model.Account) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
	CreateForgottenPasswordRequest(ctx context.Context, req *model.ForgottenPasswordRequest) error
	ConsumeForgottenPasswordRequest(ctx context.Context, id uuid.UUID) (*model.ForgottenPasswordRequest, error)
	DeleteForgottenPasswordRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailer delivers password reset links.
type Mailer interface {
	IsConfigured() bool
	SendEmail(ctx context.Context, to, subject, body string) error
}

// AccountService owns the account lifecycle around authentication:
// registration, password change and the forgot/reset flow.
type AccountService struct {
	store    AccountStore
	hashes   *HashPool
	mailer   Mailer
	resetTTL time.Duration
	resetURL string
	mailBody string
	logger   logrus.FieldLogger
	now      func() time.Time

	resetSlots *semaphore.Weighted
	pending    sync.WaitGroup
}

func NewAccountService(store AccountStore, hashes *HashPool, mailer Mailer, cfg config.AuthConfig, logger logrus.FieldLogger) (*AccountService, error) {
	resetTTL := defaultResetRequestTTL
	if raw := strings.TrimSpace(cfg.ResetRequestTTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: invalid RESET_REQUEST_TTL", ErrMisconfigured)
		}
		resetTTL = parsed
	}
	if _, err := url.Parse(cfg.ResetURL); err != nil {
		return nil, fmt.Errorf("%w: invalid RESET_URL", ErrMisconfigured)
	}

	return &AccountService{
		store:    store,
		hashes:   hashes,
		mailer:   mailer,
		resetTTL: resetTTL,
		resetURL: cfg.ResetURL,
		mailBody: cfg.ResetEmailTemplate,
		logger:   logger,
		now:      time.Now,

		resetSlots: semaphore.NewWeighted(maxPendingResets),
	}, nil
}

func (s *AccountService) Register(ctx context.Context, username, password, email string) (*model.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	hash, err := s.hashes.Hash(ctx, password)
	if err != nil {
		return nil, unexpected("hash password", err)
	}

	acc := &model.Account{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
	}
	if email = strings.TrimSpace(email); email != "" {
		acc.Email = &email
	}

	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("register %q: %w", username, ErrConflict)
		}
		return nil, unexpected("register account", err)
	}

	s.logger.WithFields(logrus.Fields{"account_id": acc.ID, "username": acc.Username}).Info("registered account")
	return acc, nil
}

// ChangePassword replaces the hash of an authenticated account after
// checking its current password.
func (s *AccountService) ChangePassword(ctx context.Context, acc *model.Account, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}

	ok, err := s.hashes.Verify(ctx, acc.PasswordHash, current)
	if err != nil {
		return unexpected("verify password", err)
	}
	if !ok {
		return fmt.Errorf("change password for %s: %w", acc.ID, ErrInvalidCredentials)
	}

	hash, err := s.hashes.Hash(ctx, next)
	if err != nil {
		return unexpected("hash password", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, acc.ID, hash); err != nil {
		return unexpected("update password", err)
	}

	s.logger.WithField("account_id", acc.ID).Info("password changed")
	return nil
}

// ForgotPassword starts a reset for username in the background and returns
// at once. The caller learns nothing about whether the account exists.
// Requests beyond maxPendingResets in flight are logged and dropped.
func (s *AccountService) ForgotPassword(ctx context.Context, username string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	if !s.resetSlots.TryAcquire(1) {
		s.logger.WithField("username", username).Warn("too many pending password resets, request dropped")
		return nil
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.resetSlots.Release(1)
		defer cancel()
		if err := s.sendResetLink(bg, username); err != nil {
			s.logger.WithError(err).WithField("username", username).Error("failed to send password reset")
		}
	}()
	return nil
}

func (s *AccountService) sendResetLink(ctx context.Context, username string) error {
	log := s.logger.WithField("username", username)

	acc, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			log.Debug("password reset requested for unknown account")
			return nil
		}
		return err
	}
	if acc.Email == nil || *acc.Email == "" {
		log.Debug("password reset requested for account without email")
		return nil
	}

	req := &model.ForgottenPasswordRequest{
		ID:        uuid.New(),
		AccountID: acc.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateForgottenPasswordRequest(ctx, req); err != nil {
		return err
	}

	if s.mailer == nil || !s.mailer.IsConfigured() {
		log.WithField("account_id", acc.ID).Debug("mailer not configured, reset link not sent")
		return nil
	}

	link, err := s.resetLink(req.ID)
	if err != nil {
		return err
	}
	body := template.RenderBody(s.mailBody, template.ResetData{
		Username:  acc.Username,
		Link:      link,
		ExpiresIn: s.resetTTL,
	})
	if err := s.mailer.SendEmail(ctx, *acc.Email, template.DefaultResetSubject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	log.WithField("account_id", acc.ID).Info("password reset email sent")
	return nil
}

func (s *AccountService) resetLink(id uuid.UUID) (string, error) {
	u, err := url.Parse(s.resetURL)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("id", id.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResetPassword consumes a reset request and sets a new password. Unknown,
// consumed and expired requests are indistinguishable to the caller.
func (s *AccountService) ResetPassword(ctx context.Context, resetID, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}

	// Hash before touching the store so every outcome costs one KDF run.
	hash, err := s.hashes.Hash(ctx, newPassword)
	if err != nil {
		return unexpected("hash password", err)
	}

	id, err := uuid.Parse(strings.TrimSpace(resetID))
	if err != nil {
		return fmt.Errorf("%w: invalid reset request", ErrInvalidInput)
	}

	req, err := s.store.ConsumeForgottenPasswordRequest(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: invalid reset request", ErrInvalidInput)
		}
		return unexpected("consume reset request", err)
	}
	if s.now().After(req.CreatedAt.Add(s.resetTTL)) {
		s.logger.WithField("account_id", req.AccountID).Info("expired password reset request used")
		return fmt.Errorf("%w: invalid reset request", ErrInvalidInput)
	}

	if err := s.store.UpdatePasswordHash(ctx, req.AccountID, hash); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: invalid reset request", ErrInvalidInput)
		}
		return unexpected("update password", err)
	}

	s.logger.WithField("account_id", req.AccountID).Info("password reset")
	return nil
}

// PruneResetRequests deletes reset requests that can no longer be used.
func (s *AccountService) PruneResetRequests(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteForgottenPasswordRequestsBefore(ctx, s.now().Add(-s.resetTTL))
	if err != nil {
		return 0, unexpected("prune reset requests", err)
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("pruned expired password reset requests")
	}
	return n, nil
}

func (s *AccountService) ResetRequestTTL() time.Duration {
	return s.resetTTL
}

// Wait blocks until background reset mails have finished.
func (s *AccountService) Wait() {
	s.pending.Wait()
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case len(username) > maxUsernameLength:
		return fmt.Errorf("%w: username is longer than %d bytes", ErrInvalidInput, maxUsernameLength)
	case strings.Contains(username, ":"):
		// Basic auth splits on the first colon.
		return fmt.Errorf("%w: username must not contain ':'", ErrInvalidInput)
	}
	return nil
}
