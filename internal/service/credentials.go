package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hermod-app/hermod/internal/db"
	"github.com/hermod-app/hermod/internal/metrics"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/sirupsen/logrus"
)

// dummyPasswordHash is verified whenever there is no real hash to check, so
// an unknown username costs the same KDF work as a wrong password.
const dummyPasswordHash = "$argon2id$v=19$m=15000,t=2,p=1$gZiV/M1gPc22ElAH/Jh1Hw$CWOrkoo7oJBQ/iyh7uJ0LO2aLEfrHwTWllSAxT0zRno"

// CredentialStore looks up stored credentials by username. A miss must wrap
// db.ErrNotFound.
type CredentialStore interface {
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}

type CredentialValidator struct {
	store   CredentialStore
	hashes  *HashPool
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewCredentialValidator(store CredentialStore, hashes *HashPool, m *metrics.Metrics, logger logrus.FieldLogger) *CredentialValidator {
	return &CredentialValidator{
		store:   store,
		hashes:  hashes,
		metrics: m,
		logger:  logger,
	}
}

// Validate authenticates a request carrying Basic credentials. It returns
// an error wrapping ErrInvalidHeaders, ErrInvalidCredentials or an
// *UnexpectedError.
func (v *CredentialValidator) Validate(ctx context.Context, header http.Header) (*model.Account, error) {
	creds, err := ExtractBasicAuth(header)
	if err != nil {
		// Burn the same KDF time as a real attempt before rejecting.
		if _, verr := v.hashes.Verify(ctx, dummyPasswordHash, ""); verr != nil {
			v.logger.WithError(verr).Warn("dummy hash verification failed")
		}
		v.metrics.ObserveAuthAttempt(metrics.OutcomeInvalidHeaders)
		return nil, fmt.Errorf("validate credentials: %w", err)
	}
	return v.ValidateCredentials(ctx, creds)
}

// ValidateCredentials checks already extracted credentials.
func (v *CredentialValidator) ValidateCredentials(ctx context.Context, creds Credentials) (*model.Account, error) {
	log := v.logger.WithField("username", creds.Username)

	account, err := v.store.GetAccountByUsername(ctx, creds.Username)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		v.metrics.ObserveAuthAttempt(metrics.OutcomeError)
		return nil, unexpected("look up credentials", err)
	}

	expected := dummyPasswordHash
	if account != nil {
		expected = account.PasswordHash
	}

	ok, err := v.hashes.Verify(ctx, expected, creds.Password)
	if err != nil {
		v.metrics.ObserveAuthAttempt(metrics.OutcomeError)
		return nil, unexpected("verify password", err)
	}

	if account == nil || !ok {
		v.metrics.ObserveAuthAttempt(metrics.OutcomeInvalidCredentials)
		log.Debug("rejected credentials")
		return nil, fmt.Errorf("validate credentials for %q: %w", creds.Username, ErrInvalidCredentials)
	}

	v.metrics.ObserveAuthAttempt(metrics.OutcomeAuthenticated)
	log.WithField("account_id", account.ID).Debug("authenticated")
	return account, nil
}
