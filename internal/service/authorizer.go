package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hermod-app/hermod/internal/db"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/sirupsen/logrus"
)

// Authenticator resolves the account a request acts as.
type Authenticator interface {
	Authenticate(ctx context.Context, header http.Header) (*model.Account, error)
}

// AccountLookup resolves a token subject. A miss must wrap db.ErrNotFound.
type AccountLookup interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
}

// RequestAuthorizer is the bearer-token Authenticator.
type RequestAuthorizer struct {
	tokens   *TokenService
	accounts AccountLookup
	logger   logrus.FieldLogger
}

var _ Authenticator = (*RequestAuthorizer)(nil)

func NewRequestAuthorizer(tokens *TokenService, accounts AccountLookup, logger logrus.FieldLogger) *RequestAuthorizer {
	return &RequestAuthorizer{
		tokens:   tokens,
		accounts: accounts,
		logger:   logger,
	}
}

// Authenticate reads the Authorization header as a raw JWT, optionally
// prefixed with "Bearer ". Every token or lookup failure wraps
// ErrUnauthorized; only store faults are unexpected.
func (a *RequestAuthorizer) Authenticate(ctx context.Context, header http.Header) (*model.Account, error) {
	token := bearerToken(header.Get("Authorization"))
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		a.logger.WithError(err).Debug("rejected bearer token")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	id, err := claims.AccountID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	account, err := a.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			a.logger.WithField("account_id", id).Info("token subject no longer exists")
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrAccountMissing)
		}
		return nil, unexpected("resolve token subject", err)
	}
	return account, nil
}

func bearerToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "Bearer" {
		return ""
	}
	if rest, ok := strings.CutPrefix(value, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return value
}
