package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hermod-app/hermod/internal/config"
	"github.com/hermod-app/hermod/internal/metrics"
)

const (
	DefaultTokenTTL    = time.Hour
	minJWTSecretLength = 32
)

// Claims is the token payload: sub, iat and exp only.
type Claims struct {
	jwt.RegisteredClaims
}

// AccountID parses the subject back into an account id.
func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not an account id", ErrTokenInvalid)
	}
	return id, nil
}

// TokenService issues and verifies HS256 bearer tokens. It holds no
// per-token state; expiry is the only way a token stops working.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTokenService(cfg config.AuthConfig, m *metrics.Metrics) (*TokenService, error) {
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("%w: JWT_SECRET must be at least %d bytes", ErrMisconfigured, minJWTSecretLength)
	}

	ttl := DefaultTokenTTL
	if raw := strings.TrimSpace(cfg.JWTTTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: invalid JWT_TTL", ErrMisconfigured)
		}
		ttl = parsed
	}

	return &TokenService{
		secret:  []byte(cfg.JWTSecret),
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}, nil
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for accountID with the configured TTL.
func (s *TokenService) Issue(accountID uuid.UUID) (string, error) {
	return s.IssueWithTTL(accountID, s.ttl)
}

func (s *TokenService) IssueWithTTL(accountID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: token ttl must be positive", ErrInvalidInput)
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt(now, ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", unexpected("sign token", err)
	}
	return signed, nil
}

// expiresAt rounds now+ttl up to a whole second. NumericDate truncates,
// so rounding down would cut a token's lifetime below ttl.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// Verify checks framing, signature and expiry. Expired tokens wrap
// ErrTokenExpired; everything else wraps ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.metrics.ObserveTokenVerification(metrics.TokenExpired)
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		s.metrics.ObserveTokenVerification(metrics.TokenInvalid)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if _, err := claims.AccountID(); err != nil {
		s.metrics.ObserveTokenVerification(metrics.TokenInvalid)
		return nil, err
	}

	s.metrics.ObserveTokenVerification(metrics.TokenOK)
	return claims, nil
}
