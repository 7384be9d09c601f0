package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hermod-app/hermod/internal/db"
	"github.com/hermod-app/hermod/internal/model"
)

// memStore is an in-memory service.AccountStore.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
	resets   map[uuid.UUID]model.ForgottenPasswordRequest
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]model.Account),
		resets:   make(map[uuid.UUID]model.ForgottenPasswordRequest),
	}
}

func (s *memStore) CreateAccount(_ context.Context, acc *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc.Username = strings.ToLower(acc.Username)
	for _, existing := range s.accounts {
		if existing.Username == acc.Username {
			return fmt.Errorf("insert account %q: %w", acc.Username, db.ErrDuplicate)
		}
	}
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = acc.CreatedAt
	s.accounts[acc.ID] = *acc
	return nil
}

func (s *memStore) GetAccountByUsername(_ context.Context, username string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.Username == strings.ToLower(username) {
			return &acc, nil
		}
	}
	return nil, fmt.Errorf("select account by username: %w", db.ErrNotFound)
}

func (s *memStore) GetAccountByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("select account %s: %w", id, db.ErrNotFound)
	}
	return &acc, nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("update password for %s: %w", id, db.ErrNotFound)
	}
	acc.PasswordHash = hash
	s.accounts[id] = acc
	return nil
}

func (s *memStore) CreateForgottenPasswordRequest(_ context.Context, req *model.ForgottenPasswordRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[req.ID] = *req
	return nil
}

func (s *memStore) ConsumeForgottenPasswordRequest(_ context.Context, id uuid.UUID) (*model.ForgottenPasswordRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.resets[id]
	if !ok {
		return nil, fmt.Errorf("consume forgotten password request: %w", db.ErrNotFound)
	}
	delete(s.resets, id)
	return &req, nil
}

func (s *memStore) DeleteForgottenPasswordRequestsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, req := range s.resets {
		if req.CreatedAt.Before(cutoff) {
			delete(s.resets, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) deleteAccount(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acc := range s.accounts {
		if acc.Username == username {
			delete(s.accounts, id)
		}
	}
}

// captureMailer records reset emails.
type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) IsConfigured() bool { return true }

func (m *captureMailer) SendEmail(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *captureMailer) bodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}
