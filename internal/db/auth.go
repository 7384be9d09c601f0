package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hermod-app/hermod/internal/model"
)

const accountColumns = `id, username, password_hash, email, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var acc model.Account
	err := row.Scan(
		&acc.ID,
		&acc.Username,
		&acc.PasswordHash,
		&acc.Email,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

// CreateAccount inserts acc and fills in the timestamps. The username is
// stored lowercased.
func (db *Postgres) CreateAccount(ctx context.Context, acc *model.Account) error {
	query := `
		INSERT INTO account (id, username, password_hash, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	acc.Username = strings.ToLower(acc.Username)
	err := db.Pool.QueryRow(ctx, query, acc.ID, acc.Username, acc.PasswordHash, acc.Email).Scan(
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account %q: %w", acc.Username, translate(err))
	}
	return nil
}

func (db *Postgres) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE username = $1`
	acc, err := scanAccount(db.Pool.QueryRow(ctx, query, strings.ToLower(username)))
	if err != nil {
		return nil, fmt.Errorf("select account by username: %w", err)
	}
	return acc, nil
}

func (db *Postgres) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE id = $1`
	acc, err := scanAccount(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("select account %s: %w", id, err)
	}
	return acc, nil
}

func (db *Postgres) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE account
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password for %s: %w", id, ErrNotFound)
	}
	return nil
}

func (db *Postgres) CreateForgottenPasswordRequest(ctx context.Context, req *model.ForgottenPasswordRequest) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO forgotten_password_request (id, account_id, created_at)
		VALUES ($1, $2, $3)
	`, req.ID, req.AccountID, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert forgotten password request: %w", translate(err))
	}
	return nil
}

// ConsumeForgottenPasswordRequest deletes the request and returns it, so a
// reset link can be used exactly once even under concurrent submissions.
func (db *Postgres) ConsumeForgottenPasswordRequest(ctx context.Context, id uuid.UUID) (*model.ForgottenPasswordRequest, error) {
	var req model.ForgottenPasswordRequest
	err := db.Pool.QueryRow(ctx, `
		DELETE FROM forgotten_password_request
		WHERE id = $1
		RETURNING id, account_id, created_at
	`, id).Scan(&req.ID, &req.AccountID, &req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("consume forgotten password request: %w", translate(err))
	}
	return &req, nil
}

// DeleteForgottenPasswordRequestsBefore drops requests created before cutoff.
func (db *Postgres) DeleteForgottenPasswordRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM forgotten_password_request WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired forgotten password requests: %w", err)
	}
	return tag.RowsAffected(), nil
}
