package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Account is a registered user. PasswordHash is a self-describing PHC string
// and is never serialized.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        *string   `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// String omits the hash so an Account can be logged safely.
func (a Account) String() string {
	return fmt.Sprintf("Account{id=%s username=%s}", a.ID, a.Username)
}

// ForgottenPasswordRequest binds a reset link to an account.
type ForgottenPasswordRequest struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	CreatedAt time.Time
}

type RegisterRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Email    string `form:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password"`
	NewPassword     string `form:"new_password"`
}

type ForgotPasswordRequest struct {
	Username string `json:"username" form:"username"`
}

type ResetPasswordRequest struct {
	ResetID     string `json:"reset_id" form:"reset_id"`
	NewPassword string `json:"new_password" form:"new_password"`
}
