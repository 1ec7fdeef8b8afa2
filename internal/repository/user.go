package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrDuplicateEmail when the
	// (case-normalized) email is already taken.
	Create(ctx context.Context, user *domain.User) error

	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// UpdatePassword swaps the password hash and stamps password_changed_at,
	// voiding every token issued before changedAt.
	UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error

	// SetResetToken stores the hash of an outstanding reset token, replacing
	// any previous one.
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically claims an unexpired reset token matching
	// tokenHash: one conditional write sets the new password hash, stamps
	// password_changed_at and clears the reset fields. Returns
	// domain.ErrResetTokenInvalid when no row matches, whether the token is
	// wrong or merely expired.
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, changedAt time.Time) (*domain.User, error)

	// SetActive toggles whether the account may authenticate.
	SetActive(ctx context.Context, userID string, active bool) error

	// PurgeExpiredResetTokens clears reset fields whose expiry has passed.
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}
