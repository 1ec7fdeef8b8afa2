package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool

	// Set whenever the password hash is mutated after creation. Tokens
	// issued before this instant are rejected by the auth middleware.
	PasswordChangedAt *time.Time

	// At most one outstanding reset token per user; issuing a new one
	// overwrites the pair.
	PasswordResetTokenHash *string
	PasswordResetExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IssuedBeforePasswordChange reports whether a token minted at issuedAt
// predates the user's last password change.
func (u *User) IssuedBeforePasswordChange(issuedAt time.Time) bool {
	return u.PasswordChangedAt != nil && issuedAt.Before(*u.PasswordChangedAt)
}
