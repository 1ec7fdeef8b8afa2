package domain

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Deliberately identical for unknown email and wrong password.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	ErrAccountInactive = errors.New("account is inactive")

	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")

	// Tokens minted before a password change are retroactively void.
	ErrPasswordChanged = errors.New("password changed after token was issued")

	// Covers both "wrong token" and "expired token"; callers must not be
	// able to tell the two apart.
	ErrResetTokenInvalid = errors.New("reset token is invalid or has expired")

	ErrForbidden = errors.New("insufficient permissions")
)
