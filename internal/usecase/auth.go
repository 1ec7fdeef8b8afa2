package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/ErlanBelekov/account-service/internal/repository"
	"github.com/ErlanBelekov/account-service/internal/token"
	"github.com/google/uuid"
)

const defaultResetTokenTTL = 10 * time.Minute

// passwordChangedAt is backdated by one second because token issued-at
// claims carry second precision. Without the backdate a token minted in
// the same second as the change would be rejected as stale.
const changedAtSkew = time.Second

type AuthUsecase struct {
	users      repository.UserRepository
	hasher     *password.Hasher
	tokens     *token.Service
	email      email.Sender
	logger     *slog.Logger
	resetTTL   time.Duration
	appBaseURL string

	now func() time.Time
}

func NewAuthUsecase(
	users repository.UserRepository,
	hasher *password.Hasher,
	tokens *token.Service,
	emailSender email.Sender,
	appBaseURL string,
	logger *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		email:      emailSender,
		logger:     logger.With("component", "auth_usecase"),
		resetTTL:   defaultResetTokenTTL,
		appBaseURL: appBaseURL,
		now:        time.Now,
	}
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Signup creates an active user with the default role and returns it with
// a fresh session token.
func (u *AuthUsecase) Signup(ctx context.Context, in SignupInput) (*domain.User, string, error) {
	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	signed, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	metrics.SignupsTotal.Inc()
	return user, signed, nil
}

// Login verifies the credentials and returns the user with a fresh session
// token. Unknown email and wrong password are indistinguishable to the
// caller.
func (u *AuthUsecase) Login(ctx context.Context, emailAddr, plaintext string) (*domain.User, string, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	ok, err := u.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, "", domain.ErrInvalidCredentials
	}

	if !user.Active {
		metrics.LoginsTotal.WithLabelValues("inactive").Inc()
		return nil, "", domain.ErrAccountInactive
	}

	signed, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return user, signed, nil
}

// AdminLogin is Login plus a role check.
func (u *AuthUsecase) AdminLogin(ctx context.Context, emailAddr, plaintext string) (*domain.User, string, error) {
	user, signed, err := u.Login(ctx, emailAddr, plaintext)
	if err != nil {
		return nil, "", err
	}
	if user.Role != domain.RoleAdmin {
		return nil, "", domain.ErrForbidden
	}
	return user, signed, nil
}

// UpdatePassword changes the password of an authenticated user after
// re-verifying the current one, voiding all previously issued tokens, and
// returns a replacement session token.
func (u *AuthUsecase) UpdatePassword(ctx context.Context, userID, current, next string) (string, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	ok, err := u.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	hash, err := u.hasher.Hash(next)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := u.users.UpdatePassword(ctx, user.ID, hash, u.now().Add(-changedAtSkew)); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}

	signed, err := u.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// ForgotPassword generates a reset token, stores only its hash with a
// short expiry, and hands the plaintext to the email collaborator. An
// unknown email is not an error: the HTTP response must not reveal
// whether an account exists.
func (u *AuthUsecase) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			u.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	expiresAt := u.now().Add(u.resetTTL)
	if err := u.users.SetResetToken(ctx, user.ID, hashResetToken(rawToken), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := u.appBaseURL + "/reset-password/" + rawToken
	body := fmt.Sprintf(
		`<p>Use the link below to reset your password (expires in %d minutes):</p><p><a href="%s">%s</a></p>`,
		int(u.resetTTL.Minutes()), link, link,
	)
	if err := u.email.Send(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	metrics.PasswordResetsRequestedTotal.Inc()
	return nil
}

// ResetPassword consumes a reset token exactly once and returns the user
// with a fresh session token. Wrong and expired tokens produce the same
// error.
func (u *AuthUsecase) ResetPassword(ctx context.Context, rawToken, newPassword string) (*domain.User, string, error) {
	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.ConsumeResetToken(ctx, hashResetToken(rawToken), hash, u.now().Add(-changedAtSkew))
	if err != nil {
		if errors.Is(err, domain.ErrResetTokenInvalid) {
			metrics.PasswordResetsConsumedTotal.WithLabelValues("invalid").Inc()
			return nil, "", domain.ErrResetTokenInvalid
		}
		return nil, "", fmt.Errorf("consume reset token: %w", err)
	}

	signed, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	metrics.PasswordResetsConsumedTotal.WithLabelValues("success").Inc()
	return user, signed, nil
}

// SetUserActive toggles whether an account may authenticate. Deactivation
// takes effect on the user's next request: the auth middleware re-checks
// the flag every time.
func (u *AuthUsecase) SetUserActive(ctx context.Context, userID string, active bool) error {
	if err := u.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "account active flag changed", "target_user_id", userID, "active", active)
	return nil
}

// CurrentUser loads the profile of an already-authenticated user.
func (u *AuthUsecase) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func hashResetToken(rawToken string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))
}

func normalizeEmail(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}
