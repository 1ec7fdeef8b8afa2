package usecase_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/ErlanBelekov/account-service/internal/token"
	"github.com/ErlanBelekov/account-service/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

// ---- fakes ----

type fakeUserRepo struct {
	create            func(ctx context.Context, user *domain.User) error
	findByEmail       func(ctx context.Context, email string) (*domain.User, error)
	findByID          func(ctx context.Context, id string) (*domain.User, error)
	updatePassword    func(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
	setResetToken     func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	consumeResetToken func(ctx context.Context, tokenHash, newPasswordHash string, changedAt time.Time) (*domain.User, error)
	setActive         func(ctx context.Context, userID string, active bool) error
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	return r.create(ctx, user)
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findByEmail(ctx, email)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findByID(ctx, id)
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	return r.updatePassword(ctx, userID, passwordHash, changedAt)
}

func (r *fakeUserRepo) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.setResetToken(ctx, userID, tokenHash, expiresAt)
}

func (r *fakeUserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, changedAt time.Time) (*domain.User, error) {
	return r.consumeResetToken(ctx, tokenHash, newPasswordHash, changedAt)
}

func (r *fakeUserRepo) SetActive(ctx context.Context, userID string, active bool) error {
	if r.setActive == nil {
		return nil
	}
	return r.setActive(ctx, userID, active)
}

func (r *fakeUserRepo) PurgeExpiredResetTokens(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeEmailSender struct {
	send func(ctx context.Context, to, subject, body string) error
}

func (s *fakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, body)
}

// ---- helpers ----

const (
	testJWTKey     = "test-jwt-secret-at-least-32-chars!!!"
	testAppBaseURL = "http://localhost:8080"
)

var testTokens = token.NewService([]byte(testJWTKey), 24*time.Hour)

func newUsecase(repo *fakeUserRepo, sender *fakeEmailSender) *usecase.AuthUsecase {
	hasher := password.NewHasher(bcrypt.MinCost)
	logger := slog.Default()
	return usecase.NewAuthUsecase(repo, hasher, testTokens, sender, testAppBaseURL, logger)
}

func mustHash(t *testing.T, plaintext string) string {
	t.Helper()
	hash, err := password.NewHasher(bcrypt.MinCost).Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

func activeUser(t *testing.T, pass string) *domain.User {
	t.Helper()
	return &domain.User{
		ID:           "user-1",
		Name:         "Jo",
		Email:        "jo@example.com",
		PasswordHash: mustHash(t, pass),
		Role:         domain.RoleUser,
		Active:       true,
	}
}

// ---- Signup ----

func TestSignup_CreatesActiveUserWithHashedPassword(t *testing.T) {
	var created *domain.User
	repo := &fakeUserRepo{
		create: func(_ context.Context, user *domain.User) error {
			created = user
			return nil
		},
	}

	user, signed, err := newUsecase(repo, &fakeEmailSender{}).Signup(context.Background(), usecase.SignupInput{
		Name:     "Jo",
		Email:    "Jo@Example.com",
		Password: "secret12",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("user was never stored")
	}
	if created.Email != "jo@example.com" {
		t.Errorf("email = %q, want lower-cased %q", created.Email, "jo@example.com")
	}
	if created.Role != domain.RoleUser {
		t.Errorf("role = %q, want %q", created.Role, domain.RoleUser)
	}
	if !created.Active {
		t.Error("new user is not active")
	}
	if created.PasswordHash == "secret12" || created.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	ok, err := password.NewHasher(bcrypt.MinCost).Verify("secret12", created.PasswordHash)
	if err != nil || !ok {
		t.Errorf("stored hash does not verify the password (ok=%v, err=%v)", ok, err)
	}

	claims, err := testTokens.Verify(signed)
	if err != nil {
		t.Fatalf("returned token is invalid: %v", err)
	}
	if claims.SubjectID != user.ID {
		t.Errorf("token subject = %q, want %q", claims.SubjectID, user.ID)
	}
}

func TestSignup_DuplicateEmail_Propagates(t *testing.T) {
	repo := &fakeUserRepo{
		create: func(_ context.Context, _ *domain.User) error {
			return domain.ErrDuplicateEmail
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).Signup(context.Background(), usecase.SignupInput{
		Name: "Jo", Email: "jo@example.com", Password: "secret12",
	})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Errorf("want ErrDuplicateEmail, got %v", err)
	}
}

// ---- Login ----

func TestLogin_Success_ReturnsVerifiableToken(t *testing.T) {
	user := activeUser(t, "secret12")
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return user, nil
		},
	}

	got, signed, err := newUsecase(repo, &fakeEmailSender{}).Login(context.Background(), "jo@example.com", "secret12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("user id = %q, want %q", got.ID, user.ID)
	}

	claims, err := testTokens.Verify(signed)
	if err != nil {
		t.Fatalf("returned token is invalid: %v", err)
	}
	if claims.SubjectID != user.ID {
		t.Errorf("token subject = %q, want %q", claims.SubjectID, user.ID)
	}
}

func TestLogin_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return activeUser(t, "secret12"), nil
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).Login(context.Background(), "jo@example.com", "wrong-password")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail_SameErrorAsWrongPassword(t *testing.T) {
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, domain.ErrUserNotFound
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).Login(context.Background(), "nobody@example.com", "whatever1")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("want ErrInvalidCredentials (no enumeration), got %v", err)
	}
}

func TestLogin_InactiveAccount_Rejected(t *testing.T) {
	user := activeUser(t, "secret12")
	user.Active = false
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return user, nil
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).Login(context.Background(), "jo@example.com", "secret12")
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Errorf("want ErrAccountInactive, got %v", err)
	}
}

// ---- AdminLogin ----

func TestAdminLogin_NonAdmin_ReturnsForbidden(t *testing.T) {
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return activeUser(t, "secret12"), nil
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).AdminLogin(context.Background(), "jo@example.com", "secret12")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("want ErrForbidden, got %v", err)
	}
}

func TestAdminLogin_Admin_Succeeds(t *testing.T) {
	user := activeUser(t, "secret12")
	user.Role = domain.RoleAdmin
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return user, nil
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).AdminLogin(context.Background(), "jo@example.com", "secret12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---- UpdatePassword ----

func TestUpdatePassword_WrongCurrent_ReturnsInvalidCredentials(t *testing.T) {
	repo := &fakeUserRepo{
		findByID: func(_ context.Context, _ string) (*domain.User, error) {
			return activeUser(t, "secret12"), nil
		},
	}

	_, err := newUsecase(repo, &fakeEmailSender{}).UpdatePassword(context.Background(), "user-1", "wrong-password", "newsecret1")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestUpdatePassword_StampsChangedAtInThePast(t *testing.T) {
	var capturedHash string
	var capturedChangedAt time.Time

	repo := &fakeUserRepo{
		findByID: func(_ context.Context, _ string) (*domain.User, error) {
			return activeUser(t, "secret12"), nil
		},
		updatePassword: func(_ context.Context, _, passwordHash string, changedAt time.Time) error {
			capturedHash = passwordHash
			capturedChangedAt = changedAt
			return nil
		},
	}

	signed, err := newUsecase(repo, &fakeEmailSender{}).UpdatePassword(context.Background(), "user-1", "secret12", "newsecret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := password.NewHasher(bcrypt.MinCost).Verify("newsecret1", capturedHash)
	if err != nil || !ok {
		t.Errorf("stored hash does not verify the new password (ok=%v, err=%v)", ok, err)
	}

	// The stamp must sit before the replacement token's issued-at, or the
	// token we just handed back would be rejected as stale.
	claims, err := testTokens.Verify(signed)
	if err != nil {
		t.Fatalf("replacement token is invalid: %v", err)
	}
	if claims.IssuedAt.Before(capturedChangedAt) {
		t.Errorf("replacement token iat %v predates changed_at %v", claims.IssuedAt, capturedChangedAt)
	}
	if !capturedChangedAt.Before(time.Now()) {
		t.Errorf("changed_at %v is not in the past", capturedChangedAt)
	}
}

// ---- ForgotPassword ----

func TestForgotPassword_StoresHashOfEmailedToken(t *testing.T) {
	var capturedHash string
	var capturedExpiry time.Time
	var capturedBody string

	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return activeUser(t, "secret12"), nil
		},
		setResetToken: func(_ context.Context, _, tokenHash string, expiresAt time.Time) error {
			capturedHash = tokenHash
			capturedExpiry = expiresAt
			return nil
		},
	}
	sender := &fakeEmailSender{
		send: func(_ context.Context, _, _, body string) error {
			capturedBody = body
			return nil
		},
	}

	before := time.Now()
	if err := newUsecase(repo, sender).ForgotPassword(context.Background(), "jo@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Extract the raw token from the link embedded in the email body.
	idx := strings.Index(capturedBody, "/reset-password/")
	if idx == -1 {
		t.Fatal("email body does not contain a reset link")
	}
	rawToken := strings.SplitN(capturedBody[idx+len("/reset-password/"):], `"`, 2)[0]

	wantHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))
	if capturedHash != wantHash {
		t.Errorf("stored hash %q != SHA-256 of emailed token %q", capturedHash, wantHash)
	}
	if !capturedExpiry.After(before) {
		t.Errorf("expiry %v is not in the future", capturedExpiry)
	}
}

func TestForgotPassword_UnknownEmail_SilentlySucceeds(t *testing.T) {
	repo := &fakeUserRepo{
		findByEmail: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, domain.ErrUserNotFound
		},
		setResetToken: func(_ context.Context, _, _ string, _ time.Time) error {
			t.Error("reset token stored for unknown email")
			return nil
		},
	}
	sender := &fakeEmailSender{
		send: func(_ context.Context, _, _, _ string) error {
			t.Error("email sent for unknown address")
			return nil
		},
	}

	if err := newUsecase(repo, sender).ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Errorf("unknown email must not surface an error, got %v", err)
	}
}

// ---- ResetPassword ----

// statefulResetRepo consumes a token exactly once and only before its
// expiry, like the conditional UPDATE in the real repository.
type statefulResetRepo struct {
	fakeUserRepo
	tokenHash string
	expiresAt time.Time
	user      *domain.User
	consumed  bool
}

func (r *statefulResetRepo) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string, _ time.Time) (*domain.User, error) {
	if r.consumed || tokenHash != r.tokenHash || !time.Now().Before(r.expiresAt) {
		return nil, domain.ErrResetTokenInvalid
	}
	r.consumed = true
	r.user.PasswordHash = newPasswordHash
	return r.user, nil
}

func TestResetPassword_ConsumesTokenExactlyOnce(t *testing.T) {
	const rawToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	user := activeUser(t, "secret12")
	repo := &statefulResetRepo{
		tokenHash: fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken))),
		expiresAt: time.Now().Add(10 * time.Minute),
		user:      user,
	}
	hasher := password.NewHasher(bcrypt.MinCost)
	uc := usecase.NewAuthUsecase(repo, hasher, testTokens, &fakeEmailSender{}, testAppBaseURL, slog.Default())

	got, signed, err := uc.ResetPassword(context.Background(), rawToken, "newsecret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("user id = %q, want %q", got.ID, user.ID)
	}

	ok, err := hasher.Verify("newsecret1", user.PasswordHash)
	if err != nil || !ok {
		t.Errorf("stored hash does not verify the new password (ok=%v, err=%v)", ok, err)
	}

	claims, err := testTokens.Verify(signed)
	if err != nil {
		t.Fatalf("session token is invalid: %v", err)
	}
	if claims.SubjectID != user.ID {
		t.Errorf("token subject = %q, want %q", claims.SubjectID, user.ID)
	}

	// Replay fails with the same undifferentiated error.
	if _, _, err := uc.ResetPassword(context.Background(), rawToken, "anothersecret1"); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Errorf("replay: want ErrResetTokenInvalid, got %v", err)
	}
}

func TestResetPassword_ExpiredToken_SameErrorAsWrongToken(t *testing.T) {
	const rawToken = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	repo := &statefulResetRepo{
		tokenHash: fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken))),
		expiresAt: time.Now().Add(-time.Minute),
		user:      activeUser(t, "secret12"),
	}
	uc := usecase.NewAuthUsecase(repo, password.NewHasher(bcrypt.MinCost), testTokens, &fakeEmailSender{}, testAppBaseURL, slog.Default())

	// Correct token, never consumed, but past its window.
	_, _, err := uc.ResetPassword(context.Background(), rawToken, "newsecret1")
	if !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Errorf("want ErrResetTokenInvalid for expired token, got %v", err)
	}
	if repo.consumed {
		t.Error("expired token was consumed")
	}
}

func TestResetPassword_WrongToken_ReturnsResetTokenInvalid(t *testing.T) {
	repo := &fakeUserRepo{
		consumeResetToken: func(_ context.Context, _, _ string, _ time.Time) (*domain.User, error) {
			return nil, domain.ErrResetTokenInvalid
		},
	}

	_, _, err := newUsecase(repo, &fakeEmailSender{}).ResetPassword(context.Background(), "bad-token", "newsecret1")
	if !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Errorf("want ErrResetTokenInvalid, got %v", err)
	}
}
