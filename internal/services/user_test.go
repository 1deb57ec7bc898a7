package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quillpress/apiserver/internal/auth"
)

func newTestUserService() (*UserService, *memoryUsers, *auth.TokenService) {
	users := newMemoryUsers()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewUserService(users, tokens), users, tokens
}

func TestRegister_IssuesTokenAndHashesPassword(t *testing.T) {
	svc, users, tokens := newTestUserService()

	session, err := svc.Register(context.Background(), RegisterInput{
		Email:    "  alice@example.com ",
		Password: "secret1",
		Name:     "Alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID, err := tokens.Verify(session.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if userID != session.User.ID {
		t.Errorf("token subject %d does not match user %d", userID, session.User.ID)
	}

	stored, err := users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("user not stored under trimmed email: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "secret1" {
		t.Errorf("expected a password hash, got %q", stored.PasswordHash)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestUserService()

	cases := map[string]RegisterInput{
		"malformed email": {Email: "alice", Password: "secret1", Name: "Alice"},
		"short password":  {Email: "alice@example.com", Password: "12345", Name: "Alice"},
		"short name":      {Email: "alice@example.com", Password: "secret1", Name: "A"},
		"blank name":      {Email: "alice@example.com", Password: "secret1", Name: "   "},
		"long password":   {Email: "alice@example.com", Password: strings.Repeat("p", 80), Name: "Alice"},
		"multibyte password over bcrypt limit": {
			Email: "alice@example.com", Password: strings.Repeat("é", 40), Name: "Alice",
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegister_PasswordAtBcryptLimit(t *testing.T) {
	svc, _, _ := newTestUserService()

	password := strings.Repeat("p", 72)
	if _, err := svc.Register(context.Background(), RegisterInput{Email: "alice@example.com", Password: password, Name: "Alice"}); err != nil {
		t.Fatalf("expected a 72-byte password to be accepted, got %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: password}); err != nil {
		t.Errorf("expected login with the same password, got %v", err)
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "secret1", Name: "Alice"}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	_, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "different", Name: "Someone Else"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRegister_TokenFailure(t *testing.T) {
	svc := NewUserService(newMemoryUsers(), failingIssuer{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "alice@example.com", Password: "secret1", Name: "Alice"})
	if err == nil {
		t.Fatal("expected signing failure to surface")
	}
}

func TestLogin(t *testing.T) {
	svc, _, tokens := newTestUserService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "secret1", Name: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	session, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	userID, err := tokens.Verify(session.Token)
	if err != nil {
		t.Fatalf("login token does not verify: %v", err)
	}
	if userID != registered.User.ID {
		t.Errorf("expected user %d, got %d", registered.User.ID, userID)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "secret1", Name: "Alice"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPassword := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "nope"})
	_, unknownEmail := svc.Login(ctx, LoginInput{Email: "bob@example.com", Password: "secret1"})

	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("expected identical errors, got %q and %q", wrongPassword, unknownEmail)
	}
}

func TestLogin_Validation(t *testing.T) {
	svc, _, _ := newTestUserService()

	if _, err := svc.Login(context.Background(), LoginInput{Email: "not-an-email", Password: "x"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginInput{Email: "alice@example.com"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing password, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _, _ := newTestUserService()

	if _, err := svc.GetByID(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
