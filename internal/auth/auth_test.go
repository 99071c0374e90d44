package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

func newTestService(t *testing.T, opts ...Option) (*AuthService, *database.DB) {
	t.Helper()

	db, err := database.New(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "auth.db"),
	})
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Prepare(context.Background()); err != nil {
		t.Fatalf("failed to prepare db: %v", err)
	}

	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewAuthService(db, opts...), db
}

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashPassword returned error: %v", err)
	}
	if !CheckPassword("correct horse", hash) {
		t.Fatal("expected password to match its hash")
	}
	if CheckPassword("wrong horse", hash) {
		t.Fatal("expected wrong password to fail")
	}
	if _, err := hashPassword("short", bcrypt.MinCost); !errors.Is(err, database.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for short password, got %v", err)
	}
}

func TestHashPassword_Length(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"at the limit", strings.Repeat("a", MaxPasswordLength), nil},
		{"one byte over", strings.Repeat("a", MaxPasswordLength+1), ErrPasswordTooLong},
		{"multibyte over", strings.Repeat("साड़ी", 10), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hashPassword(tt.password, bcrypt.MinCost)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil && !errors.Is(err, database.ErrInvalidValue) {
				t.Fatalf("expected an input error, got %v", err)
			}
		})
	}

	svc, _ := newTestService(t)
	_, err := svc.CreateUser(context.Background(), "Asha", "asha@example.com", strings.Repeat("x", 100), database.RoleCustomer)
	if !errors.Is(err, database.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue from CreateUser, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "Manisha", "Manisha@Rumi.example", "saree-secret")
	if err != nil {
		t.Fatalf("CreateAdmin returned error: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "manisha@rumi.example", "saree-secret", nil},
		{"email is case insensitive", " MANISHA@rumi.example ", "saree-secret", nil},
		{"wrong password", "manisha@rumi.example", "nope-nope", ErrInvalidCredentials},
		{"unknown email", "nobody@rumi.example", "saree-secret", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, user, err := svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if user.ID != admin.ID || len(session.ID) != 64 {
				t.Fatalf("unexpected login result: user %d session %q", user.ID, session.ID)
			}
		})
	}

	got, err := db.Users.Get(ctx, admin.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be recorded")
	}
}

func TestValidateSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateAdmin(ctx, "Manisha", "admin@rumi.example", "saree-secret"); err != nil {
		t.Fatalf("CreateAdmin returned error: %v", err)
	}
	session, _, err := svc.Login(ctx, "admin@rumi.example", "saree-secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	user, err := svc.ValidateSession(ctx, session.ID)
	if err != nil || user == nil {
		t.Fatalf("expected valid session, got %v, %v", user, err)
	}
	if !user.IsAdmin() {
		t.Fatal("expected admin role")
	}

	if user, err := svc.ValidateSession(ctx, "unknown"); err != nil || user != nil {
		t.Fatalf("expected nil user for unknown session, got %v, %v", user, err)
	}

	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if user, err := svc.ValidateSession(ctx, session.ID); err != nil || user != nil {
		t.Fatalf("expected nil user after logout, got %v, %v", user, err)
	}
}

func TestValidateSession_Expired(t *testing.T) {
	svc, _ := newTestService(t, WithSessionDuration(time.Hour))
	ctx := context.Background()

	if _, err := svc.CreateAdmin(ctx, "Manisha", "admin@rumi.example", "saree-secret"); err != nil {
		t.Fatalf("CreateAdmin returned error: %v", err)
	}
	session, _, err := svc.Login(ctx, "admin@rumi.example", "saree-secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := svc.db.Sessions.Extend(ctx, session.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Extend returned error: %v", err)
	}
	if user, err := svc.ValidateSession(ctx, session.ID); err != nil || user != nil {
		t.Fatalf("expected expired session to be rejected, got %v, %v", user, err)
	}
}

func TestValidateSession_ExtendsAgingSession(t *testing.T) {
	svc, db := newTestService(t, WithSessionDuration(time.Hour))
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "Manisha", "admin@rumi.example", "saree-secret")
	if err != nil {
		t.Fatalf("CreateAdmin returned error: %v", err)
	}
	session, err := db.Sessions.Create(ctx, "aging", admin.ID, time.Now().Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Create session returned error: %v", err)
	}

	if _, err := svc.ValidateSession(ctx, session.ID); err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	got, err := db.Sessions.Get(ctx, session.ID)
	if err != nil || got == nil {
		t.Fatalf("expected session, got %v, %v", got, err)
	}
	if time.Until(got.ExpiresAt) < 50*time.Minute {
		t.Fatalf("expected session to be extended, expires %v", got.ExpiresAt)
	}
}

func TestUpdatePassword_RevokesSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "Manisha", "admin@rumi.example", "saree-secret")
	if err != nil {
		t.Fatalf("CreateAdmin returned error: %v", err)
	}
	session, _, err := svc.Login(ctx, "admin@rumi.example", "saree-secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := svc.UpdatePassword(ctx, admin.ID, "new-saree-secret"); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	if user, _ := svc.ValidateSession(ctx, session.ID); user != nil {
		t.Fatal("expected old session to be revoked")
	}
	if _, _, err := svc.Login(ctx, "admin@rumi.example", "new-saree-secret"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if err := svc.UpdatePassword(ctx, 999, "new-saree-secret"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
