package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

const (
	// SessionDuration is how long sessions last
	SessionDuration = 7 * 24 * time.Hour // 7 days
	// BcryptCost is the bcrypt cost factor
	BcryptCost = 12
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrWeakPassword is returned when a password is too short.
	ErrWeakPassword = fmt.Errorf("%w: password must be at least %d characters", database.ErrInvalidValue, MinPasswordLength)
	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordLength bytes.
	ErrPasswordTooLong = fmt.Errorf("%w: password must be at most %d bytes", database.ErrInvalidValue, MaxPasswordLength)
)

// AuthService handles authentication
type AuthService struct {
	db   *database.DB
	ttl  time.Duration
	cost int
	now  func() time.Time
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithSessionDuration overrides SessionDuration.
func WithSessionDuration(d time.Duration) Option {
	return func(s *AuthService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithBcryptCost overrides BcryptCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *AuthService) { s.cost = cost }
}

// NewAuthService creates a new auth service
func NewAuthService(db *database.DB, opts ...Option) *AuthService {
	s := &AuthService{db: db, ttl: SessionDuration, cost: BcryptCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionDuration is the lifetime given to new and extended sessions.
func (s *AuthService) SessionDuration() time.Duration {
	return s.ttl
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	return hashPassword(password, BcryptCost)
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateUser creates an account with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, name, email, password, role string) (*database.User, error) {
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}
	return s.db.Users.Create(ctx, &database.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
}

// CreateAdmin creates an admin account.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (*database.User, error) {
	return s.CreateUser(ctx, name, email, password, database.RoleAdmin)
}

// Authenticate verifies credentials and returns the user
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*database.User, error) {
	user, err := s.db.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*database.Session, *database.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Warn().Str("email", strings.ToLower(strings.TrimSpace(email))).Msg("Failed login attempt")
		}
		return nil, nil, err
	}

	session, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.db.Users.TouchLogin(ctx, user.ID, s.now()); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to record login time")
	}

	log.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("User logged in")
	return session, user, nil
}

// UpdatePassword changes a user's password and signs out their other sessions.
func (s *AuthService) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	hash, err := hashPassword(newPassword, s.cost)
	if err != nil {
		return err
	}

	ok, err := s.db.Users.Update(ctx, userID, &database.UserPatch{PasswordHash: &hash})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !ok {
		return database.ErrNotFound
	}
	return s.db.Sessions.DeleteForUser(ctx, userID)
}

// CreateSession creates a new session for a user
func (s *AuthService) CreateSession(ctx context.Context, userID int64) (*database.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	session, err := s.db.Sessions.Create(ctx, sessionID, userID, s.now().Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession returns the session's user, or nil if the session is
// unknown or expired. Sessions past half their lifetime are extended.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*database.User, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.db.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.db.Users.Get(ctx, session.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, s.db.Sessions.Delete(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if session.ExpiresAt.Sub(s.now()) < s.ttl/2 {
		if err := s.ExtendSession(ctx, sessionID); err != nil {
			log.Warn().Err(err).Msg("Failed to extend session")
		}
	}
	return user, nil
}

// ExtendSession extends a session's expiration
func (s *AuthService) ExtendSession(ctx context.Context, sessionID string) error {
	if err := s.db.Sessions.Extend(ctx, sessionID, s.now().Add(s.ttl)); err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// Logout removes a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.db.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// generateSessionID creates a cryptographically secure session ID
func generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
