package database

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User roles.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User is an account that can sign in.
type User struct {
	ID           int64      `db:"id,readonly" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at"`
	CreatedAt    time.Time  `db:"created_at,readonly" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at,readonly" json:"updated_at"`
}

// IsAdmin reports whether the user may use the admin panel.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type UserPatch struct {
	Name         *string `db:"name" json:"name"`
	Email        *string `db:"email" json:"email"`
	PasswordHash *string `db:"password_hash" json:"-"`
	Role         *string `db:"role" json:"role"`
}

type UserRepo struct {
	*Table[User]
}

func newUserRepo(m *Manager) *UserRepo {
	return &UserRepo{Table: NewTable[User](m, "users", WithTimestamps())}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", invalidf("email is not valid")
	}
	return email, nil
}

func checkPasswordHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return invalidf("password hash is not a bcrypt hash")
	}
	return nil
}

func checkRole(role string) error {
	if role != RoleAdmin && role != RoleCustomer {
		return invalidf("unknown role %q", role)
	}
	return nil
}

// Create stores a new user. PasswordHash must already be a bcrypt hash and
// the email must not be taken.
func (r *UserRepo) Create(ctx context.Context, u *User) (*User, error) {
	if err := required("name", u.Name); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(u.Email)
	if err != nil {
		return nil, err
	}
	u.Email = email
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if err := checkRole(u.Role); err != nil {
		return nil, err
	}
	if err := checkPasswordHash(u.PasswordHash); err != nil {
		return nil, err
	}
	id, err := r.Insert(ctx, u)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *UserRepo) Update(ctx context.Context, id int64, p *UserPatch) (bool, error) {
	if p.Email != nil {
		email, err := normalizeEmail(*p.Email)
		if err != nil {
			return false, err
		}
		p.Email = &email
	}
	if p.Role != nil {
		if err := checkRole(*p.Role); err != nil {
			return false, err
		}
	}
	if p.PasswordHash != nil {
		if err := checkPasswordHash(*p.PasswordHash); err != nil {
			return false, err
		}
	}
	return r.Patch(ctx, id, p)
}

// ByEmail returns the user with the given email, or nil when there is none.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.SelectOne(ctx, "SELECT * FROM users WHERE email = ? LIMIT 1", strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// TouchLogin records a successful sign-in.
func (r *UserRepo) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.Store().Update(ctx, id, Record{"last_login_at": at.UTC()})
	return err
}

// CountAdmins returns how many admin accounts exist.
func (r *UserRepo) CountAdmins(ctx context.Context) (int64, error) {
	return r.Count(ctx, Filter{"role": RoleAdmin})
}
