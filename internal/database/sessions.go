package database

import (
	"context"
	"errors"
	"time"
)

// Session is a signed-in browser session.
type Session struct {
	ID        string    `db:"id" json:"-"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SessionRepo stores login sessions. Session ids are random strings, so it
// works on raw statements rather than the integer-keyed Store operations.
type SessionRepo struct {
	store *Store
}

func newSessionRepo(m *Manager) *SessionRepo {
	return &SessionRepo{store: mustStore(m, "sessions", WithColumns(columnsOf[Session]()...))}
}

// Create stores a session for userID.
func (r *SessionRepo) Create(ctx context.Context, id string, userID int64, expiresAt time.Time) (*Session, error) {
	s := &Session{ID: id, UserID: userID, ExpiresAt: expiresAt.UTC(), CreatedAt: time.Now().UTC()}
	rec, err := toRecord(s)
	if err != nil {
		return nil, err
	}
	if _, err := r.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the session with the given id if it has not expired, or nil.
func (r *SessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	rec, err := r.store.QueryOne(ctx, "SELECT * FROM sessions WHERE id = ? AND expires_at > ? LIMIT 1", id, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newQueryError("get", "sessions", err)
	}
	return decodeOne[Session](rec)
}

// Extend moves the session's expiry.
func (r *SessionRepo) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	if _, err := r.store.Exec(ctx, "UPDATE sessions SET expires_at = ? WHERE id = ?", expiresAt.UTC(), id); err != nil {
		return newQueryError("extend", "sessions", err)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Exec(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return newQueryError("delete from", "sessions", err)
	}
	return nil
}

// DeleteForUser signs a user out everywhere.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID int64) error {
	if _, err := r.store.Exec(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return newQueryError("delete from", "sessions", err)
	}
	return nil
}

// PurgeExpired removes expired sessions and returns how many were removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.store.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, newQueryError("purge", "sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newQueryError("purge", "sessions", err)
	}
	return n, nil
}
