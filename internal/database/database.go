package database

import (
	"context"
	"fmt"
)

// DB bundles the connection manager with the storefront repositories. The
// process builds one DB at startup and hands it to every consumer.
type DB struct {
	*Manager

	Products    *ProductRepo
	Categories  *CategoryRepo
	Collections *CollectionRepo
	Gallery     *GalleryRepo
	FAQs        *FAQRepo
	Reviews     *ReviewRepo
	Inquiries   *InquiryRepo
	Orders      *OrderRepo
	Users       *UserRepo
	Sessions    *SessionRepo
	Settings    *SettingsRepo
}

// New creates the manager for cfg and the repositories on top of it. No
// connection is opened until the first query.
func New(cfg Config, opts ...Option) (*DB, error) {
	m, err := NewManager(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return Wrap(m), nil
}

// Wrap builds the repositories on an existing manager.
func Wrap(m *Manager) *DB {
	products := newProductRepo(m)
	return &DB{
		Manager:     m,
		Products:    products,
		Categories:  newCategoryRepo(m),
		Collections: newCollectionRepo(m),
		Gallery:     newGalleryRepo(m),
		FAQs:        newFAQRepo(m),
		Reviews:     newReviewRepo(m, products),
		Inquiries:   newInquiryRepo(m),
		Orders:      newOrderRepo(m, products),
		Users:       newUserRepo(m),
		Sessions:    newSessionRepo(m),
		Settings:    newSettingsRepo(m),
	}
}

// IsFirstRun reports whether no admin account exists yet.
func (db *DB) IsFirstRun(ctx context.Context) (bool, error) {
	n, err := db.Users.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check users: %w", err)
	}
	return n == 0, nil
}

// Prepare migrates the schema and writes default settings.
func (db *DB) Prepare(ctx context.Context) error {
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := db.Settings.InitializeDefaults(ctx); err != nil {
		return fmt.Errorf("failed to initialize default settings: %w", err)
	}
	return nil
}
