package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SettingsRepo stores key/value site settings. Values are JSON encoded.
type SettingsRepo struct {
	store   *Store
	dialect *dialect
}

func newSettingsRepo(m *Manager) *SettingsRepo {
	return &SettingsRepo{
		store:   mustStore(m, "settings", WithColumns("setting_key", "value", "updated_at")),
		dialect: m.dialect,
	}
}

// Get retrieves a raw setting value, or "" when it is not set.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	rec, err := r.store.QueryOne(ctx, "SELECT value FROM settings WHERE setting_key = ?", key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return rec.String("value"), nil
}

// GetJSON decodes a setting into v. Missing settings leave v untouched.
func (r *SettingsRepo) GetJSON(ctx context.Context, key string, v any) error {
	value, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	return json.Unmarshal([]byte(value), v)
}

// Set stores a raw setting value.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	if _, err := r.store.Exec(ctx, r.dialect.upsertSetting, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v as a JSON encoded setting.
func (r *SettingsRepo) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	return r.Set(ctx, key, string(data))
}

// All retrieves every setting.
func (r *SettingsRepo) All(ctx context.Context) (map[string]string, error) {
	recs, err := r.store.Query(ctx, "SELECT setting_key, value FROM settings ORDER BY setting_key")
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	out := make(map[string]string, len(recs))
	for _, rec := range recs {
		out[rec.String("setting_key")] = rec.String("value")
	}
	return out, nil
}

// Delete removes a setting.
func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.store.Exec(ctx, "DELETE FROM settings WHERE setting_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// DefaultSettings are written on first start for keys that are not set yet.
var DefaultSettings = map[string]any{
	"store.name":                   "RUMI by Manisha",
	"store.tagline":                "Handcrafted sarees and ethnic wear",
	"store.currency":               "INR",
	"store.contact_email":          "",
	"store.contact_phone":          "",
	"store.instagram_url":          "",
	"orders.free_shipping_above":   0,
	"orders.accepting":             true,
	"reviews.require_approval":     true,
	"catalog.products_per_page":    20,
	"catalog.show_out_of_stock":    true,
	"maintenance.session_purge":    true,
	"maintenance.optimize_enabled": true,
}

// InitializeDefaults sets default values for settings that don't exist.
func (r *SettingsRepo) InitializeDefaults(ctx context.Context) error {
	for key, value := range DefaultSettings {
		existing, err := r.Get(ctx, key)
		if err != nil {
			return err
		}
		if existing == "" {
			if err := r.SetJSON(ctx, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
