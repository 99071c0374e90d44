package config

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// SettingsGetter is an interface for retrieving settings from storage
type SettingsGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Loader provides typed access to settings with default values.
// Values are stored JSON-encoded; bare strings are accepted as well.
type Loader struct {
	db  SettingsGetter
	ctx context.Context
}

// NewLoader creates a new settings loader
func NewLoader(ctx context.Context, db SettingsGetter) *Loader {
	return &Loader{db: db, ctx: ctx}
}

// raw returns the stored value with JSON string quoting removed.
func (l *Loader) raw(key string) string {
	val, err := l.db.Get(l.ctx, key)
	if err != nil || val == "" {
		return ""
	}
	if strings.HasPrefix(val, `"`) {
		var s string
		if json.Unmarshal([]byte(val), &s) == nil {
			return s
		}
	}
	return val
}

// Int retrieves an integer setting, returning defaultVal if not found or invalid
func (l *Loader) Int(key string, defaultVal int) int {
	if val := l.raw(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			return v
		}
	}
	return defaultVal
}

// Bool retrieves a boolean setting, returning defaultVal if not found
// Recognizes "true" as true, anything else (including "false") as false
func (l *Loader) Bool(key string, defaultVal bool) bool {
	if val := l.raw(key); val != "" {
		return val == "true"
	}
	return defaultVal
}

// BoolDefaultTrue retrieves a boolean setting where the default is true
// Returns false only if the value is explicitly "false"
func (l *Loader) BoolDefaultTrue(key string) bool {
	if val := l.raw(key); val != "" {
		return val != "false"
	}
	return true
}
