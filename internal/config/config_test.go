package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rumi.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Driver != database.DriverSQLite {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.SessionDuration() != 7*24*time.Hour {
		t.Errorf("SessionDuration = %v, want 168h", cfg.SessionDuration())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
  host: db.internal
  name: rumi
  user: rumi
  password: secret
  reconnect:
    max_attempts: 3
    base_delay_ms: 200
server:
  port: 9090
  allowed_origins: ["https://rumibymanisha.com"]
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}

	dbc := cfg.DatabaseConfig()
	if dbc.Driver != database.DriverMySQL || dbc.Host != "db.internal" || dbc.Port != 3306 {
		t.Errorf("unexpected database config %+v", dbc)
	}
	if dbc.Reconnect.MaxAttempts != 3 || dbc.Reconnect.BaseDelay != 200*time.Millisecond {
		t.Errorf("unexpected reconnect policy %+v", dbc.Reconnect)
	}
	if dbc.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", dbc.ConnectTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"RUMI_DB_DRIVER":       "mysql",
		"RUMI_DB_HOST":         "10.0.0.5",
		"RUMI_DB_PORT":         "3307",
		"RUMI_HTTP_PORT":       "8181",
		"RUMI_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
		"RUMI_LOG_LEVEL":       "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := applyEnvOverrides(cfg, lookup); err != nil {
		t.Fatalf("applyEnvOverrides returned error: %v", err)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Port = %d, want 8181", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_BadNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "RUMI_HTTP_PORT" {
			return "eighty", true
		}
		return "", false
	}
	err := applyEnvOverrides(Default(), lookup)
	if err == nil || !strings.Contains(err.Error(), "RUMI_HTTP_PORT") {
		t.Fatalf("expected RUMI_HTTP_PORT error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"mysql without host", func(c *Config) {
			c.Database.Driver = database.DriverMySQL
			c.Database.Name, c.Database.User = "rumi", "rumi"
		}, "database.host"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"no attempts", func(c *Config) { c.Database.Reconnect.MaxAttempts = 0 }, "max_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTimeoutFallbacks(t *testing.T) {
	var tc TimeoutConfig
	if tc.ReadTimeout() != 30*time.Second || tc.ShutdownTimeout() != 15*time.Second {
		t.Errorf("zero config should fall back to defaults, got %v/%v", tc.ReadTimeout(), tc.ShutdownTimeout())
	}
	tc.Request = 5
	if tc.RequestTimeout() != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", tc.RequestTimeout())
	}
}

type mapSettings map[string]string

func (m mapSettings) Get(_ context.Context, key string) (string, error) {
	return m[key], nil
}

func TestLoader(t *testing.T) {
	l := NewLoader(context.Background(), mapSettings{
		"catalog.products_per_page": "20",
		"catalog.show_out_of_stock": "false",
		"orders.accepting":          "false",
		"quoted.int":                `"24"`,
		"bad.int":                   "x",
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Int", l.Int("catalog.products_per_page", 10), 20},
		{"Int quoted", l.Int("quoted.int", 10), 24},
		{"Int invalid", l.Int("bad.int", 10), 10},
		{"Int missing", l.Int("missing", 10), 10},
		{"Bool explicit false", l.Bool("catalog.show_out_of_stock", true), false},
		{"Bool missing", l.Bool("missing", true), true},
		{"BoolDefaultTrue explicit false", l.BoolDefaultTrue("orders.accepting"), false},
		{"BoolDefaultTrue missing", l.BoolDefaultTrue("missing"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, 20*time.Millisecond, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("reloaded level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
