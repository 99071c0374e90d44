package database

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// dialect captures the handful of SQL differences between MySQL and SQLite.
type dialect struct {
	name string

	// pk is the column definition used for auto-increment integer primary keys.
	pk string

	// boolean is the column type used for flags.
	boolean string

	// upsertSetting stores a key/value pair in the settings table.
	upsertSetting string

	// optimize statements refresh planner statistics.
	optimize func(tables []string) []string
}

var dialects = map[string]*dialect{
	DriverMySQL: {
		name:    DriverMySQL,
		pk:      "BIGINT AUTO_INCREMENT PRIMARY KEY",
		boolean: "TINYINT(1)",
		upsertSetting: `INSERT INTO settings (setting_key, value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`,
		optimize: func(tables []string) []string {
			quoted := make([]string, len(tables))
			for i, t := range tables {
				quoted[i] = quoteIdent(t)
			}
			return []string{"ANALYZE TABLE " + strings.Join(quoted, ", ")}
		},
	},
	DriverSQLite: {
		name:    DriverSQLite,
		pk:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		boolean: "INTEGER",
		upsertSetting: `INSERT INTO settings (setting_key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(setting_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		optimize: func([]string) []string {
			return []string{"PRAGMA optimize"}
		},
	},
}

func dialectFor(driver string) (*dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// dsn builds the driver connection string for cfg.
func dsn(cfg Config) (string, error) {
	switch cfg.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.Timeout = cfg.ConnectTimeout
		mc.ParseTime = true
		// Report matched rather than changed rows so updates that set a column to
		// its current value still count as a hit.
		mc.ClientFoundRows = true
		if cfg.Charset != "" {
			if err := mc.Apply(mysql.Charset(cfg.Charset, "")); err != nil {
				return "", fmt.Errorf("invalid charset %q: %w", cfg.Charset, err)
			}
		}
		return mc.FormatDSN(), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return "", fmt.Errorf("sqlite path is required")
		}
		busy := cfg.ConnectTimeout.Milliseconds()
		if busy <= 0 {
			busy = 5000
		}
		return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_time_format=sqlite", cfg.Path, busy), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
