package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
func (m *Manager) Migrate(ctx context.Context) error {
	log.Info().Str("driver", m.cfg.Driver).Msg("Running database migrations")

	db, err := m.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := m.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	log.Debug().Int("current_version", current).Msg("Current schema version")

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("Applying migration")

		if err := m.Transaction(ctx, func(tx *Tx) error {
			for i, stmt := range splitSQLStatements(m.dialect.render(mig.SQL)) {
				if _, err := tx.tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d statement %d failed: %w", mig.Version, i+1, err)
				}
			}
			if _, err := tx.tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", mig.Version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	log.Info().Msg("Database migrations complete")
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 on a fresh database.
func (m *Manager) SchemaVersion(ctx context.Context) (int, error) {
	db, err := m.Conn(ctx)
	if err != nil {
		return 0, err
	}
	var v int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	return v, nil
}

// LatestSchemaVersion is the version the binary migrates to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].Version
}

// render substitutes the dialect placeholders in a migration.
func (d *dialect) render(sql string) string {
	return strings.NewReplacer("{{pk}}", d.pk, "{{bool}}", d.boolean).Replace(sql)
}

type migration struct {
	Version int
	Name    string
	SQL     string
}

// splitSQLStatements splits a SQL string into individual statements,
// dropping blank lines and comment lines.
func splitSQLStatements(sql string) []string {
	var statements []string
	var current strings.Builder

	for line := range strings.SplitSeq(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			if strings.TrimSpace(stmt) != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}
	return statements
}

// storefrontTables lists the tables Optimize refreshes statistics for.
var storefrontTables = []string{
	"categories", "products", "collections", "collection_products", "gallery", "faqs",
	"reviews", "inquiries", "orders", "order_items", "users", "sessions", "settings",
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE categories (
				id {{pk}},
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				description TEXT,
				image_url VARCHAR(512),
				sort_order INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE products (
				id {{pk}},
				category_id BIGINT NULL,
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				description TEXT,
				fabric VARCHAR(100),
				price DECIMAL(10,2) NOT NULL DEFAULT 0,
				sale_price DECIMAL(10,2) NULL,
				stock INTEGER NOT NULL DEFAULT 0,
				image_url VARCHAR(512),
				status VARCHAR(20) NOT NULL DEFAULT 'active',
				featured {{bool}} NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL
			);

			CREATE INDEX idx_products_category ON products(category_id);
			CREATE INDEX idx_products_status ON products(status);

			CREATE TABLE collections (
				id {{pk}},
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				description TEXT,
				image_url VARCHAR(512),
				featured {{bool}} NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE collection_products (
				collection_id BIGINT NOT NULL,
				product_id BIGINT NOT NULL,
				sort_order INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (collection_id, product_id),
				FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE,
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
			);

			CREATE TABLE gallery (
				id {{pk}},
				title VARCHAR(255) NOT NULL,
				image_url VARCHAR(512) NOT NULL,
				caption TEXT,
				collection_id BIGINT NULL,
				sort_order INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE SET NULL
			);

			CREATE TABLE faqs (
				id {{pk}},
				question TEXT NOT NULL,
				answer TEXT NOT NULL,
				category VARCHAR(100),
				sort_order INTEGER NOT NULL DEFAULT 0,
				active {{bool}} NOT NULL DEFAULT 1,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE reviews (
				id {{pk}},
				product_id BIGINT NOT NULL,
				customer_name VARCHAR(255) NOT NULL,
				email VARCHAR(255),
				rating INTEGER NOT NULL,
				comment TEXT,
				approved {{bool}} NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
			);

			CREATE INDEX idx_reviews_product ON reviews(product_id, approved);

			CREATE TABLE inquiries (
				id {{pk}},
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL,
				phone VARCHAR(50),
				subject VARCHAR(255),
				message TEXT NOT NULL,
				product_id BIGINT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'new',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE SET NULL
			);

			CREATE TABLE orders (
				id {{pk}},
				reference VARCHAR(36) NOT NULL UNIQUE,
				customer_name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL,
				phone VARCHAR(50),
				shipping_address TEXT NOT NULL,
				notes TEXT,
				status VARCHAR(20) NOT NULL DEFAULT 'pending',
				subtotal DECIMAL(10,2) NOT NULL DEFAULT 0,
				total DECIMAL(10,2) NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_orders_status ON orders(status);

			CREATE TABLE order_items (
				id {{pk}},
				order_id BIGINT NOT NULL,
				product_id BIGINT NULL,
				product_name VARCHAR(255) NOT NULL,
				unit_price DECIMAL(10,2) NOT NULL,
				quantity INTEGER NOT NULL,
				line_total DECIMAL(10,2) NOT NULL,
				FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE SET NULL
			);

			CREATE TABLE users (
				id {{pk}},
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(20) NOT NULL DEFAULT 'customer',
				last_login_at DATETIME NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE sessions (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				expires_at DATETIME NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			CREATE INDEX idx_sessions_expires ON sessions(expires_at);

			CREATE TABLE settings (
				setting_key VARCHAR(100) NOT NULL PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: 2,
		Name:    "catalog_sort_indexes",
		SQL: `
			CREATE INDEX idx_gallery_sort ON gallery(sort_order);
			CREATE INDEX idx_faqs_sort ON faqs(active, sort_order);
			CREATE INDEX idx_inquiries_status ON inquiries(status);
		`,
	},
}
