package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Optimize refreshes the query planner statistics.
func (m *Manager) Optimize(ctx context.Context) error {
	db, err := m.Conn(ctx)
	if err != nil {
		return err
	}

	for _, stmt := range m.dialect.optimize(storefrontTables) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to optimize database: %w", err)
		}
	}
	log.Debug().Str("driver", m.cfg.Driver).Msg("Database statistics refreshed")
	return nil
}

// Vacuum rebuilds the database file to reclaim unused space. MySQL manages
// its own tablespace, so this is a no-op there.
func (m *Manager) Vacuum(ctx context.Context) error {
	if m.cfg.Driver != DriverSQLite {
		return nil
	}
	db, err := m.Conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
