package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/db/migrations"
	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/database"
)

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies schema changes. Postgres runs the embedded goose SQL
// migrations; other dialects sync tables from the bun models.
type Migrator struct {
	db     *bun.DB
	driver string
	logger *zap.Logger
}

// New constructs a migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	m := &Migrator{db: conns.Writer, driver: cfg.Database.Driver, logger: logger}
	if !m.usesGoose() {
		return m, nil
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Migrator) usesGoose() bool {
	switch m.driver {
	case "postgres", "pg":
		return true
	default:
		return false
	}
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if !m.usesGoose() {
		if err := database.CreateSchema(ctx, m.db); err != nil {
			return err
		}
		m.logger.Info("schema synced from models", zap.String("driver", m.driver))
		return nil
	}

	if err := goose.UpContext(ctx, m.db.DB, migrations.Dir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}

	m.logger.Info("migrations applied")
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
// Model-synced dialects only support all=true.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if !m.usesGoose() {
		if !all {
			return fmt.Errorf("driver %s only supports rolling back all tables (--all)", m.driver)
		}
		if err := database.DropSchema(ctx, m.db); err != nil {
			return err
		}
		m.logger.Info("schema dropped", zap.String("driver", m.driver))
		return nil
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, migrations.Dir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, migrations.Dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	return strings.Contains(err.Error(), "no migrations")
}
