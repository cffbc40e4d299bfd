package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/db/migrations"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
)

// Module provides the Migrator to Fx.
var Module = fx.Provide(New)

// models in dependency order; used when the driver has no SQL migration set.
var models = []any{
	(*entity.Product)(nil),
	(*entity.PricePlan)(nil),
	(*entity.Order)(nil),
	(*entity.OrderPricing)(nil),
	(*entity.Number)(nil),
	(*entity.DisconnectionRequest)(nil),
	(*entity.Invoice)(nil),
	(*entity.WalletTransaction)(nil),
}

// Migrator applies the embedded goose migrations on PostgreSQL and creates
// tables from the bun models on the other drivers.
type Migrator struct {
	db     *bun.DB
	goose  bool
	logger *zap.Logger
}

// New constructs a migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	m := &Migrator{db: conns.Writer, logger: logger}
	if dialect == "postgres" {
		goose.SetBaseFS(migrations.FS)
		if err := goose.SetDialect(dialect); err != nil {
			return nil, err
		}
		m.goose = true
	}
	return m, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if !m.goose {
		return m.createTables(ctx)
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
// Model-created schemas can only be dropped as a whole.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if !m.goose {
		if !all {
			return fmt.Errorf("driver %s supports only a full rollback (--all)", m.db.Dialect().Name())
		}
		return m.dropTables(ctx)
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

func (m *Migrator) createTables(ctx context.Context) error {
	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	if err := m.createPartialIndexes(ctx); err != nil {
		return err
	}
	m.logger.Info("tables created from models", zap.Int("tables", len(models)))
	return nil
}

// createPartialIndexes adds the filtered unique indexes bun tags cannot
// express. MySQL has no partial indexes; there the service lock alone keeps
// one pending disconnection per number.
func (m *Migrator) createPartialIndexes(ctx context.Context) error {
	if m.db.Dialect().Name() != dialect.SQLite {
		return nil
	}
	_, err := m.db.NewCreateIndex().
		Model((*entity.DisconnectionRequest)(nil)).
		Unique().
		IfNotExists().
		Index("disconnection_requests_pending_idx").
		Column("number_id").
		Where("status = ?", entity.DisconnectionPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create pending disconnection index: %w", err)
	}
	return nil
}

func (m *Migrator) dropTables(ctx context.Context) error {
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := m.db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", models[i], err)
		}
	}
	m.logger.Info("tables dropped", zap.Int("tables", len(models)))
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
