// Package database opens the bun writer and reader pools and carries units of
// work through context.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/dialtone/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections holds the writer and reader pools. Reader is the writer itself
// when no replica DSN is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

var Module = fx.Provide(
	New,
	func(conns *Connections) Transactor { return conns },
)

type driver struct {
	dialect func() schema.Dialect
	open    func(dsn string) (*sql.DB, error)
	// single pins the pool to one connection.
	single bool
}

var drivers = map[string]driver{
	"postgres": {
		dialect: func() schema.Dialect { return pgdialect.New() },
		open: func(dsn string) (*sql.DB, error) {
			return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
		},
	},
	"mysql": {
		dialect: func() schema.Dialect { return mysqldialect.New() },
		open:    func(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) },
	},
	"sqlite": {
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		open:    func(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) },
		single:  true,
	},
}

func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	name := normalizeDriver(cfg.Database.Driver)
	drv, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
	hook := &SlowQueryHook{Threshold: cfg.Database.SlowQuery, Logger: logger}

	writer, err := drv.connect(cfg.Database.WriterDSN, cfg.Database, hook)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	conns := &Connections{Writer: writer, Reader: writer}
	if cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		if conns.Reader, err = drv.connect(cfg.Database.ReaderDSN, cfg.Database, hook); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected", zap.String("driver", name), zap.Bool("replica", conns.hasReplica()))
			return nil
		},
		OnStop: func(context.Context) error { return conns.Close() },
	})
	return conns, nil
}

func (d driver) connect(dsn string, cfg config.Database, hook bun.QueryHook) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	sqldb, err := d.open(dsn)
	if err != nil {
		return nil, err
	}
	if d.single {
		sqldb.SetMaxOpenConns(1)
	} else {
		sizePool(sqldb, cfg)
	}
	db := bun.NewDB(sqldb, d.dialect())
	db.AddQueryHook(hook)
	return db, nil
}

func sizePool(db *sql.DB, cfg config.Database) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

// normalizeDriver maps driver aliases onto the names in the drivers table.
func normalizeDriver(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "pg", "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	}
	return name
}

func (c *Connections) hasReplica() bool { return c.Reader != c.Writer }

// Ping checks the writer and, when separate, the reader.
func (c *Connections) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.hasReplica() {
		if err := c.Reader.PingContext(ctx); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

func (c *Connections) Close() error {
	err := c.Writer.Close()
	if c.hasReplica() {
		err = errors.Join(err, c.Reader.Close())
	}
	return err
}
