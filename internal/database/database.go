package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"clawnema/internal/config"
	"clawnema/internal/logger"
	"clawnema/internal/models"
)

const (
	maxConnectAttempts = 5
	connectRetryDelay  = 2 * time.Second
)

// Open connects to the configured database, retrying the first ping while the
// server comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, l *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		sqldb, err := connect(ctx, "postgres", cfg.DSN, l)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		l.Info("DATABASE", "✅ PostgreSQL connection successful")
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case "sqlite":
		sqldb, err := connect(ctx, sqliteshim.ShimName, cfg.DSN, l)
		if err != nil {
			return nil, err
		}
		// SQLite allows one writer; a single connection also keeps :memory: databases shared.
		sqldb.SetMaxOpenConns(1)
		l.Info("DATABASE", fmt.Sprintf("✅ SQLite database ready (%s)", cfg.DSN))
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func connect(ctx context.Context, driver, dsn string, l *logger.Logger) (*sql.DB, error) {
	var sqldb *sql.DB
	var err error

	for i := 0; i < maxConnectAttempts; i++ {
		l.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", driver, i+1, maxConnectAttempts))
		sqldb, err = sql.Open(driver, dsn)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				return sqldb, nil
			}
			sqldb.Close()
		}

		l.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", driver, err))
		if i < maxConnectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectRetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("connect to %s after %d attempts: %w", driver, maxConnectAttempts, err)
}

// CreateSchema creates the tables from the bun models. It is used for SQLite,
// where the versioned Postgres migrations do not apply.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{(*models.Theater)(nil), (*models.Ticket)(nil), (*models.Comment)(nil)}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	indexes := []struct {
		model   interface{}
		name    string
		columns []string
	}{
		{(*models.Ticket)(nil), "idx_tickets_theater", []string{"theater_id"}},
		{(*models.Ticket)(nil), "idx_tickets_expires", []string{"expires_at"}},
		{(*models.Comment)(nil), "idx_comments_theater_created", []string{"theater_id", "created_at"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
