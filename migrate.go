package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clawnema/internal/config"
	"clawnema/internal/database"
	"clawnema/internal/database/migrations"
	"clawnema/internal/logger"
	theaterdb "clawnema/internal/theaters/db"
)

const migrateUsage = "usage: clawnema migrate up|down|version|seed"

// runMigrate handles "clawnema migrate <command>". Versioned migrations are
// Postgres only; on SQLite "up" creates the schema from the models instead.
func runMigrate(cfg *config.Config, l *logger.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New(migrateUsage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database, l)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if args[0] == "seed" {
		n, err := (&theaterdb.DB{Bun: db}).Seed(ctx, theaterdb.DefaultTheaters, l)
		if err != nil {
			return err
		}
		l.Info("MIGRATE", fmt.Sprintf("Seeded %d theaters", n))
		return nil
	}

	if cfg.Database.Driver != "postgres" {
		if args[0] != "up" {
			return fmt.Errorf("migrate %s needs DB_DRIVER=postgres", args[0])
		}
		if err := database.CreateSchema(ctx, db); err != nil {
			return err
		}
		l.Info("MIGRATE", "SQLite schema created")
		return nil
	}

	runner := migrations.NewRunner(db, l)
	defer runner.Close()

	switch args[0] {
	case "up":
		if err := runner.MigrateUp(); err != nil {
			return err
		}
		l.Info("MIGRATE", "Migrations applied")
	case "down":
		if err := runner.MigrateDown(); err != nil {
			return err
		}
		l.Info("MIGRATE", "Migrations rolled back")
	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		l.Info("MIGRATE", fmt.Sprintf("Schema version %d (dirty=%t)", version, dirty))
	default:
		return errors.New(migrateUsage)
	}
	return nil
}
