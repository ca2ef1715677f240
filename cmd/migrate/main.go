// Command migrate manages the aisle database schema.
//
//	migrate [-source <url>] <up|down|version>
//
// up applies all pending migrations, down rolls back the most recent one,
// version prints the current schema version.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()

	if flag.NArg() != 1 {
		return errors.New("usage: migrate [-source <url>] <up|down|version>")
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		return errors.New("POSTGRES_URL environment variable is required")
	}

	m, err := migrate.New(*source, postgresURL)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("schema already up to date")
				return nil
			}
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("schema migrated")
		return nil

	case "down":
		if err := m.Steps(-1); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("nothing to roll back")
				return nil
			}
			return fmt.Errorf("roll back migration: %w", err)
		}
		logger.Info("rolled back one migration")
		return nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
