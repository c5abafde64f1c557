// Package main provides a CLI tool for running database migrations.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cloudwalk/yield-streamer/internal/config"
	"github.com/cloudwalk/yield-streamer/internal/storage"
)

const (
	postgresMigrationsPath   = "migrations/postgres"
	clickhouseMigrationsPath = "migrations/clickhouse"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "all", "Database to migrate: postgres, clickhouse, all")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	runPostgres := *dbType == "postgres" || *dbType == "all"
	runClickHouse := *dbType == "clickhouse" || *dbType == "all"
	if !runPostgres && !runClickHouse {
		log.Fatalf("Unknown database type: %s", *dbType)
	}

	if runPostgres {
		if err := migratePostgres(cfg, *action); err != nil {
			log.Fatalf("Postgres migration failed: %v", err)
		}
	}
	if runClickHouse {
		if err := migrateClickHouse(cfg, *action); err != nil {
			log.Fatalf("ClickHouse migration failed: %v", err)
		}
	}
}

func postgresURL(cfg *config.Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.Database,
	)
}

func migratePostgres(cfg *config.Config, action string) error {
	url := postgresURL(cfg)

	switch action {
	case "up":
		log.Println("Running Postgres migrations...")
		if err := storage.RunMigrations(url, postgresMigrationsPath); err != nil {
			return err
		}
		log.Println("Postgres migrations completed")
		return nil

	case "down":
		log.Println("Rolling back last Postgres migration...")
		if err := storage.RollbackMigrations(url, postgresMigrationsPath); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back")
		return nil

	case "version":
		version, dirty, err := storage.MigrationVersion(url, postgresMigrationsPath)
		if err != nil {
			return err
		}
		log.Printf("Postgres migration version: %d (dirty: %v)", version, dirty)
		return nil

	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

func migrateClickHouse(cfg *config.Config, action string) error {
	// ClickHouse DDL is idempotent CREATE IF NOT EXISTS; only "up" applies.
	if action != "up" {
		log.Printf("Skipping ClickHouse: action %q is not supported, only 'up'", action)
		return nil
	}

	if _, err := os.Stat(clickhouseMigrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", clickhouseMigrationsPath)
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	log.Println("Running ClickHouse migrations...")
	if err := storage.RunClickHouseMigrations(db, clickhouseMigrationsPath); err != nil {
		return err
	}
	log.Println("ClickHouse migrations completed")
	return nil
}
