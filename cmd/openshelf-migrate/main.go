// Package main is the entry point for the OpenShelf migration tool.
// It applies embedded schema migrations for either database backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/database"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("OpenShelf Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		withDatabase(func(ctx context.Context, db *database.Database) error {
			if err := db.Migrator.Migrate(ctx); err != nil {
				return err
			}
			version, err := db.Migrator.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("migrations applied, schema at version %d\n", version)
			return nil
		})

	case "status":
		withDatabase(func(ctx context.Context, db *database.Database) error {
			version, err := db.Migrator.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("schema version: %d\n", version)
			return nil
		})

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// withDatabase opens the configured backend, runs fn, and exits
// non-zero on failure.
func withDatabase(fn func(context.Context, *database.Database) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	configPath := ""
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := fn(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`OpenShelf Migration Tool

Usage:
  openshelf-migrate <command> [config-path]

Commands:
  up          Apply all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message

Configuration comes from the same config file and OPENSHELF_*
environment variables as the server.

Examples:
  openshelf-migrate up
  openshelf-migrate up ./configs/config.yaml
  openshelf-migrate status`)
}
