// Package main is the entry point for the Stockwarden database migration tool.
// It applies the SQL migrations embedded in the sqlite and postgres repositories.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prn-tf/stockwarden/internal/app"
	"github.com/prn-tf/stockwarden/internal/config"
	"github.com/prn-tf/stockwarden/internal/logging"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var errNoSchema = errors.New("the memory driver has no schema to migrate")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command := os.Args[1]; command {
	case "version":
		fmt.Printf("Stockwarden Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		err = withDatabase(ctx, func(db repository.Database) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			return printStatus(ctx, os.Stdout, db)
		})

	case "status":
		err = withDatabase(ctx, func(db repository.Database) error {
			return printStatus(ctx, os.Stdout, db)
		})

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withDatabase opens the configured database. The config file is taken from
// STOCKWARDEN_CONFIG when set.
func withDatabase(ctx context.Context, fn func(db repository.Database) error) error {
	cfg, err := config.Load(os.Getenv("STOCKWARDEN_CONFIG"))
	if err != nil {
		return err
	}
	cfg.Logging.Output = "stderr"

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	db, _, err := app.OpenDatabase(ctx, cfg.Database, logger.With().Str("component", "migrate").Logger())
	if err != nil {
		return err
	}
	if db == nil {
		return errNoSchema
	}
	defer db.Close()

	return fn(db)
}

func printStatus(ctx context.Context, w io.Writer, m repository.Migrator) error {
	states, err := m.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, s := range states {
		applied := "pending"
		if s.Applied && s.AppliedAt != nil {
			applied = s.AppliedAt.Format(time.RFC3339)
		} else if s.Applied {
			applied = "yes"
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	return tw.Flush()
}

func printUsage() {
	fmt.Println(`Stockwarden Migration Tool

Usage:
  stockwarden-migrate <command>

Commands:
  up          Apply all pending migrations
  status      Show applied and pending migrations
  version     Print version information
  help        Show this help message

Environment Variables:
  STOCKWARDEN_CONFIG            Path to the config file
  STOCKWARDEN_DATABASE_DRIVER   sqlite or postgres
  STOCKWARDEN_DATABASE_PATH     SQLite database file

Examples:
  stockwarden-migrate up
  STOCKWARDEN_DATABASE_DRIVER=postgres stockwarden-migrate status`)
}
