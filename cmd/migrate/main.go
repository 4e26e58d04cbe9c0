package main

import (
	"embed"
	"flag"
	"fmt"
	"os"

	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/lgulliver/openapi-gateway/pkg/migrate"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML configuration file")
		up         = flag.Bool("up", false, "Run pending migrations")
		down       = flag.Bool("down", false, "Roll back the last migration")
		status     = flag.Bool("status", false, "List pending migrations")
	)
	flag.Parse()

	if !*up && !*down && !*status {
		fmt.Printf("Usage: %s [-config FILE] [-up | -down | -status]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Logging.SetupLogging()

	migrator, err := migrate.NewMigrator(&cfg.Database, migrationsFS, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}
	defer migrator.Close()

	switch {
	case *status:
		pending, err := migrator.Pending()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migration status")
		}
		for _, m := range pending {
			fmt.Printf("%03d %s\n", m.Version, m.Name)
		}
		log.Info().Int("pending", len(pending)).Msg("Migration status")
	case *up:
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Migrations completed successfully")
	case *down:
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back migration")
		}
		log.Info().Msg("Rollback completed successfully")
	}
}
