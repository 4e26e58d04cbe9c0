package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lgulliver/openapi-gateway/internal/openapi"
	"github.com/lgulliver/openapi-gateway/internal/storage"
	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("API gateway failed")
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "api-gateway",
		Usage: "Serve a versioned API together with its OpenAPI documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"GATEWAY_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:  "export",
				Usage: "Build every supported document and write it as JSON and YAML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "output directory, defaults to the configured storage path",
					},
				},
				Action: export,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	cfg.Logging.SetupLogging()
	return cfg, nil
}

func startApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app, err := newApplication(ctx, cfg)
	if err != nil {
		if errors.Is(err, openapi.ErrConfiguration) {
			return nil, cli.Exit(err.Error(), 2)
		}
		return nil, err
	}
	return app, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("default_version", cfg.OpenAPI.DefaultVersion).Msg("Starting API gateway")

	app, err := startApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	app.warmUp(ctx)
	go app.registry.Run(ctx, cfg.OpenAPI.RebuildInterval)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	log.Info().Msg("Server shutdown complete")
	return nil
}

func export(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	app, err := startApplication(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	written, err := exportDocuments(c.Context, app, c.String("out"))
	if err != nil {
		return err
	}
	log.Info().Strs("files", written).Msg("Documents exported")
	return nil
}

// exportDocuments builds every supported version and writes the results.
// Unlike serving, a single failed build fails the export.
func exportDocuments(ctx context.Context, app *application, dir string) ([]string, error) {
	if err := app.registry.RebuildAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to build documents: %w", err)
	}

	store, err := storage.NewStorageFactory(&app.cfg.Storage).CreateStorageAt(dir)
	if err != nil {
		return nil, err
	}
	return openapi.Export(ctx, app.registry.Entries(), store)
}
