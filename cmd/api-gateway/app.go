package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lgulliver/openapi-gateway/cmd/api-gateway/middleware"
	"github.com/lgulliver/openapi-gateway/cmd/api-gateway/routes"
	"github.com/lgulliver/openapi-gateway/internal/auth"
	"github.com/lgulliver/openapi-gateway/internal/catalog"
	"github.com/lgulliver/openapi-gateway/internal/common"
	"github.com/lgulliver/openapi-gateway/internal/openapi"
	"github.com/lgulliver/openapi-gateway/internal/users"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// application holds the wired services of one gateway process
type application struct {
	cfg       *config.Config
	versions  *config.VersionSet
	db        *common.Database
	cache     *common.Cache
	schemes   auth.SchemeProvider
	catalog   *catalog.Catalog
	generator *openapi.Generator
	registry  *openapi.Registry
	router    *gin.Engine
}

// newApplication connects to the backing services and registers every route.
// Configuration errors are returned wrapped in openapi.ErrConfiguration.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", openapi.ErrConfiguration, err)
	}
	versions, err := cfg.OpenAPI.Versions()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", openapi.ErrConfiguration, err)
	}

	app := &application{cfg: cfg, versions: versions}

	app.db, err = common.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := app.db.Migrate(); err != nil {
		app.close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.Redis.Enabled {
		cache, err := common.NewCache(&cfg.Redis)
		if err != nil {
			// documents are still served from memory
			log.Warn().Err(err).Msg("Redis unavailable, documents will not be published")
		} else {
			app.cache = cache
		}
	}

	if err := app.setupSchemes(ctx); err != nil {
		app.close()
		return nil, err
	}
	if err := app.setupRouter(); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (a *application) setupSchemes(ctx context.Context) error {
	switch a.cfg.Auth.SchemeSource {
	case "database":
		a.schemes = auth.NewDatabaseProvider(a.db)
	default:
		a.schemes = auth.NewMemoryProvider()
	}

	seeds, err := a.cfg.Auth.ParseSchemes()
	if err != nil {
		return fmt.Errorf("%w: %w", openapi.ErrConfiguration, err)
	}
	return auth.Seed(ctx, a.schemes, seeds)
}

// setupRouter registers the API first so the catalog is complete before the
// document pipeline is checked against it
func (a *application) setupRouter() error {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.ReportAPIVersions(a.versions.Supported, a.versions.Deprecated))

	a.catalog = catalog.New()
	routes.HealthRoutes(a.catalog.Unversioned(router, ""), a.healthChecks())
	routes.UserRoutes(
		a.catalog.Versioned(router, "/api", apiversion.New(1, 0)),
		a.catalog.Versioned(router, "/api", apiversion.New(2, 0)),
		users.NewService(a.db),
	)

	generator, err := newGenerator(a.cfg, a.versions, a.catalog, a.schemes)
	if err != nil {
		return err
	}
	if err := generator.Check(); err != nil {
		return err
	}
	a.generator = generator

	opts := []openapi.RegistryOption{openapi.WithBuildTimeout(a.cfg.OpenAPI.BuildTimeout)}
	if a.cache != nil {
		opts = append(opts, openapi.WithPublisher(openapi.NewCachePublisher(a.cache, a.cfg.OpenAPI.CacheTTL)))
	}
	a.registry = openapi.NewRegistry(generator, opts...)

	routes.DocsRoutes(router, a.registry, routes.DocsConfig{
		Title:            a.cfg.OpenAPI.Title,
		Exposed:          a.versions.Exposed,
		Deprecated:       a.versions.Deprecated,
		PreferredSchemes: a.cfg.OpenAPI.PreferredSchemeList(),
		UIEnabled:        a.cfg.OpenAPI.UIEnabled,
	})

	a.router = router
	return nil
}

// newGenerator assembles the resolver, builder and transformer chain.
// Validation runs last so the published document is the one checked.
func newGenerator(cfg *config.Config, versions *config.VersionSet, source openapi.OperationSource, schemes auth.SchemeLister) (*openapi.Generator, error) {
	extract, err := openapi.ExtractorFor(versions.Sources)
	if err != nil {
		return nil, err
	}
	resolver, err := openapi.NewResolver(versions.Default, versions.Supported,
		openapi.WithExtractor(extract),
		openapi.WithVersionSubstitution(cfg.OpenAPI.SubstituteVersion),
	)
	if err != nil {
		return nil, err
	}

	builder := openapi.NewBuilder(openapi.DocumentInfo{
		Title:       cfg.OpenAPI.Title,
		Description: cfg.OpenAPI.Description,
	})
	chain := openapi.NewChain(
		openapi.NewDeprecationTransformer(versions.Deprecated),
		openapi.NewBearerSecuritySchemeTransformer(
			openapi.WithLookupTimeout(cfg.OpenAPI.LookupTimeout),
			openapi.WithLookupRetry(cfg.OpenAPI.LookupAttempts, cfg.OpenAPI.LookupDelay),
		),
		openapi.NewValidationTransformer(),
	)

	return openapi.NewGenerator(resolver, builder, chain, source, schemes), nil
}

func (a *application) healthChecks() map[string]routes.HealthCheck {
	checks := map[string]routes.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.cache != nil {
		checks["redis"] = func(ctx context.Context) error {
			_, err := a.cache.Exists(ctx, "health")
			return err
		}
	}
	return checks
}

// warmUp restores previously published documents and then builds every
// supported version. Build failures are logged, not returned.
func (a *application) warmUp(ctx context.Context) {
	if a.cache != nil {
		restored, err := a.registry.Restore(ctx, openapi.NewCachePublisher(a.cache, a.cfg.OpenAPI.CacheTTL))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to restore published documents")
		} else if restored > 0 {
			log.Info().Int("documents", restored).Msg("Restored published documents")
		}
	}

	if err := a.registry.RebuildAll(ctx); err != nil {
		if errors.Is(err, openapi.ErrConfiguration) {
			log.Error().Err(err).Msg("Document configuration error")
			return
		}
		log.Warn().Err(err).Msg("Some documents could not be built, previous versions are kept")
	}
}

func (a *application) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
	}
}
