package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
)

// Config holds the configuration for all services
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	OpenAPI  OpenAPIConfig  `yaml:"openapi"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres, sqlite
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"dbname"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds blob storage configuration used by document export
type StorageConfig struct {
	Type      string `yaml:"type"` // local
	LocalPath string `yaml:"local_path"`
}

// AuthConfig describes where the authentication-scheme registry lives
type AuthConfig struct {
	SchemeSource string `yaml:"scheme_source"` // memory, database
	// Schemes seeds the registry, e.g. "Bearer:JwtBearer,ApiKey:ApiKey"
	Schemes string `yaml:"schemes"`
}

// OpenAPIConfig holds document generation settings
type OpenAPIConfig struct {
	Title              string        `yaml:"title"`
	Description        string        `yaml:"description"`
	DefaultVersion     string        `yaml:"default_version"`
	SupportedVersions  string        `yaml:"supported_versions"`
	ExposedVersions    string        `yaml:"exposed_versions"`
	DeprecatedVersions string        `yaml:"deprecated_versions"`
	VersionSources     string        `yaml:"version_sources"` // tag, path
	SubstituteVersion  bool          `yaml:"substitute_version"`
	BuildTimeout       time.Duration `yaml:"build_timeout"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	LookupAttempts     int           `yaml:"lookup_attempts"`
	LookupDelay        time.Duration `yaml:"lookup_delay"`
	RebuildInterval    time.Duration `yaml:"rebuild_interval"`
	PreferredSchemes   string        `yaml:"preferred_schemes"`
	UIEnabled          bool          `yaml:"ui_enabled"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       5432,
			User:       "gateway",
			Password:   "password",
			DBName:     "gateway",
			SSLMode:    "disable",
			SQLitePath: "gateway.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    6379,
		},
		Storage: StorageConfig{
			Type:      "local",
			LocalPath: "./openapi",
		},
		Auth: AuthConfig{
			SchemeSource: "memory",
			Schemes:      "Bearer:JwtBearer",
		},
		OpenAPI: OpenAPIConfig{
			Title:             "Sample API",
			Description:       "Versioned sample API",
			DefaultVersion:    "v1",
			SupportedVersions: "v1,v2",
			ExposedVersions:   "v2",
			VersionSources:    "tag,path",
			SubstituteVersion: true,
			BuildTimeout:      10 * time.Second,
			LookupTimeout:     5 * time.Second,
			LookupAttempts:    3,
			LookupDelay:       200 * time.Millisecond,
			PreferredSchemes:  "Bearer",
			UIEnabled:         true,
			CacheTTL:          24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load reads an optional YAML file and then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.SQLitePath = getEnv("DB_SQLITE_PATH", c.Database.SQLitePath)

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Storage.Type = getEnv("STORAGE_TYPE", c.Storage.Type)
	c.Storage.LocalPath = getEnv("STORAGE_LOCAL_PATH", c.Storage.LocalPath)

	c.Auth.SchemeSource = getEnv("AUTH_SCHEME_SOURCE", c.Auth.SchemeSource)
	c.Auth.Schemes = getEnv("AUTH_SCHEMES", c.Auth.Schemes)

	c.OpenAPI.Title = getEnv("OPENAPI_TITLE", c.OpenAPI.Title)
	c.OpenAPI.Description = getEnv("OPENAPI_DESCRIPTION", c.OpenAPI.Description)
	c.OpenAPI.DefaultVersion = getEnv("OPENAPI_DEFAULT_VERSION", c.OpenAPI.DefaultVersion)
	c.OpenAPI.SupportedVersions = getEnv("OPENAPI_SUPPORTED_VERSIONS", c.OpenAPI.SupportedVersions)
	c.OpenAPI.ExposedVersions = getEnv("OPENAPI_EXPOSED_VERSIONS", c.OpenAPI.ExposedVersions)
	c.OpenAPI.DeprecatedVersions = getEnv("OPENAPI_DEPRECATED_VERSIONS", c.OpenAPI.DeprecatedVersions)
	c.OpenAPI.VersionSources = getEnv("OPENAPI_VERSION_SOURCES", c.OpenAPI.VersionSources)
	c.OpenAPI.SubstituteVersion = getEnvBool("OPENAPI_SUBSTITUTE_VERSION", c.OpenAPI.SubstituteVersion)
	c.OpenAPI.BuildTimeout = getEnvDuration("OPENAPI_BUILD_TIMEOUT", c.OpenAPI.BuildTimeout)
	c.OpenAPI.LookupTimeout = getEnvDuration("OPENAPI_LOOKUP_TIMEOUT", c.OpenAPI.LookupTimeout)
	c.OpenAPI.LookupAttempts = getEnvInt("OPENAPI_LOOKUP_ATTEMPTS", c.OpenAPI.LookupAttempts)
	c.OpenAPI.LookupDelay = getEnvDuration("OPENAPI_LOOKUP_DELAY", c.OpenAPI.LookupDelay)
	c.OpenAPI.RebuildInterval = getEnvDuration("OPENAPI_REBUILD_INTERVAL", c.OpenAPI.RebuildInterval)
	c.OpenAPI.PreferredSchemes = getEnv("OPENAPI_PREFERRED_SCHEMES", c.OpenAPI.PreferredSchemes)
	c.OpenAPI.UIEnabled = getEnvBool("OPENAPI_UI_ENABLED", c.OpenAPI.UIEnabled)
	c.OpenAPI.CacheTTL = getEnvDuration("OPENAPI_CACHE_TTL", c.OpenAPI.CacheTTL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate checks the configuration for values the gateway cannot serve with
func (c *Config) Validate() error {
	versions, err := c.OpenAPI.Versions()
	if err != nil {
		return err
	}

	switch c.Auth.SchemeSource {
	case "memory", "database":
	default:
		return fmt.Errorf("unsupported auth scheme source: %s", c.Auth.SchemeSource)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if _, err := c.Auth.ParseSchemes(); err != nil {
		return err
	}

	if c.OpenAPI.LookupTimeout <= 0 {
		return fmt.Errorf("openapi lookup timeout must be positive, got %s", c.OpenAPI.LookupTimeout)
	}
	if c.OpenAPI.LookupAttempts < 1 {
		return fmt.Errorf("openapi lookup attempts must be at least 1, got %d", c.OpenAPI.LookupAttempts)
	}

	for _, source := range versions.Sources {
		if source != "tag" && source != "path" {
			return fmt.Errorf("unsupported version source: %s", source)
		}
	}

	return nil
}

// VersionSet is the parsed form of the version settings
type VersionSet struct {
	Default    apiversion.Version
	Supported  []apiversion.Version
	Exposed    []apiversion.Version
	Deprecated []apiversion.Version
	Sources    []string
}

// Versions parses and cross-checks the configured versions
func (o *OpenAPIConfig) Versions() (*VersionSet, error) {
	def, err := apiversion.Parse(o.DefaultVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid default version: %w", err)
	}

	supported, err := apiversion.ParseList(o.SupportedVersions)
	if err != nil {
		return nil, fmt.Errorf("invalid supported versions: %w", err)
	}
	if len(supported) == 0 {
		return nil, fmt.Errorf("no supported versions configured")
	}
	if !apiversion.Contains(supported, def) {
		return nil, fmt.Errorf("default version %s is not among supported versions %v", def, apiversion.Strings(supported))
	}

	exposed, err := apiversion.ParseList(o.ExposedVersions)
	if err != nil {
		return nil, fmt.Errorf("invalid exposed versions: %w", err)
	}
	if len(exposed) == 0 {
		exposed = supported
	}

	deprecated, err := apiversion.ParseList(o.DeprecatedVersions)
	if err != nil {
		return nil, fmt.Errorf("invalid deprecated versions: %w", err)
	}

	for _, list := range [][]apiversion.Version{exposed, deprecated} {
		for _, v := range list {
			if !apiversion.Contains(supported, v) {
				return nil, fmt.Errorf("version %s is not among supported versions %v", v, apiversion.Strings(supported))
			}
		}
	}

	return &VersionSet{
		Default:    def,
		Supported:  supported,
		Exposed:    exposed,
		Deprecated: deprecated,
		Sources:    splitList(o.VersionSources),
	}, nil
}

// PreferredSchemeList returns the scheme names the reference UI pre-selects
func (o *OpenAPIConfig) PreferredSchemeList() []string {
	return splitList(o.PreferredSchemes)
}

// SchemeSeed is one configured authentication scheme
type SchemeSeed struct {
	Name        string
	HandlerType string
}

// ParseSchemes parses "Name:HandlerType" pairs; the handler type defaults to the name
func (a *AuthConfig) ParseSchemes() ([]SchemeSeed, error) {
	var seeds []SchemeSeed
	for _, item := range splitList(a.Schemes) {
		name, handler, _ := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		handler = strings.TrimSpace(handler)
		if name == "" {
			return nil, fmt.Errorf("invalid auth scheme entry: %q", item)
		}
		if handler == "" {
			handler = name
		}
		seeds = append(seeds, SchemeSeed{Name: name, HandlerType: handler})
	}
	return seeds, nil
}

// DatabaseURL returns a PostgreSQL connection string
func (d *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisAddr returns the Redis address
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SetupLogging configures the global zerolog logger
func (l *LoggingConfig) SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if l.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
