package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/lgulliver/openapi-gateway/pkg/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Migrator applies the embedded SQL migrations to PostgreSQL
type Migrator struct {
	db            *sql.DB
	migrationsFS  fs.FS
	migrationsDir string
}

// Migration is one numbered migration file
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// NewMigrator connects to the configured database
func NewMigrator(cfg *config.DatabaseConfig, migrationsFS fs.FS, migrationsDir string) (*Migrator, error) {
	if cfg.Driver != "" && cfg.Driver != "postgres" {
		return nil, fmt.Errorf("sql migrations require postgres, configured driver is %s", cfg.Driver)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewMigratorWithDB(db, migrationsFS, migrationsDir), nil
}

// NewMigratorWithDB uses an existing connection
func NewMigratorWithDB(db *sql.DB, migrationsFS fs.FS, migrationsDir string) *Migrator {
	return &Migrator{
		db:            db,
		migrationsFS:  migrationsFS,
		migrationsDir: migrationsDir,
	}
}

// EnsureMigrationsTable creates the tracking table if it doesn't exist
func (m *Migrator) EnsureMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns the applied versions in ascending order
func (m *Migrator) GetAppliedMigrations() ([]int, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// LoadMigrations reads every NNN_name.sql file, ordered by version.
// Two files with the same version are an error.
func (m *Migrator) LoadMigrations() ([]*Migration, error) {
	entries, err := fs.ReadDir(m.migrationsFS, m.migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, err := m.parseMigrationFile(entry.Name())
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping invalid migration file")
			continue
		}
		if other, ok := seen[migration.Version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", migration.Version, other, entry.Name())
		}
		seen[migration.Version] = entry.Name()
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations not yet applied
func (m *Migrator) Pending() ([]*Migration, error) {
	if err := m.EnsureMigrationsTable(); err != nil {
		return nil, err
	}
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	return pending(migrations, applied), nil
}

func pending(migrations []*Migration, applied []int) []*Migration {
	done := make(map[int]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}

	var out []*Migration
	for _, migration := range migrations {
		if !done[migration.Version] {
			out = append(out, migration)
		}
	}
	return out
}

func (m *Migrator) parseMigrationFile(filename string) (*Migration, error) {
	prefix, rest, ok := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	if !ok || rest == "" {
		return nil, fmt.Errorf("invalid migration filename format: %s", filename)
	}

	version, err := strconv.Atoi(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version from filename %s: %w", filename, err)
	}

	content, err := fs.ReadFile(m.migrationsFS, path.Join(m.migrationsDir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
	}

	upSQL, downSQL := splitMigration(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil, fmt.Errorf("migration %s has no up section", filename)
	}

	return &Migration{
		Version: version,
		Name:    rest,
		UpSQL:   upSQL,
		DownSQL: downSQL,
	}, nil
}

// splitMigration separates the up and down sections. Lines before any
// marker belong to the up section.
func splitMigration(content string) (string, string) {
	var upLines, downLines []string
	inDown := false

	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case upMarker:
			inDown = false
			continue
		case downMarker:
			inDown = true
			continue
		}

		if inDown {
			downLines = append(downLines, line)
		} else {
			upLines = append(upLines, line)
		}
	}

	return strings.TrimSpace(strings.Join(upLines, "\n")), strings.TrimSpace(strings.Join(downLines, "\n"))
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	migrations, err := m.Pending()
	if err != nil {
		return err
	}

	if len(migrations) == 0 {
		log.Info().Msg("No pending migrations")
		return nil
	}

	log.Info().Int("count", len(migrations)).Msg("Running pending migrations")
	for _, migration := range migrations {
		if err := m.run(migration.UpSQL, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applied migration")
	}
	return nil
}

// Down rolls back the last applied migration
func (m *Migrator) Down() error {
	if err := m.EnsureMigrationsTable(); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Info().Msg("No migrations to roll back")
		return nil
	}
	last := applied[len(applied)-1]

	migrations, err := m.LoadMigrations()
	if err != nil {
		return err
	}

	var target *Migration
	for _, migration := range migrations {
		if migration.Version == last {
			target = migration
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration file for version %d not found", last)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %d (%s) has no down section", target.Version, target.Name)
	}

	if err := m.run(target.DownSQL, "DELETE FROM schema_migrations WHERE version = $1", target.Version); err != nil {
		return fmt.Errorf("failed to roll back migration %d (%s): %w", target.Version, target.Name, err)
	}

	log.Info().Int("version", target.Version).Str("name", target.Name).Msg("Rolled back migration")
	return nil
}

// run executes a migration body and its bookkeeping statement in one transaction
func (m *Migrator) run(body, record string, args ...interface{}) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(body); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec(record, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection
func (m *Migrator) Close() error {
	return m.db.Close()
}
