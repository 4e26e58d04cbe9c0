package main

import (
	"testing"

	"github.com/lgulliver/openapi-gateway/pkg/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := migrate.NewMigratorWithDB(nil, migrationsFS, "migrations").LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migration versions must be contiguous")
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
	assert.Contains(t, migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS auth_schemes")
}
