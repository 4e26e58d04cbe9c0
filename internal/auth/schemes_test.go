package auth

import (
	"context"
	"testing"

	"github.com/lgulliver/openapi-gateway/internal/common"
	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/lgulliver/openapi-gateway/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *common.Database {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&types.AuthScheme{})
	require.NoError(t, err)

	return &common.Database{DB: db}
}

func providers(t *testing.T) map[string]SchemeProvider {
	return map[string]SchemeProvider{
		"memory":   NewMemoryProvider(),
		"database": NewDatabaseProvider(setupTestDB(t)),
	}
}

func TestProviders_AddListRemove(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, provider.AddScheme(ctx, "ApiKey", "ApiKeyHandler"))
			require.NoError(t, provider.AddScheme(ctx, "Bearer", "JwtBearer"))

			schemes, err := provider.ListSchemes(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"ApiKey", "Bearer"}, Names(schemes))

			require.NoError(t, provider.RemoveScheme(ctx, "ApiKey"))
			schemes, err = provider.ListSchemes(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"Bearer"}, Names(schemes))
			assert.Equal(t, "JwtBearer", schemes[0].HandlerType)
		})
	}
}

func TestProviders_AddReplacesHandlerType(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, provider.AddScheme(ctx, "Bearer", "JwtBearer"))
			require.NoError(t, provider.AddScheme(ctx, "Bearer", "OpaqueToken"))

			schemes, err := provider.ListSchemes(ctx)
			require.NoError(t, err)
			require.Len(t, schemes, 1)
			assert.Equal(t, "OpaqueToken", schemes[0].HandlerType)
		})
	}
}

func TestProviders_RemoveMissing(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			err := provider.RemoveScheme(context.Background(), "Bearer")
			assert.ErrorIs(t, err, ErrSchemeNotFound)
		})
	}
}

func TestProviders_Validation(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Error(t, provider.AddScheme(ctx, "", "JwtBearer"))
			assert.Error(t, provider.AddScheme(ctx, "Bearer", " "))
		})
	}
}

func TestMemoryProvider_CancelledContext(t *testing.T) {
	provider := NewMemoryProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.ListSchemes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeed(t *testing.T) {
	provider := NewMemoryProvider()
	ctx := context.Background()

	err := Seed(ctx, provider, []config.SchemeSeed{
		{Name: "Bearer", HandlerType: "JwtBearer"},
		{Name: "ApiKey", HandlerType: "ApiKey"},
	})
	require.NoError(t, err)

	schemes, err := provider.ListSchemes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ApiKey", "Bearer"}, Names(schemes))

	err = Seed(ctx, provider, []config.SchemeSeed{{Name: "Broken"}})
	assert.ErrorContains(t, err, "failed to seed scheme Broken")
}
