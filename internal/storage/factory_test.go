package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageFactory_CreateLocalStorage(t *testing.T) {
	factory := NewStorageFactory(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})

	storage, err := factory.CreateStorage()
	require.NoError(t, err)
	require.NotNil(t, storage)

	ctx := context.Background()
	require.NoError(t, storage.Store(ctx, "v2.json", strings.NewReader(`{"openapi":"3.0.3"}`), "application/json"))

	reader, err := storage.Retrieve(ctx, "v2.json")
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, `{"openapi":"3.0.3"}`, string(content))
}

func TestStorageFactory_CreateStorageAt(t *testing.T) {
	configured := t.TempDir()
	override := filepath.Join(t.TempDir(), "export")
	cfg := &config.StorageConfig{Type: "local", LocalPath: configured}
	factory := NewStorageFactory(cfg)

	storage, err := factory.CreateStorageAt(override)
	require.NoError(t, err)
	assert.Equal(t, override, storage.(*LocalStorage).basePath)
	assert.Equal(t, configured, cfg.LocalPath)

	storage, err = factory.CreateStorageAt("")
	require.NoError(t, err)
	assert.Equal(t, configured, storage.(*LocalStorage).basePath)
}

func TestStorageFactory_UnsupportedType(t *testing.T) {
	for _, storageType := range []string{"unsupported", "s3"} {
		storage, err := NewStorageFactory(&config.StorageConfig{Type: storageType}).CreateStorage()

		assert.Error(t, err)
		assert.Nil(t, storage)
		assert.Contains(t, err.Error(), "unsupported storage type")
	}
}
