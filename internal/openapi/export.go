package openapi

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/openapi-gateway/internal/storage"
	"github.com/lgulliver/openapi-gateway/pkg/utils"
)

// Export writes {version}.json and {version}.yaml for every entry and
// returns the written paths
func Export(ctx context.Context, entries []*Entry, store storage.BlobStorage) ([]string, error) {
	var written []string
	for _, entry := range entries {
		yamlData, err := DocumentYAML(entry.JSON)
		if err != nil {
			return written, fmt.Errorf("failed to convert document %s to yaml: %w", entry.Version, err)
		}

		files := []struct {
			path        string
			data        []byte
			contentType string
		}{
			{entry.Version.String() + ".json", entry.JSON, "application/json"},
			{entry.Version.String() + ".yaml", yamlData, "application/yaml"},
		}
		for _, f := range files {
			if err := store.Store(ctx, f.path, bytes.NewReader(f.data), f.contentType); err != nil {
				return written, fmt.Errorf("failed to export %s: %w", f.path, err)
			}
			written = append(written, f.path)
		}

		log.Info().
			Str("version", entry.Version.String()).
			Str("etag", entry.ETag).
			Str("size", utils.FormatBytes(int64(len(entry.JSON)))).
			Msg("Document exported")
	}
	return written, nil
}
