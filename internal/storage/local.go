package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalStorage writes documents below a directory on the local filesystem
type LocalStorage struct {
	basePath string
	mutex    sync.RWMutex
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Error().Err(err).Str("path", basePath).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Debug().Str("path", basePath).Msg("local storage initialized")
	return &LocalStorage{basePath: basePath}, nil
}

// Store writes content to a temporary file and renames it into place, so
// readers see either the previous file or the complete new one
func (ls *LocalStorage) Store(ctx context.Context, path string, content io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := ls.resolve(path)
	if err != nil {
		return err
	}

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	startTime := time.Now()
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(fullPath), filepath.Base(fullPath)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		tempFile.Close()
		os.Remove(tempPath)
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), content)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to write content")
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		return fmt.Errorf("failed to move file to final location: %w", err)
	}

	log.Info().
		Str("path", path).
		Str("content_type", contentType).
		Int64("bytes_written", written).
		Str("checksum", hex.EncodeToString(hasher.Sum(nil))).
		Dur("duration", time.Since(startTime)).
		Msg("file stored")

	return nil
}

// Retrieve opens the file at path
func (ls *LocalStorage) Retrieve(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := ls.resolve(path)
	if err != nil {
		return nil, err
	}

	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Exists checks whether a file is stored at path
func (ls *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fullPath, err := ls.resolve(path)
	if err != nil {
		return false, err
	}

	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// List returns the slash-separated paths of the files under prefix
func (ls *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	root, err := ls.resolve(prefix)
	if err != nil {
		return nil, err
	}

	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.Contains(d.Name(), ".tmp.") {
			return nil
		}
		rel, err := filepath.Rel(ls.basePath, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// resolve maps a storage path to the filesystem, rejecting paths that
// would leave the base directory
func (ls *LocalStorage) resolve(path string) (string, error) {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid storage path: %s", path)
		}
	}
	return filepath.Join(ls.basePath, filepath.FromSlash(path)), nil
}
