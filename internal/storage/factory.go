package storage

import (
	"fmt"

	"github.com/lgulliver/openapi-gateway/pkg/config"
)

// StorageFactory creates storage instances based on configuration
type StorageFactory struct {
	config *config.StorageConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(config *config.StorageConfig) *StorageFactory {
	return &StorageFactory{config: config}
}

// CreateStorage creates a storage instance based on the configured type
func (sf *StorageFactory) CreateStorage() (BlobStorage, error) {
	switch sf.config.Type {
	case "", "local":
		local, err := NewLocalStorage(sf.config.LocalPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sf.config.Type)
	}
}

// CreateStorageAt is CreateStorage with the local path replaced by dir
func (sf *StorageFactory) CreateStorageAt(dir string) (BlobStorage, error) {
	cfg := *sf.config
	if dir != "" {
		cfg.LocalPath = dir
	}
	return NewStorageFactory(&cfg).CreateStorage()
}
