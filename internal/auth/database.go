package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lgulliver/openapi-gateway/internal/common"
	"github.com/lgulliver/openapi-gateway/pkg/types"
	"gorm.io/gorm"
)

// DatabaseProvider reads schemes from the auth_schemes table so that
// several gateway replicas observe the same registry
type DatabaseProvider struct {
	db *common.Database
}

// NewDatabaseProvider creates a database backed registry
func NewDatabaseProvider(db *common.Database) *DatabaseProvider {
	return &DatabaseProvider{db: db}
}

// ListSchemes returns the registered schemes ordered by name
func (p *DatabaseProvider) ListSchemes(ctx context.Context) ([]types.AuthScheme, error) {
	var schemes []types.AuthScheme
	if err := p.db.WithContext(ctx).Order("name").Find(&schemes).Error; err != nil {
		return nil, fmt.Errorf("failed to list authentication schemes: %w", err)
	}
	return schemes, nil
}

// AddScheme registers or updates a scheme
func (p *DatabaseProvider) AddScheme(ctx context.Context, name, handlerType string) error {
	if err := validateScheme(name, handlerType); err != nil {
		return err
	}

	var existing types.AuthScheme
	err := p.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	switch {
	case err == nil:
		if err := p.db.WithContext(ctx).Model(&existing).Update("handler_type", handlerType).Error; err != nil {
			return fmt.Errorf("failed to update authentication scheme: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		scheme := &types.AuthScheme{Name: name, HandlerType: handlerType}
		if err := p.db.WithContext(ctx).Create(scheme).Error; err != nil {
			return fmt.Errorf("failed to create authentication scheme: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("failed to find authentication scheme: %w", err)
	}
}

// RemoveScheme deletes a scheme by name
func (p *DatabaseProvider) RemoveScheme(ctx context.Context, name string) error {
	result := p.db.WithContext(ctx).Where("name = ?", name).Delete(&types.AuthScheme{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove authentication scheme: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSchemeNotFound, name)
	}
	return nil
}
