// Package auth exposes the authentication-scheme registry that document
// transformers query at build time.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/lgulliver/openapi-gateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// ErrSchemeNotFound is returned when removing a scheme that is not registered
var ErrSchemeNotFound = errors.New("authentication scheme not found")

// SchemeLister is the read-only view of the registry
type SchemeLister interface {
	ListSchemes(ctx context.Context) ([]types.AuthScheme, error)
}

// SchemeProvider is a registry whose schemes can change at runtime
type SchemeProvider interface {
	SchemeLister
	AddScheme(ctx context.Context, name, handlerType string) error
	RemoveScheme(ctx context.Context, name string) error
}

// MemoryProvider keeps schemes in process memory
type MemoryProvider struct {
	mu      sync.RWMutex
	schemes map[string]types.AuthScheme
}

// NewMemoryProvider creates an empty in-memory registry
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{schemes: make(map[string]types.AuthScheme)}
}

// ListSchemes returns the registered schemes ordered by name
func (p *MemoryProvider) ListSchemes(ctx context.Context) ([]types.AuthScheme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	schemes := make([]types.AuthScheme, 0, len(p.schemes))
	for _, s := range p.schemes {
		schemes = append(schemes, s)
	}
	sort.Slice(schemes, func(i, j int) bool {
		return schemes[i].Name < schemes[j].Name
	})
	return schemes, nil
}

// AddScheme registers or replaces a scheme
func (p *MemoryProvider) AddScheme(ctx context.Context, name, handlerType string) error {
	if err := validateScheme(name, handlerType); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.schemes[name] = types.AuthScheme{Name: name, HandlerType: handlerType}
	return nil
}

// RemoveScheme unregisters a scheme
func (p *MemoryProvider) RemoveScheme(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.schemes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrSchemeNotFound, name)
	}
	delete(p.schemes, name)
	return nil
}

// Seed registers the configured schemes
func Seed(ctx context.Context, provider SchemeProvider, seeds []config.SchemeSeed) error {
	for _, seed := range seeds {
		if err := provider.AddScheme(ctx, seed.Name, seed.HandlerType); err != nil {
			return fmt.Errorf("failed to seed scheme %s: %w", seed.Name, err)
		}
		log.Debug().Str("scheme", seed.Name).Str("handler_type", seed.HandlerType).Msg("authentication scheme registered")
	}
	return nil
}

// Names returns the scheme names in order
func Names(schemes []types.AuthScheme) []string {
	names := make([]string, len(schemes))
	for i, s := range schemes {
		names[i] = s.Name
	}
	return names
}

func validateScheme(name, handlerType string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("scheme name is required")
	}
	if strings.TrimSpace(handlerType) == "" {
		return fmt.Errorf("handler type is required for scheme %s", name)
	}
	return nil
}
