package routes

import (
	"context"

	"github.com/google/uuid"
	"github.com/lgulliver/openapi-gateway/internal/openapi"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

// DocumentStoreInterface defines the contract for the document registry
type DocumentStoreInterface interface {
	Get(version string) (*openapi.Entry, error)
	Rebuild(ctx context.Context, v apiversion.Version) (*openapi.Entry, error)
	Entries() []*openapi.Entry
}

// UserServiceInterface defines the contract for user services
type UserServiceInterface interface {
	Create(ctx context.Context, req *types.CreateUserRequest) (*types.User, error)
	Get(ctx context.Context, id uuid.UUID) (*types.User, error)
	List(ctx context.Context, page, perPage int) ([]types.User, *types.PaginationInfo, error)
}
