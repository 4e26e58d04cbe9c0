package routes

import (
	"context"

	"github.com/google/uuid"
	"github.com/lgulliver/openapi-gateway/internal/openapi"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockDocumentStore is a mock implementation of DocumentStoreInterface
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(version string) (*openapi.Entry, error) {
	args := m.Called(version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openapi.Entry), args.Error(1)
}

func (m *MockDocumentStore) Rebuild(ctx context.Context, v apiversion.Version) (*openapi.Entry, error) {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openapi.Entry), args.Error(1)
}

func (m *MockDocumentStore) Entries() []*openapi.Entry {
	args := m.Called()
	return args.Get(0).([]*openapi.Entry)
}

// MockUserService is a mock implementation of UserServiceInterface
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Create(ctx context.Context, req *types.CreateUserRequest) (*types.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, id uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context, page, perPage int) ([]types.User, *types.PaginationInfo, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]types.User), args.Get(1).(*types.PaginationInfo), args.Error(2)
}
