// Package users backs the sample versioned API whose routes feed the
// document pipeline.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/lgulliver/openapi-gateway/internal/common"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

var (
	// ErrUserNotFound is returned when no user has the requested ID
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the username or email is taken
	ErrUserExists = errors.New("user already exists")
)

// Service handles user operations
type Service struct {
	DB *common.Database
}

// NewService creates a new user service
func NewService(db *common.Database) *Service {
	return &Service{DB: db}
}

// Create registers a new user
func (s *Service) Create(ctx context.Context, req *types.CreateUserRequest) (*types.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.DB.WithContext(ctx).Model(&types.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	user := &types.User{
		Username: username,
		Email:    email,
		FullName: strings.TrimSpace(req.FullName),
		IsActive: true,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("User created")
	return user, nil
}

// Get returns one user by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*types.User, error) {
	var user types.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns a page of users ordered by username
func (s *Service) List(ctx context.Context, page, perPage int) ([]types.User, *types.PaginationInfo, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&types.User{}).Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to count users: %w", err)
	}

	var users []types.User
	if err := s.DB.WithContext(ctx).
		Order("username ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to list users: %w", err)
	}

	pagination := &types.PaginationInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	}
	return users, pagination, nil
}
