package types

import (
	"time"

	"github.com/google/uuid"
	pkgtypes "github.com/lgulliver/openapi-gateway/pkg/types"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// UserV1 is the user representation of API version 1
type UserV1 struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// UserV2 is the user representation of API version 2
type UserV2 struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserListV2 is a page of version 2 users
type UserListV2 struct {
	Data       []UserV2                `json:"data"`
	Pagination pkgtypes.PaginationInfo `json:"pagination"`
}

// NewUserV1 converts a stored user to its version 1 form
func NewUserV1(u *pkgtypes.User) UserV1 {
	return UserV1{ID: u.ID, Username: u.Username, Email: u.Email}
}

// NewUserV2 converts a stored user to its version 2 form
func NewUserV2(u *pkgtypes.User) UserV2 {
	return UserV2{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// DocumentLink describes one published document in the index
type DocumentLink struct {
	Version    string    `json:"version"`
	URL        string    `json:"url"`
	YAMLURL    string    `json:"yaml_url"`
	ETag       string    `json:"etag"`
	BuildID    string    `json:"build_id"`
	BuiltAt    time.Time `json:"built_at"`
	Restored   bool      `json:"restored"`
	Deprecated bool      `json:"deprecated"`
}

// DocumentIndex lists the published documents
type DocumentIndex struct {
	Documents []DocumentLink `json:"documents"`
}

// HealthStatus is the body of the health check
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
