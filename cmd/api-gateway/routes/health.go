package routes

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	apitypes "github.com/lgulliver/openapi-gateway/cmd/api-gateway/types"
	"github.com/lgulliver/openapi-gateway/internal/catalog"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) error

// HealthRoutes sets up the liveness endpoint. It carries no version and is
// documented under the default version.
func HealthRoutes(group *catalog.Group, checks map[string]HealthCheck) {
	group.GET("/health", types.OperationDescriptor{
		OperationID: "health",
		Summary:     "Health check",
		Tags:        []string{"system"},
		Responses: []types.ResponseDescriptor{
			{Status: http.StatusOK, Body: apitypes.HealthStatus{}},
			{Status: http.StatusServiceUnavailable, Body: apitypes.HealthStatus{}},
		},
	}, handleHealth(checks))
}

func handleHealth(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := apitypes.HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Services:  make(map[string]string, len(checks)),
		}
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status.Services[name] = "unhealthy: " + err.Error()
				status.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			status.Services[name] = "healthy"
		}
		c.JSON(code, status)
	}
}
