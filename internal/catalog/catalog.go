// Package catalog records the operations registered on the gin router so the
// document pipeline can discover them.
package catalog

import (
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

// VersionPlaceholder is substituted with the version segment in route templates
const VersionPlaceholder = "{version}"

// Catalog is a concurrency-safe list of discovered operations
type Catalog struct {
	mu         sync.RWMutex
	operations []types.OperationDescriptor
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{}
}

// Add records an operation
func (c *Catalog) Add(op types.OperationDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations = append(c.operations, op)
}

// Operations returns a snapshot of the recorded operations in registration order
func (c *Catalog) Operations() []types.OperationDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.OperationDescriptor, len(c.operations))
	copy(out, c.operations)
	return out
}

// Len returns the number of recorded operations
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.operations)
}

// Group registers handlers on a gin router group and records them
type Group struct {
	routes   *gin.RouterGroup
	template string
	version  string
	catalog  *Catalog
}

// Versioned creates the URL-segment group prefix/v{segment}, e.g. /api/v2,
// whose operations are tagged with v and recorded under prefix/v{version}
func (c *Catalog) Versioned(router gin.IRouter, prefix string, v apiversion.Version) *Group {
	prefix = strings.TrimRight(prefix, "/")
	return &Group{
		routes:   router.Group(prefix + "/v" + v.Segment()),
		template: prefix + "/v" + VersionPlaceholder,
		version:  v.String(),
		catalog:  c,
	}
}

// Unversioned creates a group whose operations carry no version tag
func (c *Catalog) Unversioned(router gin.IRouter, prefix string) *Group {
	return &Group{
		routes:   router.Group(prefix),
		template: strings.TrimRight(prefix, "/"),
		catalog:  c,
	}
}

// Use adds middleware to the underlying router group
func (g *Group) Use(middleware ...gin.HandlerFunc) *Group {
	g.routes.Use(middleware...)
	return g
}

// Handle registers the handlers and records op under the group's template
func (g *Group) Handle(method, relativePath string, op types.OperationDescriptor, handlers ...gin.HandlerFunc) {
	g.routes.Handle(method, relativePath, handlers...)

	op.Method = method
	op.Path = joinPaths(g.template, relativePath)
	if op.Version == "" {
		op.Version = g.version
	}
	g.catalog.Add(op)
}

// GET is a shortcut for Handle(http.MethodGet, ...)
func (g *Group) GET(relativePath string, op types.OperationDescriptor, handlers ...gin.HandlerFunc) {
	g.Handle(http.MethodGet, relativePath, op, handlers...)
}

// POST is a shortcut for Handle(http.MethodPost, ...)
func (g *Group) POST(relativePath string, op types.OperationDescriptor, handlers ...gin.HandlerFunc) {
	g.Handle(http.MethodPost, relativePath, op, handlers...)
}

// PUT is a shortcut for Handle(http.MethodPut, ...)
func (g *Group) PUT(relativePath string, op types.OperationDescriptor, handlers ...gin.HandlerFunc) {
	g.Handle(http.MethodPut, relativePath, op, handlers...)
}

// DELETE is a shortcut for Handle(http.MethodDelete, ...)
func (g *Group) DELETE(relativePath string, op types.OperationDescriptor, handlers ...gin.HandlerFunc) {
	g.Handle(http.MethodDelete, relativePath, op, handlers...)
}

func joinPaths(base, relative string) string {
	if relative == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	joined := path.Join("/", base, relative)
	if strings.HasSuffix(relative, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}
