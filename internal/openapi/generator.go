package openapi

import (
	"context"
	"fmt"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/openapi-gateway/internal/auth"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

// OperationSource provides the operations discovered by the routing layer
type OperationSource interface {
	Operations() []types.OperationDescriptor
}

// Generator runs the resolver, builder and transformer chain for one version
type Generator struct {
	resolver *Resolver
	builder  *Builder
	chain    *Chain
	source   OperationSource
	schemes  auth.SchemeLister
	now      func() time.Time
}

// NewGenerator creates a document generator
func NewGenerator(resolver *Resolver, builder *Builder, chain *Chain, source OperationSource, schemes auth.SchemeLister) *Generator {
	if chain == nil {
		chain = NewChain()
	}
	return &Generator{
		resolver: resolver,
		builder:  builder,
		chain:    chain,
		source:   source,
		schemes:  schemes,
		now:      time.Now,
	}
}

// Versions returns the versions documents are built for
func (g *Generator) Versions() []apiversion.Version {
	return g.resolver.Supported()
}

// Check partitions the current operations once so a bad version tag fails
// at startup rather than on the first build
func (g *Generator) Check() error {
	groups, err := g.resolver.Partition(g.source.Operations())
	if err != nil {
		return err
	}
	for _, key := range g.resolver.Unsupported(groups) {
		log.Warn().
			Str("version", key).
			Int("operations", len(groups[key])).
			Msg("Operations tagged with an unsupported version are not documented")
	}
	return nil
}

// Generate builds and transforms the document for v. The operation list is
// read fresh on every call.
func (g *Generator) Generate(ctx context.Context, v apiversion.Version) (*openapi3.T, error) {
	if !g.resolver.IsSupported(v) {
		return nil, fmt.Errorf("%w: version %s is not supported", ErrDocumentNotFound, v)
	}

	groups, err := g.resolver.Partition(g.source.Operations())
	if err != nil {
		return nil, err
	}

	doc, err := g.builder.Build(v, groups[v.String()])
	if err != nil {
		return nil, &TransformError{Transformer: "builder", Err: err}
	}

	return g.chain.Apply(ctx, doc, TransformContext{
		Version:      v,
		DocumentName: v.String(),
		Schemes:      g.schemes,
		Now:          g.now,
	})
}
