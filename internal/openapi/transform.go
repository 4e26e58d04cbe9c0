package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/openapi-gateway/internal/auth"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
)

// TransformContext is the read-only view a transformer gets of the build
type TransformContext struct {
	Version      apiversion.Version
	DocumentName string
	Schemes      auth.SchemeLister
	Now          func() time.Time
}

// Transformer mutates a document before it is published. A transformer may
// add to the document but must not remove paths or operations.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, doc *openapi3.T, tc TransformContext) (*openapi3.T, error)
}

// TransformerFunc adapts a function to the Transformer interface
type TransformerFunc struct {
	TransformerName string
	Fn              func(ctx context.Context, doc *openapi3.T, tc TransformContext) (*openapi3.T, error)
}

// Name returns the transformer name
func (f TransformerFunc) Name() string {
	return f.TransformerName
}

// Transform calls the wrapped function
func (f TransformerFunc) Transform(ctx context.Context, doc *openapi3.T, tc TransformContext) (*openapi3.T, error) {
	return f.Fn(ctx, doc, tc)
}

// Chain runs transformers in order, each on the previous one's output
type Chain struct {
	transformers []Transformer
}

// NewChain creates a chain from an ordered list of transformers
func NewChain(transformers ...Transformer) *Chain {
	return &Chain{transformers: append([]Transformer(nil), transformers...)}
}

// Names returns the transformer names in execution order
func (c *Chain) Names() []string {
	names := make([]string, len(c.transformers))
	for i, t := range c.transformers {
		names[i] = t.Name()
	}
	return names
}

// Apply runs the chain. The first failure aborts it and is returned as a
// *TransformError.
func (c *Chain) Apply(ctx context.Context, doc *openapi3.T, tc TransformContext) (*openapi3.T, error) {
	if tc.Now == nil {
		tc.Now = time.Now
	}

	for _, t := range c.transformers {
		if err := ctx.Err(); err != nil {
			return nil, &TransformError{Transformer: t.Name(), Err: err}
		}

		before := operationKeys(doc)
		next, err := t.Transform(ctx, doc, tc)
		if err != nil {
			return nil, &TransformError{Transformer: t.Name(), Err: err}
		}
		if next == nil {
			return nil, &TransformError{Transformer: t.Name(), Err: errors.New("returned no document")}
		}
		if missing := missingKeys(before, operationKeys(next)); len(missing) > 0 {
			return nil, &TransformError{
				Transformer: t.Name(),
				Err:         fmt.Errorf("removed operations: %s", strings.Join(missing, ", ")),
			}
		}

		log.Debug().
			Str("transformer", t.Name()).
			Str("version", tc.Version.String()).
			Msg("Applied document transformer")
		doc = next
	}
	return doc, nil
}

// OperationRef locates one operation within a document
type OperationRef struct {
	Path      string
	Method    string
	Operation *openapi3.Operation
}

// OperationsOf lists a document's operations sorted by path, then by the
// canonical method order
func OperationsOf(doc *openapi3.T) []OperationRef {
	if doc == nil || doc.Paths == nil {
		return nil
	}

	var refs []OperationRef
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			refs = append(refs, OperationRef{Path: path, Method: method, Operation: op})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Path != refs[j].Path {
			return refs[i].Path < refs[j].Path
		}
		return methodOrder[refs[i].Method] < methodOrder[refs[j].Method]
	})
	return refs
}

func operationKeys(doc *openapi3.T) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, ref := range OperationsOf(doc) {
		keys[ref.Method+" "+ref.Path] = struct{}{}
	}
	return keys
}

func missingKeys(before, after map[string]struct{}) []string {
	var missing []string
	for key := range before {
		if _, ok := after[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// deprecationNote is appended to the description of deprecated documents
const deprecationNote = "This API version is deprecated."

// NewDeprecationTransformer marks every operation of a deprecated version as
// deprecated. Documents of other versions pass through unchanged.
func NewDeprecationTransformer(deprecated []apiversion.Version) Transformer {
	return TransformerFunc{
		TransformerName: "deprecation",
		Fn: func(_ context.Context, doc *openapi3.T, tc TransformContext) (*openapi3.T, error) {
			if !apiversion.Contains(deprecated, tc.Version) {
				return doc, nil
			}
			for _, ref := range OperationsOf(doc) {
				ref.Operation.Deprecated = true
			}
			if doc.Info != nil && !strings.Contains(doc.Info.Description, deprecationNote) {
				doc.Info.Description = strings.TrimSpace(doc.Info.Description + "\n\n" + deprecationNote)
			}
			return doc, nil
		},
	}
}

// NewValidationTransformer fails the build when the document is not a valid
// OpenAPI document
func NewValidationTransformer() Transformer {
	return TransformerFunc{
		TransformerName: "validation",
		Fn: func(ctx context.Context, doc *openapi3.T, _ TransformContext) (*openapi3.T, error) {
			if err := doc.Validate(ctx); err != nil {
				return nil, fmt.Errorf("invalid document: %w", err)
			}
			return doc, nil
		},
	}
}
