package openapi

import (
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/google/uuid"

	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

// OpenAPIVersion is the OpenAPI specification version of built documents
const OpenAPIVersion = "3.0.3"

// methodOrder is the canonical order of operations under one path
var methodOrder = map[string]int{
	http.MethodGet:     0,
	http.MethodPost:    1,
	http.MethodPut:     2,
	http.MethodPatch:   3,
	http.MethodDelete:  4,
	http.MethodHead:    5,
	http.MethodOptions: 6,
	http.MethodTrace:   7,
}

var pathParamPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

var uuidType = reflect.TypeOf(uuid.UUID{})

// DocumentInfo holds document-level metadata shared by every version
type DocumentInfo struct {
	Title       string
	Description string
	Servers     []string
	// SecuritySchemes are declared in every document, e.g. an ApiKey scheme
	// referenced by pre-declared operation security
	SecuritySchemes openapi3.SecuritySchemes
}

// Builder assembles one document per version from operation descriptors.
// It holds no mutable state and may be shared by concurrent builds.
type Builder struct {
	info DocumentInfo
}

// NewBuilder creates a new document builder
func NewBuilder(info DocumentInfo) *Builder {
	return &Builder{info: info}
}

// schemaGenerator wraps a per-build openapi3gen generator, which caches types
// and is not safe for concurrent use
type schemaGenerator struct {
	gen *openapi3gen.Generator
}

func newSchemaGenerator() *schemaGenerator {
	return &schemaGenerator{
		gen: openapi3gen.NewGenerator(
			openapi3gen.SchemaCustomizer(func(name string, t reflect.Type, tag reflect.StructTag, schema *openapi3.Schema) error {
				if t == uuidType {
					*schema = *openapi3.NewUUIDSchema()
				}
				return nil
			}),
		),
	}
}

func (g *schemaGenerator) schemaFor(value interface{}) (*openapi3.SchemaRef, error) {
	return g.gen.NewSchemaRefForValue(value, nil)
}

// Build produces the document for version v. The operations must already be
// resolved to v; the output is identical for identical input.
func (b *Builder) Build(v apiversion.Version, ops []types.OperationDescriptor) (*openapi3.T, error) {
	sorted, err := b.normalize(v, ops)
	if err != nil {
		return nil, err
	}

	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       strings.TrimSpace(b.info.Title + " " + v.String()),
			Description: b.info.Description,
			Version:     v.String(),
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{},
	}
	for _, server := range b.info.Servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: server})
	}
	if len(b.info.SecuritySchemes) > 0 {
		doc.Components.SecuritySchemes = make(openapi3.SecuritySchemes, len(b.info.SecuritySchemes))
		for name, ref := range b.info.SecuritySchemes {
			doc.Components.SecuritySchemes[name] = ref
		}
	}

	gen := newSchemaGenerator()
	tags := make(map[string]struct{})
	for _, op := range sorted {
		operation, err := b.operation(gen, op)
		if err != nil {
			return nil, err
		}
		doc.AddOperation(op.Path, op.Method, operation)
		for _, tag := range op.Tags {
			tags[tag] = struct{}{}
		}
	}

	names := make([]string, 0, len(tags))
	for tag := range tags {
		names = append(names, tag)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: name})
	}

	return doc, nil
}

// normalize validates the operations and returns copies in document order
func (b *Builder) normalize(v apiversion.Version, ops []types.OperationDescriptor) ([]types.OperationDescriptor, error) {
	out := make([]types.OperationDescriptor, 0, len(ops))
	seen := make(map[string]struct{}, len(ops))

	for _, op := range ops {
		op.Method = strings.ToUpper(strings.TrimSpace(op.Method))
		if _, ok := methodOrder[op.Method]; !ok {
			return nil, fmt.Errorf("%w: unsupported method %q on %s", ErrInvalidOperation, op.Method, op.Path)
		}

		opVersion, err := apiversion.Parse(op.Version)
		if err != nil || !opVersion.Equal(v) {
			return nil, fmt.Errorf("%w: %s %s has version %q, document is %s",
				ErrInvalidOperation, op.Method, op.Path, op.Version, v)
		}

		op.Path = NormalizePath(op.Path)
		key := op.Method + " " + op.Path
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate operation %s", ErrInvalidOperation, key)
		}
		seen[key] = struct{}{}
		out = append(out, op)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return methodOrder[out[i].Method] < methodOrder[out[j].Method]
	})
	return out, nil
}

func (b *Builder) operation(gen *schemaGenerator, op types.OperationDescriptor) (*openapi3.Operation, error) {
	operation := openapi3.NewOperation()
	operation.OperationID = op.OperationID
	operation.Summary = op.Summary
	operation.Description = op.Description
	operation.Deprecated = op.Deprecated
	if len(op.Tags) > 0 {
		operation.Tags = append([]string(nil), op.Tags...)
	}

	declared := make(map[string]struct{})
	for _, p := range op.Parameters {
		param, err := newParameter(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrInvalidOperation, op.Method, op.Path, err)
		}
		operation.AddParameter(param)
		if param.In == openapi3.ParameterInPath {
			declared[param.Name] = struct{}{}
		}
	}
	for _, name := range PathParameters(op.Path) {
		if _, ok := declared[name]; ok {
			continue
		}
		operation.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}

	if op.RequestBody != nil {
		ref, err := gen.schemaFor(op.RequestBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s request body: %w", ErrInvalidOperation, op.Method, op.Path, err)
		}
		operation.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
		}
	}

	responses, err := b.responses(gen, op)
	if err != nil {
		return nil, err
	}
	operation.Responses = responses

	if len(op.Security) > 0 {
		security := openapi3.NewSecurityRequirements()
		for _, requirement := range op.Security {
			req := openapi3.NewSecurityRequirement()
			for name, scopes := range requirement {
				req.Authenticate(name, scopes...)
			}
			security.With(req)
		}
		operation.Security = security
	}

	return operation, nil
}

func (b *Builder) responses(gen *schemaGenerator, op types.OperationDescriptor) (*openapi3.Responses, error) {
	descriptors := op.Responses
	if len(descriptors) == 0 {
		descriptors = []types.ResponseDescriptor{{Status: http.StatusOK}}
	}

	responses := openapi3.NewResponsesWithCapacity(len(descriptors))
	for _, d := range descriptors {
		description := d.Description
		if description == "" {
			description = http.StatusText(d.Status)
		}
		if description == "" {
			return nil, fmt.Errorf("%w: %s %s: unknown response status %d", ErrInvalidOperation, op.Method, op.Path, d.Status)
		}

		response := openapi3.NewResponse().WithDescription(description)
		if d.Body != nil {
			ref, err := gen.schemaFor(d.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s response %d: %w", ErrInvalidOperation, op.Method, op.Path, d.Status, err)
			}
			response.Content = openapi3.NewContentWithJSONSchemaRef(ref)
		}
		responses.Set(strconv.Itoa(d.Status), &openapi3.ResponseRef{Value: response})
	}
	return responses, nil
}

func newParameter(p types.ParameterDescriptor) (*openapi3.Parameter, error) {
	var param *openapi3.Parameter
	switch p.In {
	case openapi3.ParameterInPath:
		param = openapi3.NewPathParameter(p.Name)
	case openapi3.ParameterInQuery, "":
		param = openapi3.NewQueryParameter(p.Name)
	case openapi3.ParameterInHeader:
		param = openapi3.NewHeaderParameter(p.Name)
	default:
		return nil, fmt.Errorf("parameter %s: unsupported location %q", p.Name, p.In)
	}
	if p.Required {
		param.Required = true
	}
	param.Description = p.Description

	switch p.Type {
	case "", "string":
		param.Schema = openapi3.NewStringSchema().NewRef()
	case "integer":
		param.Schema = openapi3.NewIntegerSchema().NewRef()
	case "number":
		param.Schema = openapi3.NewFloat64Schema().NewRef()
	case "boolean":
		param.Schema = openapi3.NewBoolSchema().NewRef()
	default:
		return nil, fmt.Errorf("parameter %s: unsupported type %q", p.Name, p.Type)
	}
	return param, nil
}

// NormalizePath converts gin route syntax (:id, *rest) to OpenAPI templates
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		switch {
		case strings.HasPrefix(segment, ":") && len(segment) > 1:
			segments[i] = "{" + segment[1:] + "}"
		case strings.HasPrefix(segment, "*") && len(segment) > 1:
			segments[i] = "{" + segment[1:] + "}"
		}
	}
	normalized := strings.Join(segments, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return normalized
}

// PathParameters returns the template parameter names of path in order of appearance
func PathParameters(path string) []string {
	matches := pathParamPattern.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
