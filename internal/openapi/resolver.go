package openapi

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

// versionPlaceholder is the route-template token replaced by the version segment
const versionPlaceholder = "{version}"

var versionSegment = regexp.MustCompile(`^[vV]\d+(\.\d+)?$`)

// VersionExtractor reads the raw version of an operation; false means the
// operation does not declare one
type VersionExtractor func(op types.OperationDescriptor) (string, bool)

// FromTag uses the version tag attached by the routing layer
func FromTag() VersionExtractor {
	return func(op types.OperationDescriptor) (string, bool) {
		if v := strings.TrimSpace(op.Version); v != "" {
			return v, true
		}
		return "", false
	}
}

// FromPathSegment uses the first path segment shaped like v2 or v1.1
func FromPathSegment() VersionExtractor {
	return func(op types.OperationDescriptor) (string, bool) {
		for _, segment := range strings.Split(op.Path, "/") {
			if versionSegment.MatchString(segment) {
				return segment, true
			}
		}
		return "", false
	}
}

// FirstOf tries each extractor in turn
func FirstOf(extractors ...VersionExtractor) VersionExtractor {
	return func(op types.OperationDescriptor) (string, bool) {
		for _, extract := range extractors {
			if v, ok := extract(op); ok {
				return v, true
			}
		}
		return "", false
	}
}

// ExtractorFor builds an extractor from configured source names ("tag", "path")
func ExtractorFor(sources []string) (VersionExtractor, error) {
	if len(sources) == 0 {
		return FirstOf(FromTag(), FromPathSegment()), nil
	}

	extractors := make([]VersionExtractor, 0, len(sources))
	for _, source := range sources {
		switch source {
		case "tag":
			extractors = append(extractors, FromTag())
		case "path":
			extractors = append(extractors, FromPathSegment())
		default:
			return nil, fmt.Errorf("%w: unknown version source %q", ErrConfiguration, source)
		}
	}
	return FirstOf(extractors...), nil
}

// Resolver assigns operations to version groups
type Resolver struct {
	defaultVersion apiversion.Version
	supported      []apiversion.Version
	extract        VersionExtractor
	substitute     bool
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithExtractor replaces the version extraction rule
func WithExtractor(extract VersionExtractor) ResolverOption {
	return func(r *Resolver) {
		if extract != nil {
			r.extract = extract
		}
	}
}

// WithVersionSubstitution controls whether {version} in paths is replaced
// with the version segment
func WithVersionSubstitution(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.substitute = enabled
	}
}

// NewResolver validates the version setup. The default version must be one
// of the supported versions.
func NewResolver(defaultVersion apiversion.Version, supported []apiversion.Version, opts ...ResolverOption) (*Resolver, error) {
	supported = apiversion.Sort(supported)
	if len(supported) == 0 {
		return nil, fmt.Errorf("%w: no supported versions", ErrConfiguration)
	}
	if !apiversion.Contains(supported, defaultVersion) {
		return nil, fmt.Errorf("%w: default version %s is not declared among supported versions %v",
			ErrConfiguration, defaultVersion, apiversion.Strings(supported))
	}

	r := &Resolver{
		defaultVersion: defaultVersion,
		supported:      supported,
		extract:        FirstOf(FromTag(), FromPathSegment()),
		substitute:     true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Default returns the version assumed for unversioned operations
func (r *Resolver) Default() apiversion.Version {
	return r.defaultVersion
}

// Supported returns the supported versions, oldest first
func (r *Resolver) Supported() []apiversion.Version {
	out := make([]apiversion.Version, len(r.supported))
	copy(out, r.supported)
	return out
}

// IsSupported reports whether documents are built for v
func (r *Resolver) IsSupported(v apiversion.Version) bool {
	return apiversion.Contains(r.supported, v)
}

// Resolve returns the version an operation belongs to
func (r *Resolver) Resolve(op types.OperationDescriptor) (apiversion.Version, error) {
	raw, ok := r.extract(op)
	if !ok {
		return r.defaultVersion, nil
	}

	v, err := apiversion.Parse(raw)
	if err != nil {
		return apiversion.Version{}, fmt.Errorf("%w: operation %s %s: %w", ErrConfiguration, op.Method, op.Path, err)
	}
	return v, nil
}

// Partition groups operations by canonical version. Every operation lands in
// exactly one group; the returned copies carry the resolved version in their
// Version field and, when substitution is on, a concrete path.
func (r *Resolver) Partition(ops []types.OperationDescriptor) (map[string][]types.OperationDescriptor, error) {
	groups := make(map[string][]types.OperationDescriptor)
	for _, op := range ops {
		v, err := r.Resolve(op)
		if err != nil {
			return nil, err
		}

		op.Version = v.String()
		if r.substitute {
			op.Path = strings.ReplaceAll(op.Path, versionPlaceholder, v.Segment())
		}
		groups[op.Version] = append(groups[op.Version], op)
	}
	return groups, nil
}

// Unsupported lists group keys that no document will be built for
func (r *Resolver) Unsupported(groups map[string][]types.OperationDescriptor) []string {
	var out []string
	for key := range groups {
		v, err := apiversion.Parse(key)
		if err != nil || !r.IsSupported(v) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
