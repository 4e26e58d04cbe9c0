package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

func newTestResolver(t *testing.T, opts ...ResolverOption) *Resolver {
	t.Helper()
	r, err := NewResolver(apiversion.MustParse("v1"), []apiversion.Version{
		apiversion.MustParse("v2"),
		apiversion.MustParse("v1"),
	}, opts...)
	require.NoError(t, err)
	return r
}

func TestNewResolver_Validation(t *testing.T) {
	_, err := NewResolver(apiversion.MustParse("v1"), nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewResolver(apiversion.MustParse("v3"), []apiversion.Version{apiversion.MustParse("v1")})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "v3")
	assert.False(t, IsRecoverable(err))

	r := newTestResolver(t)
	assert.Equal(t, "v1", r.Default().String())
	assert.Equal(t, []string{"v1", "v2"}, apiversion.Strings(r.Supported()))
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name    string
		op      types.OperationDescriptor
		want    string
		wantErr bool
	}{
		{name: "tag wins", op: types.OperationDescriptor{Path: "/api/v1/users", Version: "V2"}, want: "v2"},
		{name: "path segment", op: types.OperationDescriptor{Path: "/api/v2/users"}, want: "v2"},
		{name: "minor path segment", op: types.OperationDescriptor{Path: "/api/v1.1/users"}, want: "v1.1"},
		{name: "unversioned uses default", op: types.OperationDescriptor{Path: "/health"}, want: "v1"},
		{name: "template falls back to default", op: types.OperationDescriptor{Path: "/api/v{version}/users"}, want: "v1"},
		{name: "malformed tag", op: types.OperationDescriptor{Path: "/x", Version: "latest"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.Resolve(tt.op)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestResolver_PartitionCoversEveryOperation(t *testing.T) {
	r := newTestResolver(t)
	ops := []types.OperationDescriptor{
		{Method: "GET", Path: "/api/v{version}/users", Version: "v1"},
		{Method: "GET", Path: "/api/v{version}/users", Version: "v2"},
		{Method: "POST", Path: "/api/v{version}/users", Version: "2"},
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/api/v3/things"},
	}

	groups, err := r.Partition(ops)
	require.NoError(t, err)

	total := 0
	for key, group := range groups {
		total += len(group)
		for _, op := range group {
			assert.Equal(t, key, op.Version)
		}
	}
	assert.Equal(t, len(ops), total)

	require.Len(t, groups["v1"], 2)
	require.Len(t, groups["v2"], 2)
	assert.Equal(t, "/api/v1/users", groups["v1"][0].Path)
	assert.Equal(t, "/api/v2/users", groups["v2"][0].Path)
	assert.Equal(t, "/api/v2/users", groups["v2"][1].Path)

	assert.Equal(t, []string{"v3"}, r.Unsupported(groups))
	// source descriptors are untouched
	assert.Equal(t, "/api/v{version}/users", ops[0].Path)
}

func TestResolver_PartitionWithoutSubstitution(t *testing.T) {
	r := newTestResolver(t, WithVersionSubstitution(false))

	groups, err := r.Partition([]types.OperationDescriptor{
		{Method: "GET", Path: "/api/v{version}/users", Version: "v2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/v{version}/users", groups["v2"][0].Path)
}

func TestResolver_PartitionRejectsMalformedTag(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Partition([]types.OperationDescriptor{{Method: "GET", Path: "/x", Version: "v1.2.3"}})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, apiversion.ErrInvalidVersion)
}

func TestExtractorFor(t *testing.T) {
	extract, err := ExtractorFor([]string{"path"})
	require.NoError(t, err)

	r := newTestResolver(t, WithExtractor(extract))
	v, err := r.Resolve(types.OperationDescriptor{Path: "/api/v2/users", Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "v2", v.String())

	_, err = ExtractorFor([]string{"header"})
	assert.ErrorIs(t, err, ErrConfiguration)
}
