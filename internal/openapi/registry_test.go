package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/openapi-gateway/internal/auth"
	"github.com/lgulliver/openapi-gateway/internal/common"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/config"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

type staticSource []types.OperationDescriptor

func (s staticSource) Operations() []types.OperationDescriptor {
	return append([]types.OperationDescriptor(nil), s...)
}

// stubGenerator builds documents with a configurable number of paths
type stubGenerator struct {
	versions []apiversion.Version
	paths    atomic.Int32
	fail     atomic.Bool
	calls    atomic.Int32
	gate     chan struct{}
}

func (g *stubGenerator) Versions() []apiversion.Version {
	return g.versions
}

func (g *stubGenerator) Generate(ctx context.Context, v apiversion.Version) (*openapi3.T, error) {
	g.calls.Add(1)
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.fail.Load() {
		return nil, &TransformError{Transformer: "stub", Err: ErrUpstreamUnavailable}
	}

	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info:    &openapi3.Info{Title: "stub", Version: v.String()},
		Paths:   openapi3.NewPaths(),
	}
	for i := 0; i < int(g.paths.Load()); i++ {
		op := openapi3.NewOperation()
		op.Responses = openapi3.NewResponses()
		doc.AddOperation(fmt.Sprintf("/p%d", i), "GET", op)
	}
	return doc, nil
}

func newStubGenerator(paths int32, versions ...string) *stubGenerator {
	g := &stubGenerator{}
	for _, v := range versions {
		g.versions = append(g.versions, apiversion.MustParse(v))
	}
	g.paths.Store(paths)
	return g
}

func TestRegistry_GetBeforeBuild(t *testing.T) {
	r := NewRegistry(newStubGenerator(1, "v1"))

	_, err := r.Get("v1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = r.Get("not-a-version")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Empty(t, r.Versions())
}

func TestRegistry_Rebuild(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(newStubGenerator(2, "v1", "v2"), WithClock(func() time.Time { return now }))

	entry, err := r.Rebuild(context.Background(), apiversion.MustParse("v2"))
	require.NoError(t, err)

	assert.Equal(t, "v2", entry.Version.String())
	assert.Equal(t, now, entry.BuiltAt)
	assert.NotEmpty(t, entry.ETag)
	assert.False(t, entry.Restored)

	got, err := r.Get("2")
	require.NoError(t, err)
	assert.Same(t, entry, got)
	assert.Equal(t, []string{"v2"}, apiversion.Strings(r.Versions()))

	_, err = r.Rebuild(context.Background(), apiversion.MustParse("v9"))
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestRegistry_FailedRebuildKeepsPrevious(t *testing.T) {
	gen := newStubGenerator(1, "v1")
	r := NewRegistry(gen)

	first, err := r.Rebuild(context.Background(), apiversion.MustParse("v1"))
	require.NoError(t, err)

	gen.fail.Store(true)
	_, err = r.Rebuild(context.Background(), apiversion.MustParse("v1"))
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, ErrTransformerFailure)

	current, err := r.Get("v1")
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestRegistry_RebuildAllIndependentFailures(t *testing.T) {
	gen := &failingVersionGenerator{stubGenerator: newStubGenerator(1, "v1", "v2", "v3"), failing: "v2"}
	r := NewRegistry(gen)

	err := r.RebuildAll(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "v2")

	assert.Equal(t, []string{"v1", "v3"}, apiversion.Strings(r.Versions()))
}

type failingVersionGenerator struct {
	*stubGenerator
	failing string
}

func (g *failingVersionGenerator) Generate(ctx context.Context, v apiversion.Version) (*openapi3.T, error) {
	if v.String() == g.failing {
		return nil, &TransformError{Transformer: "stub", Err: errors.New("boom")}
	}
	return g.stubGenerator.Generate(ctx, v)
}

func TestRegistry_ConcurrentRebuildsShareOneBuild(t *testing.T) {
	gen := newStubGenerator(1, "v1")
	gen.gate = make(chan struct{})
	r := NewRegistry(gen)

	var wg sync.WaitGroup
	entries := make([]*Entry, 5)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.Rebuild(context.Background(), apiversion.MustParse("v1"))
			assert.NoError(t, err)
			entries[i] = e
		}(i)
	}

	// let the callers pile up behind the first build
	time.Sleep(50 * time.Millisecond)
	close(gen.gate)
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, e := range entries {
		require.NotNil(t, e)
	}
}

func TestRegistry_CancelledCallerDoesNotFailOtherWaiters(t *testing.T) {
	gen := newStubGenerator(1, "v1")
	gen.gate = make(chan struct{})
	r := NewRegistry(gen)
	v1 := apiversion.MustParse("v1")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(firstCtx, v1)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *Entry, 1)
	go func() {
		entry, err := r.Rebuild(context.Background(), v1)
		assert.NoError(t, err)
		second <- entry
	}()

	// the first client goes away mid-build
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	// let the second caller join the running build
	time.Sleep(50 * time.Millisecond)
	close(gen.gate)
	entry := <-second
	require.NotNil(t, entry)
	assert.Equal(t, int32(1), gen.calls.Load())

	stored, err := r.Get("v1")
	require.NoError(t, err)
	assert.Equal(t, entry.BuildID, stored.BuildID)
}

func TestRegistry_ReadsDuringRebuildSeeWholeDocuments(t *testing.T) {
	gen := newStubGenerator(3, "v2")
	r := NewRegistry(gen)
	_, err := r.Rebuild(context.Background(), apiversion.MustParse("v2"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readers sync.WaitGroup
	var reads atomic.Int64
	for i := 0; i < 8; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for ctx.Err() == nil {
				entry, err := r.Get("v2")
				if !assert.NoError(t, err) {
					return
				}
				n := entry.Document.Paths.Len()
				assert.Contains(t, []int{3, 10, 20}, n)

				var decoded map[string]interface{}
				if assert.NoError(t, json.Unmarshal(entry.JSON, &decoded)) {
					assert.Len(t, decoded["paths"], n)
				}
				reads.Add(1)
			}
		}()
	}

	for _, paths := range []int32{10, 20, 3, 10} {
		gen.paths.Store(paths)
		_, err := r.Rebuild(context.Background(), apiversion.MustParse("v2"))
		require.NoError(t, err)
	}
	cancel()
	readers.Wait()

	assert.Positive(t, reads.Load())
	entry, err := r.Get("v2")
	require.NoError(t, err)
	assert.Equal(t, 10, entry.Document.Paths.Len())
}

func TestRegistry_Run(t *testing.T) {
	gen := newStubGenerator(1, "v1")
	r := NewRegistry(gen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := r.Get("v1")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	// zero interval disables the loop
	r.Run(context.Background(), 0)
}

func setupPublisher(t *testing.T) (*CachePublisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := common.NewCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })
	return NewCachePublisher(cache, time.Hour), mr
}

func TestRegistry_PublishAndRestore(t *testing.T) {
	publisher, mr := setupPublisher(t)
	ctx := context.Background()

	built := NewRegistry(newStubGenerator(2, "v1", "v2"), WithPublisher(publisher))
	entry, err := built.Rebuild(ctx, apiversion.MustParse("v2"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("openapi:v2"))

	// a fresh process whose upstream is down restores the mirrored copy
	failing := newStubGenerator(2, "v1", "v2")
	failing.fail.Store(true)
	restarted := NewRegistry(failing)
	require.Error(t, restarted.RebuildAll(ctx))

	n, err := restarted.Restore(ctx, publisher)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored, err := restarted.Get("v2")
	require.NoError(t, err)
	assert.True(t, restored.Restored)
	assert.Equal(t, entry.ETag, restored.ETag)
	assert.Equal(t, "v2", restored.Document.Info.Version)

	_, err = restarted.Get("v1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestRegistry_RestoreDoesNotReplaceBuiltEntries(t *testing.T) {
	publisher, _ := setupPublisher(t)
	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, "v1", []byte(`{"openapi":"3.0.3","info":{"title":"old","version":"v1"},"paths":{}}`)))

	r := NewRegistry(newStubGenerator(1, "v1"))
	built, err := r.Rebuild(ctx, apiversion.MustParse("v1"))
	require.NoError(t, err)

	n, err := r.Restore(ctx, publisher)
	require.NoError(t, err)
	assert.Zero(t, n)

	current, err := r.Get("v1")
	require.NoError(t, err)
	assert.Same(t, built, current)
}

func TestRegistry_RestoreRejectsGarbage(t *testing.T) {
	publisher, _ := setupPublisher(t)
	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, "v1", []byte("not json")))

	r := NewRegistry(newStubGenerator(1, "v1"))
	n, err := r.Restore(ctx, publisher)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestCachePublisher_LoadMissing(t *testing.T) {
	publisher, _ := setupPublisher(t)

	_, err := publisher.Load(context.Background(), "v7")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

// End to end: GET /users (v2), POST /users (v2), GET /users (v1), default v2
func TestPipeline_VersionedDocuments(t *testing.T) {
	ctx := context.Background()
	resolver, err := NewResolver(apiversion.MustParse("v2"), []apiversion.Version{
		apiversion.MustParse("v1"),
		apiversion.MustParse("v2"),
	})
	require.NoError(t, err)

	schemes := auth.NewMemoryProvider()
	require.NoError(t, auth.Seed(ctx, schemes, []config.SchemeSeed{
		{Name: "Bearer", HandlerType: "JwtBearer"},
		{Name: "ApiKey", HandlerType: "ApiKey"},
	}))

	source := staticSource{
		{Method: "GET", Path: "/users", OperationID: "listUsersV2"},
		{Method: "POST", Path: "/users", Version: "v2", OperationID: "createUser"},
		{Method: "GET", Path: "/users", Version: "v1", OperationID: "listUsersV1"},
	}
	chain := NewChain(NewValidationTransformer(), NewBearerSecuritySchemeTransformer())
	gen := NewGenerator(resolver, NewBuilder(DocumentInfo{Title: "Users"}), chain, source, schemes)
	require.NoError(t, gen.Check())

	r := NewRegistry(gen)
	require.NoError(t, r.RebuildAll(ctx))

	v2, err := r.Get("v2")
	require.NoError(t, err)
	ops := OperationsOf(v2.Document)
	require.Len(t, ops, 2)
	assert.Equal(t, "listUsersV2", ops[0].Operation.OperationID)
	assert.Equal(t, "createUser", ops[1].Operation.OperationID)

	v1, err := r.Get("v1")
	require.NoError(t, err)
	ops = OperationsOf(v1.Document)
	require.Len(t, ops, 1)
	assert.Equal(t, "listUsersV1", ops[0].Operation.OperationID)

	for _, entry := range []*Entry{v1, v2} {
		assert.Contains(t, entry.Document.Components.SecuritySchemes, "Bearer")
		for _, op := range OperationsOf(entry.Document) {
			require.Len(t, *op.Operation.Security, 1)
		}
	}

	// removing the Bearer scheme takes effect on the next build
	require.NoError(t, schemes.RemoveScheme(ctx, "Bearer"))
	rebuilt, err := r.Rebuild(ctx, apiversion.MustParse("v2"))
	require.NoError(t, err)
	assert.NotContains(t, rebuilt.Document.Components.SecuritySchemes, "Bearer")
	assert.NotEqual(t, v2.ETag, rebuilt.ETag)
}

func TestGenerator_UnsupportedVersion(t *testing.T) {
	resolver, err := NewResolver(apiversion.MustParse("v1"), []apiversion.Version{apiversion.MustParse("v1")})
	require.NoError(t, err)
	gen := NewGenerator(resolver, NewBuilder(DocumentInfo{}), nil, staticSource{}, auth.NewMemoryProvider())

	_, err = gen.Generate(context.Background(), apiversion.MustParse("v2"))
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestGenerator_BuilderErrorIsTransformerFailure(t *testing.T) {
	resolver, err := NewResolver(apiversion.MustParse("v1"), []apiversion.Version{apiversion.MustParse("v1")})
	require.NoError(t, err)
	source := staticSource{
		{Method: "GET", Path: "/a"},
		{Method: "GET", Path: "/a"},
	}
	gen := NewGenerator(resolver, NewBuilder(DocumentInfo{}), nil, source, auth.NewMemoryProvider())

	_, err = gen.Generate(context.Background(), apiversion.MustParse("v1"))
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.ErrorIs(t, err, ErrTransformerFailure)
	assert.True(t, IsRecoverable(err))
}

func TestGenerator_CheckRejectsBadTag(t *testing.T) {
	resolver, err := NewResolver(apiversion.MustParse("v1"), []apiversion.Version{apiversion.MustParse("v1")})
	require.NoError(t, err)
	gen := NewGenerator(resolver, NewBuilder(DocumentInfo{}), nil, staticSource{{Method: "GET", Path: "/a", Version: "beta"}}, nil)

	err = gen.Check()
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.False(t, IsRecoverable(err))
}

func TestRegistry_BuildTimeout(t *testing.T) {
	gen := newStubGenerator(1, "v1")
	gen.gate = make(chan struct{})
	r := NewRegistry(gen, WithBuildTimeout(20*time.Millisecond))

	_, err := r.Rebuild(context.Background(), apiversion.MustParse("v1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = r.Get("v1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
