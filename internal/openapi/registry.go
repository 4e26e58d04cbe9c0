package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lgulliver/openapi-gateway/internal/common"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/lgulliver/openapi-gateway/pkg/utils"
)

// DocumentGenerator produces finished documents for the registry
type DocumentGenerator interface {
	Versions() []apiversion.Version
	Generate(ctx context.Context, v apiversion.Version) (*openapi3.T, error)
}

// Publisher mirrors finalized documents to another store
type Publisher interface {
	Publish(ctx context.Context, version string, document []byte) error
}

// DocumentLoader reads a previously published document.
// common.ErrCacheMiss means nothing was published.
type DocumentLoader interface {
	Load(ctx context.Context, version string) ([]byte, error)
}

// Entry is a finalized document. Entries are never modified after they are
// stored; a rebuild stores a new one.
type Entry struct {
	Version  apiversion.Version
	Document *openapi3.T
	JSON     []byte
	ETag     string
	BuildID  uuid.UUID
	BuiltAt  time.Time
	Restored bool
}

func newEntry(v apiversion.Version, doc *openapi3.T, builtAt time.Time) (*Entry, error) {
	data, err := MarshalDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document %s: %w", v, err)
	}
	return &Entry{
		Version:  v,
		Document: doc,
		JSON:     data,
		ETag:     utils.StrongETag(data),
		BuildID:  uuid.New(),
		BuiltAt:  builtAt,
	}, nil
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithPublisher mirrors every successful build to p
func WithPublisher(p Publisher) RegistryOption {
	return func(r *Registry) {
		r.publisher = p
	}
}

// defaultBuildTimeout bounds a build when no WithBuildTimeout is given
const defaultBuildTimeout = 30 * time.Second

// WithBuildTimeout bounds each document build
func WithBuildTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		if timeout > 0 {
			r.buildTimeout = timeout
		}
	}
}

// WithClock overrides the build timestamp source
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry holds the current document of each version. Reads load an
// immutable map snapshot; writers copy the map and swap it.
type Registry struct {
	generator    DocumentGenerator
	publisher    Publisher
	now          func() time.Time
	buildTimeout time.Duration

	entries atomic.Pointer[map[string]*Entry]
	writeMu sync.Mutex
	builds  singleflight.Group
}

// NewRegistry creates an empty registry
func NewRegistry(generator DocumentGenerator, opts ...RegistryOption) *Registry {
	r := &Registry{
		generator:    generator,
		now:          time.Now,
		buildTimeout: defaultBuildTimeout,
	}
	empty := make(map[string]*Entry)
	r.entries.Store(&empty)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the current document for version ("v2", "2", "v2.0")
func (r *Registry) Get(version string) (*Entry, error) {
	v, err := apiversion.Parse(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentNotFound, err)
	}
	return r.Lookup(v)
}

// Lookup returns the current document for v
func (r *Registry) Lookup(v apiversion.Version) (*Entry, error) {
	entry, ok := (*r.entries.Load())[v.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, v)
	}
	return entry, nil
}

// Entries returns the current documents, oldest version first
func (r *Registry) Entries() []*Entry {
	snapshot := *r.entries.Load()
	entries := make([]*Entry, 0, len(snapshot))
	for _, entry := range snapshot {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Version.Less(entries[j].Version)
	})
	return entries
}

// Versions returns the versions that currently have a document, oldest first
func (r *Registry) Versions() []apiversion.Version {
	entries := r.Entries()
	versions := make([]apiversion.Version, len(entries))
	for i, entry := range entries {
		versions[i] = entry.Version
	}
	return versions
}

// Supported reports whether documents are built for v
func (r *Registry) Supported(v apiversion.Version) bool {
	return apiversion.Contains(r.generator.Versions(), v)
}

// Rebuild generates the document for v and replaces the stored entry. On
// failure the previous entry, if any, stays in place. Concurrent rebuilds of
// the same version share one build. The shared build is bounded by the build
// timeout only; a caller whose ctx ends stops waiting without cancelling it
// for the others.
func (r *Registry) Rebuild(ctx context.Context, v apiversion.Version) (*Entry, error) {
	if !r.Supported(v) {
		return nil, fmt.Errorf("%w: version %s is not supported", ErrDocumentNotFound, v)
	}

	results := r.builds.DoChan(v.String(), func() (interface{}, error) {
		return r.rebuild(context.WithoutCancel(ctx), v)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to build document %s: %w", v, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	}
}

func (r *Registry) rebuild(ctx context.Context, v apiversion.Version) (*Entry, error) {
	start := r.now()
	ctx, cancel := context.WithTimeout(ctx, r.buildTimeout)
	defer cancel()

	doc, err := r.generator.Generate(ctx, v)
	if err != nil {
		event := log.Error()
		if IsRecoverable(err) {
			event = log.Warn()
		}
		event.Err(err).
			Str("version", v.String()).
			Bool("has_previous", r.has(v)).
			Msg("Document build failed")
		return nil, fmt.Errorf("failed to build document %s: %w", v, err)
	}

	entry, err := newEntry(v, doc, r.now())
	if err != nil {
		return nil, err
	}
	r.store(entry)

	log.Info().
		Str("version", v.String()).
		Str("build_id", entry.BuildID.String()).
		Int("paths", doc.Paths.Len()).
		Dur("duration", r.now().Sub(start)).
		Msg("Document published")

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, v.String(), entry.JSON); err != nil {
			log.Warn().Err(err).Str("version", v.String()).Msg("Failed to mirror document")
		}
	}
	return entry, nil
}

// RebuildAll rebuilds every supported version in parallel. A failed version
// does not stop the others; all failures are returned joined.
func (r *Registry) RebuildAll(ctx context.Context) error {
	versions := r.generator.Versions()
	errs := make([]error, len(versions))

	var g errgroup.Group
	for i, v := range versions {
		g.Go(func() error {
			if _, err := r.Rebuild(ctx, v); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Run rebuilds all documents every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RebuildAll(ctx); err != nil {
				log.Warn().Err(err).Msg("Scheduled document rebuild incomplete")
			}
		}
	}
}

// Restore fills versions without a document from previously published
// copies. Entries built in this process are never replaced.
func (r *Registry) Restore(ctx context.Context, loader DocumentLoader) (int, error) {
	var errs []error
	restored := 0

	for _, v := range r.generator.Versions() {
		if r.has(v) {
			continue
		}

		data, err := loader.Load(ctx, v.String())
		if errors.Is(err, common.ErrCacheMiss) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load document %s: %w", v, err))
			continue
		}

		doc, err := openapi3.NewLoader().LoadFromData(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to parse document %s: %w", v, err))
			continue
		}

		entry := &Entry{
			Version:  v,
			Document: doc,
			JSON:     data,
			ETag:     utils.StrongETag(data),
			BuildID:  uuid.New(),
			BuiltAt:  r.now(),
			Restored: true,
		}
		if r.storeIfAbsent(entry) {
			restored++
			log.Info().Str("version", v.String()).Msg("Restored previously published document")
		}
	}

	return restored, errors.Join(errs...)
}

func (r *Registry) has(v apiversion.Version) bool {
	_, ok := (*r.entries.Load())[v.String()]
	return ok
}

func (r *Registry) store(entry *Entry) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.swap(entry)
}

func (r *Registry) storeIfAbsent(entry *Entry) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if _, ok := (*r.entries.Load())[entry.Version.String()]; ok {
		return false
	}
	r.swap(entry)
	return true
}

// swap must be called with writeMu held
func (r *Registry) swap(entry *Entry) {
	current := *r.entries.Load()
	next := make(map[string]*Entry, len(current)+1)
	for k, e := range current {
		next[k] = e
	}
	next[entry.Version.String()] = entry
	r.entries.Store(&next)
}
