package openapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/openapi-gateway/internal/auth"
)

const (
	// BearerSchemeName is the registered scheme name that enables injection
	BearerSchemeName = "Bearer"
	// BearerFormat is the token format label of the injected scheme
	BearerFormat = "Json Web Token"
)

// BearerOption configures a BearerSecuritySchemeTransformer
type BearerOption func(*BearerSecuritySchemeTransformer)

// WithLookupTimeout bounds each call to the scheme registry
func WithLookupTimeout(timeout time.Duration) BearerOption {
	return func(t *BearerSecuritySchemeTransformer) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// WithLookupRetry retries failed registry calls
func WithLookupRetry(attempts int, delay time.Duration) BearerOption {
	return func(t *BearerSecuritySchemeTransformer) {
		if attempts > 0 {
			t.attempts = uint(attempts)
		}
		t.delay = delay
	}
}

// BearerSecuritySchemeTransformer adds a Bearer security scheme and
// requirement when the scheme registry has a scheme named "Bearer"
type BearerSecuritySchemeTransformer struct {
	timeout  time.Duration
	attempts uint
	delay    time.Duration
}

// NewBearerSecuritySchemeTransformer creates the transformer
func NewBearerSecuritySchemeTransformer(opts ...BearerOption) *BearerSecuritySchemeTransformer {
	t := &BearerSecuritySchemeTransformer{
		timeout:  5 * time.Second,
		attempts: 1,
		delay:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transformer name
func (t *BearerSecuritySchemeTransformer) Name() string {
	return "bearer-security-scheme"
}

// Transform looks up the registered schemes and applies ApplyBearerScheme
func (t *BearerSecuritySchemeTransformer) Transform(ctx context.Context, doc *openapi3.T, tc TransformContext) (*openapi3.T, error) {
	if tc.Schemes == nil {
		return nil, fmt.Errorf("%w: no authentication scheme registry", ErrConfiguration)
	}

	names, err := t.LookupSchemeNames(ctx, tc.Schemes)
	if err != nil {
		return nil, err
	}

	if !hasScheme(names, BearerSchemeName) {
		log.Debug().
			Str("version", tc.Version.String()).
			Strs("schemes", names).
			Msg("No Bearer scheme registered, document left unchanged")
	}
	return ApplyBearerScheme(doc, names), nil
}

type lookupResult struct {
	names []string
	err   error
}

// LookupSchemeNames fetches the registered scheme names. Each attempt is
// bounded by the lookup timeout; cancellation of ctx is not retried.
func (t *BearerSecuritySchemeTransformer) LookupSchemeNames(ctx context.Context, lister auth.SchemeLister) ([]string, error) {
	var names []string

	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, t.timeout)
			defer cancel()

			// the lister may ignore its context; the select enforces the timeout anyway
			done := make(chan lookupResult, 1)
			go func() {
				schemes, err := lister.ListSchemes(callCtx)
				done <- lookupResult{names: auth.Names(schemes), err: err}
			}()

			select {
			case <-callCtx.Done():
				return callCtx.Err()
			case res := <-done:
				if res.err != nil {
					return res.err
				}
				names = res.names
				return nil
			}
		},
		retry.Context(ctx),
		retry.Attempts(t.attempts),
		retry.Delay(t.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("Authentication scheme lookup failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing authentication schemes: %w", ErrUpstreamUnavailable, err)
	}
	return names, nil
}

// ApplyBearerScheme injects the Bearer scheme into doc when names contains
// "Bearer" (case-sensitive); otherwise doc is returned untouched. The token
// travels in the Authorization header, which the http type implies, so no
// "in" field is written. Applying it twice has the same effect as applying it
// once. No I/O is performed.
func ApplyBearerScheme(doc *openapi3.T, names []string) *openapi3.T {
	if doc == nil || !hasScheme(names, BearerSchemeName) {
		return doc
	}

	if doc.Components == nil {
		doc.Components = &openapi3.Components{}
	}
	if doc.Components.SecuritySchemes == nil {
		doc.Components.SecuritySchemes = make(openapi3.SecuritySchemes)
	}
	doc.Components.SecuritySchemes[BearerSchemeName] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: BearerFormat,
		},
	}

	for _, ref := range OperationsOf(doc) {
		op := ref.Operation
		if op.Security == nil {
			op.Security = openapi3.NewSecurityRequirements()
		}
		if referencesScheme(*op.Security, BearerSchemeName) {
			continue
		}
		op.Security.With(openapi3.NewSecurityRequirement().Authenticate(BearerSchemeName))
	}
	return doc
}

func hasScheme(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func referencesScheme(requirements openapi3.SecurityRequirements, name string) bool {
	for _, req := range requirements {
		if _, ok := req[name]; ok {
			return true
		}
	}
	return false
}
