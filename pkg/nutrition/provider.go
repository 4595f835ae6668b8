// Package nutrition provides adapters for external nutrition databases. Each
// adapter turns a meal description into a provider request and normalizes the
// response into a model.MacroResult.
package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/preprocess"
	"github.com/sells-group/macro-cli/internal/resilience"
	"github.com/sells-group/macro-cli/internal/validate"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 11 * time.Second

// Provider is one nutrition data source.
type Provider interface {
	// Name returns the source tag stamped on results.
	Name() model.Source
	// Fetch resolves a raw meal description. It returns (nil, nil) when the
	// provider has no usable answer and an *UnavailableError on transport
	// failure.
	Fetch(ctx context.Context, query string) (*model.MacroResult, error)
}

// UnavailableError reports a transport-level failure (timeout, bad status,
// malformed body) for one provider.
type UnavailableError struct {
	Source model.Source
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("nutrition: %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Option configures a provider client.
type Option func(*client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit sets the requests-per-second limit for the provider.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithGuard routes calls through a circuit breaker and retry policy.
func WithGuard(g *resilience.Guard) Option {
	return func(c *client) {
		c.guard = g
	}
}

// client holds the transport shared by every adapter.
type client struct {
	source  model.Source
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	guard   *resilience.Guard
}

func newClient(source model.Source, baseURL string, opts []Option) *client {
	c := &client{
		source:  source,
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON performs the request built by build and decodes a 200 response into
// out. It returns found=false for 404 responses.
func (c *client) getJSON(ctx context.Context, build func(ctx context.Context) (*http.Request, error), out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, c.unavailable(eris.Wrap(err, "rate limit"))
	}

	call := func(ctx context.Context) ([]byte, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "build request")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read body")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, nil
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(eris.Errorf("status %d", resp.StatusCode), resp.StatusCode)
		default:
			return nil, eris.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}
	}

	var body []byte
	var err error
	if c.guard != nil {
		body, err = resilience.Call(ctx, c.guard, call)
	} else {
		body, err = call(ctx)
	}
	if err != nil {
		return false, c.unavailable(err)
	}
	if body == nil {
		return false, nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, c.unavailable(eris.Wrap(err, "parse response"))
	}
	return true, nil
}

func (c *client) unavailable(err error) error {
	return &UnavailableError{Source: c.source, Err: err}
}

// finalize rounds r, runs validation, and merges the verdict. It returns nil
// when validation rejects the result.
func finalize(source model.Source, q preprocess.Query, r *model.MacroResult) *model.MacroResult {
	r.Source = source
	r.Round()

	verdict := validate.Validate(r, q.Original)
	if !verdict.IsValid {
		zap.L().Info("validation rejected result",
			zap.String("provider", string(source)),
			zap.String("query", q.Original),
			zap.Float64("calories", r.Calories),
			zap.Strings("flags", verdict.Flags),
		)
		return nil
	}

	if verdict.Confidence < r.Confidence {
		r.Confidence = verdict.Confidence
	}
	r.Confidence = model.Clamp(r.Confidence, validate.MinConfidence, validate.MaxConfidence)
	if r.ValidationFlags == nil {
		r.ValidationFlags = []string{}
	}
	r.AddFlags(verdict.Flags...)
	return r
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Registry holds the configured providers by source.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.Source]Provider
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.Source]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider for source, or nil if not registered.
func (r *Registry) Get(source model.Source) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[source]
}

// List returns registered sources in sorted order.
func (r *Registry) List() []model.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Source, 0, len(r.providers))
	for s := range r.providers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
