package didresolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"

	dErrors "accredo/pkg/domain-errors"
)

const defaultCacheTTL = 5 * time.Minute

// WebResolver fetches did:web documents over HTTPS with bounded retry and a
// TTL cache. Timeouts remain the caller's responsibility via ctx; the resolver
// only guarantees it fails instead of hanging past the client timeout.
type WebResolver struct {
	client   *http.Client
	cache    gcache.Cache
	cacheTTL time.Duration
	maxTries uint64
	baseURL  func(did string) (string, error)
}

// WebOption configures the WebResolver.
type WebOption func(*WebResolver)

// WithHTTPClient overrides the HTTP client (tests point it at a local server).
func WithHTTPClient(client *http.Client) WebOption {
	return func(r *WebResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithCacheTTL overrides how long resolved documents are cached.
func WithCacheTTL(ttl time.Duration) WebOption {
	return func(r *WebResolver) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithMaxRetries bounds the fetch retry attempts.
func WithMaxRetries(tries uint64) WebOption {
	return func(r *WebResolver) {
		if tries > 0 {
			r.maxTries = tries
		}
	}
}

// WithURLMapper overrides did→URL mapping; tests use it to hit httptest servers.
func WithURLMapper(mapper func(did string) (string, error)) WebOption {
	return func(r *WebResolver) {
		if mapper != nil {
			r.baseURL = mapper
		}
	}
}

// NewWebResolver constructs a did:web resolver.
func NewWebResolver(opts ...WebOption) *WebResolver {
	r := &WebResolver{
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: defaultCacheTTL,
		maxTries: 3,
		baseURL:  webURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = gcache.New(256).LRU().Build()
	return r
}

// Resolve fetches the DID document, serving cached copies within the TTL.
// Network failures after retries surface as the retryable issuer_unknown code.
func (r *WebResolver) Resolve(ctx context.Context, did string) (Document, error) {
	if cached, err := r.cache.Get(did); err == nil {
		if doc, ok := cached.(Document); ok {
			return doc, nil
		}
	}

	url, err := r.baseURL(did)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	fetch := func() error {
		got, err := r.fetch(ctx, url)
		if err != nil {
			return err
		}
		doc = got
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxTries-1), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		// Wrap preserves the original code for permanent domain errors.
		return Document{}, dErrors.Wrap(err, dErrors.CodeIssuerUnknown,
			fmt.Sprintf("resolve %s", did))
	}

	_ = r.cache.SetWithExpire(did, doc, r.cacheTTL)
	return doc, nil
}

func (r *WebResolver) fetch(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, backoff.Permanent(
			dErrors.Wrap(err, dErrors.CodeInvalidInput, "build resolution request"))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// A definitive 404 is not worth retrying.
		return Document{}, backoff.Permanent(
			dErrors.New(dErrors.CodeIssuerUnknown, "DID document not found"))
	case resp.StatusCode != http.StatusOK:
		return Document{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Document{}, err
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, backoff.Permanent(
			dErrors.Wrap(err, dErrors.CodeIssuerUnknown, "malformed DID document"))
	}
	return doc, nil
}
