package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "accredo/pkg/domain-errors"
)

// Challenge is a one-time anti-replay token bound to a verifier domain.
type Challenge struct {
	Token     string    `json:"token"`
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Broker issues and consumes one-time challenges. The table is process-local;
// a multi-instance deployment needs a shared store with atomic delete-on-read.
type Broker struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	ttl        time.Duration
	interval   time.Duration
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures the Broker.
type Option func(*Broker)

// WithTTL overrides the challenge lifetime when greater than zero.
func WithTTL(ttl time.Duration) Option {
	return func(b *Broker) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithCleanupInterval overrides the expiry sweep interval when greater than zero.
func WithCleanupInterval(interval time.Duration) Option {
	return func(b *Broker) {
		if interval > 0 {
			b.interval = interval
		}
	}
}

// WithClock injects a clock for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBroker constructs a Broker and starts its expiry sweep goroutine.
// Call Close to stop the sweep.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		challenges: make(map[string]Challenge),
		ttl:        5 * time.Minute,
		interval:   time.Minute,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.sweep()
	return b
}

// Generate creates a random challenge bound to the given domain.
func (b *Broker) Generate(_ context.Context, domain string) (Challenge, error) {
	if domain == "" {
		return Challenge{}, dErrors.New(dErrors.CodeInvalidInput, "domain is required")
	}

	c := Challenge{
		Token:     uuid.NewString(),
		Domain:    domain,
		ExpiresAt: b.now().Add(b.ttl),
	}

	b.mu.Lock()
	b.challenges[c.Token] = c
	b.mu.Unlock()

	return c, nil
}

// Validate consumes the challenge. It returns false for an unknown, expired,
// or domain-mismatched token. On success the entry is removed under the same
// lock, so two concurrent validations of one token never both succeed.
func (b *Broker) Validate(_ context.Context, token, domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.challenges[token]
	if !ok {
		return false
	}
	if c.Domain != domain {
		return false
	}
	if b.now().After(c.ExpiresAt) {
		delete(b.challenges, token)
		return false
	}

	// Removal is the linearization point for single-use semantics.
	delete(b.challenges, token)
	return true
}

// Close stops the expiry sweep goroutine.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// sweep periodically drops expired challenges that were never consumed.
func (b *Broker) sweep() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			now := b.now()
			for token, c := range b.challenges {
				if now.After(c.ExpiresAt) {
					delete(b.challenges, token)
				}
			}
			b.mu.Unlock()
		case <-b.done:
			return
		}
	}
}
