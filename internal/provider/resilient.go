package provider

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ResilientConfig tunes the resilience wrapper around a raw client.
type ResilientConfig struct {
	// MaxAttempts is the total number of attempts for transient failures
	// (1 initial try + retries). Default: 3
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; it doubles on each
	// subsequent retry. Default: 500ms
	InitialBackoff time.Duration

	// RequestsPerSec caps outbound provider calls. Zero disables the limiter.
	RequestsPerSec float64

	// Burst is the rate limiter burst size. Default: max(1, RequestsPerSec).
	Burst int

	// QuotaCooldown is how long calls short-circuit with ErrQuotaExceeded
	// after the provider reports a quota failure. Default: 5m
	QuotaCooldown time.Duration
}

// ResilientGenerator wraps an EmbeddingGenerator with the retry and
// degradation policy of the error taxonomy:
//
//   - transient failures are retried with bounded exponential backoff;
//   - quota failures put the wrapper into a cooldown during which all calls
//     fail fast with ErrQuotaExceeded instead of hitting the provider again;
//   - config failures are remembered so the orchestrator can check
//     Degraded() without issuing a call;
//   - every real provider round-trip passes through a client-side rate
//     limiter so batch jobs respect the provider's rate limit.
type ResilientGenerator struct {
	inner   EmbeddingGenerator
	cfg     ResilientConfig
	limiter *rate.Limiter

	mu            sync.RWMutex
	quotaUntil    time.Time
	configFailed  bool
	lastConfigErr error
}

// NewResilientGenerator wraps inner with retry, cooldown, and rate limiting.
func NewResilientGenerator(inner EmbeddingGenerator, cfg ResilientConfig) *ResilientGenerator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.QuotaCooldown <= 0 {
		cfg.QuotaCooldown = 5 * time.Minute
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSec)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	return &ResilientGenerator{inner: inner, cfg: cfg, limiter: limiter}
}

// Embed generates a single embedding through the resilience policy.
func (g *ResilientGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.execute(ctx, func(ctx context.Context) error {
		var err error
		vec, err = g.inner.Embed(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch generates a batch of embeddings through the resilience policy.
func (g *ResilientGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := g.execute(ctx, func(ctx context.Context) error {
		var err error
		vecs, err = g.inner.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

// GetModel returns the wrapped client's model name.
func (g *ResilientGenerator) GetModel() string {
	return g.inner.GetModel()
}

// Degraded reports whether the provider is currently unusable (bad credential
// or within a quota cooldown). The orchestrator uses this to take the
// fallback path without issuing a provider call.
func (g *ResilientGenerator) Degraded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.configFailed || time.Now().Before(g.quotaUntil)
}

// execute runs fn with rate limiting, cooldown checks, and transient retry.
func (g *ResilientGenerator) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.checkState(); err != nil {
		return err
	}

	backoff := g.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		switch {
		case IsConfigError(err):
			g.recordConfigError(err)
			return err
		case IsQuotaExceeded(err):
			g.startCooldown()
			return err
		case IsInvalidInput(err):
			return err
		}

		// Transient: back off before the next attempt unless this was the last.
		if attempt == g.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("provider: %d attempts exhausted: %w", g.cfg.MaxAttempts, lastErr)
}

// checkState fails fast when the provider is known to be unusable.
func (g *ResilientGenerator) checkState() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.configFailed {
		return g.lastConfigErr
	}
	if until := g.quotaUntil; time.Now().Before(until) {
		return fmt.Errorf("%w: in cooldown until %s", ErrQuotaExceeded, until.Format(time.RFC3339))
	}
	return nil
}

func (g *ResilientGenerator) recordConfigError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.configFailed {
		// Logged once; subsequent calls fail fast without re-logging.
		log.Printf("ERROR: embedding provider credential rejected, degrading to fallback recommendations: %v", err)
	}
	g.configFailed = true
	g.lastConfigErr = err
}

func (g *ResilientGenerator) startCooldown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotaUntil = time.Now().Add(g.cfg.QuotaCooldown)
}

// Compile-time assertion.
var _ EmbeddingGenerator = (*ResilientGenerator)(nil)
