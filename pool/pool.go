// Package pool bounds concurrent in-flight requests per model using
// Additive-Increase/Multiplicative-Decrease, isolating rate-limit
// pressure to the model that caused it.
//
// Information Hiding:
// - FIFO admission queue internals hidden
// - AIMD ceiling transitions hidden behind Execute
// - Rate-limit detection (typed error first, text heuristic second)
package pool

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
)

// Config holds the AIMD tuning knobs.
type Config struct {
	// Initial is the starting concurrency ceiling.
	Initial int
	// Floor is the minimum ceiling after decreases.
	Floor int
	// Ceiling is the maximum ceiling after increases.
	Ceiling int
	// SuccessThreshold is the consecutive-success count that earns +1.
	SuccessThreshold int
	// DecreaseFactor scales the ceiling on a rate limit.
	DecreaseFactor float64
	// DecreaseCooldown suppresses repeat decreases inside the window.
	DecreaseCooldown time.Duration
	// IdleReset restores the initial ceiling after this much quiet time.
	IdleReset time.Duration
}

// DefaultConfig returns the default AIMD tuning.
func DefaultConfig() Config {
	return Config{
		Initial:          10,
		Floor:            2,
		Ceiling:          50,
		SuccessThreshold: 10,
		DecreaseFactor:   0.5,
		DecreaseCooldown: 5 * time.Second,
		IdleReset:        5 * time.Minute,
	}
}

// Stats is a point-in-time snapshot of one pool.
type Stats struct {
	ModelID       string    `json:"model_id"`
	Limit         int       `json:"limit"`
	Active        int       `json:"active"`
	Queued        int       `json:"queued"`
	Successes     uint64    `json:"successes"`
	RateLimits    uint64    `json:"rate_limits"`
	Errors        uint64    `json:"errors"`
	LastRateLimit time.Time `json:"last_rate_limit,omitempty"`
	LastRequest   time.Time `json:"last_request,omitempty"`
}

// rateLimitAware is implemented by typed errors that carry a structured
// throttling signal (see dispatch.RateLimitError).
type rateLimitAware interface {
	RateLimit() bool
}

// IsRateLimit reports whether err signals upstream throttling. Typed
// errors are consulted first; the text match on "rate limit", "429" and
// "too many requests" is a compatibility shim for opaque error sources.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var typed rateLimitAware
	if errors.As(err, &typed) {
		return typed.RateLimit()
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "rate limit") ||
		strings.Contains(text, "429") ||
		strings.Contains(text, "too many requests")
}

// Pool admission-controls concurrent calls to one model id. Queued
// requests are admitted FIFO; completions may land out of order once
// admitted. All state mutation is mutex-serialized.
type Pool struct {
	modelID string
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.Mutex
	limit        int
	active       int
	waiters      []chan struct{}
	streak       int
	successes    uint64
	rateLimits   uint64
	errorCount   uint64
	lastDecrease time.Time
	lastRateHit  time.Time
	lastDispatch time.Time
}

// New creates a pool for the given model id.
func New(modelID string, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		modelID: modelID,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		limit:   cfg.Initial,
	}
}

// WithClock overrides the time source. Intended for tests.
func (p *Pool) WithClock(now func() time.Time) *Pool {
	p.now = now
	return p
}

// Execute admits fn under the current concurrency ceiling, runs it, and
// feeds its outcome back into the AIMD controller. Admission is FIFO;
// a cancelled context abandons the queue slot without running fn.
func (p *Pool) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	p.release(err)
	return err
}

func (p *Pool) acquire(ctx context.Context) error {
	p.mu.Lock()
	p.idleCheckLocked(p.now())

	if p.active < p.limit && len(p.waiters) == 0 {
		p.active++
		p.lastDispatch = p.now()
		p.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	p.waiters = append(p.waiters, ready)
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		p.abandon(ready)
		return ctx.Err()
	}
}

// abandon removes a queued waiter after context cancellation. If the
// waiter was admitted concurrently, its slot is handed back.
func (p *Pool) abandon(ready chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, w := range p.waiters {
		if w == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}

	// Already admitted: release the slot it was given.
	p.active--
	p.admitLocked(p.now())
}

func (p *Pool) release(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--

	switch {
	case err == nil:
		p.onSuccessLocked()
	case IsRateLimit(err):
		p.onRateLimitLocked(p.now())
	default:
		// Non-throttling failure: the consecutive-success run is broken
		// but the ceiling stands.
		p.errorCount++
		p.streak = 0
	}

	p.admitLocked(p.now())
}

func (p *Pool) onSuccessLocked() {
	p.successes++
	p.streak++
	if p.streak >= p.cfg.SuccessThreshold {
		p.streak = 0
		if p.limit < p.cfg.Ceiling {
			p.limit++
			p.logger.Info("pool ceiling increased",
				"model", p.modelID,
				"limit", p.limit,
				"threshold", p.cfg.SuccessThreshold)
		}
	}
}

func (p *Pool) onRateLimitLocked(now time.Time) {
	p.rateLimits++
	p.lastRateHit = now
	p.streak = 0

	if !p.lastDecrease.IsZero() && now.Sub(p.lastDecrease) < p.cfg.DecreaseCooldown {
		p.logger.Info("rate limit during cooldown, keeping ceiling",
			"model", p.modelID,
			"limit", p.limit,
			"cooldown", p.cfg.DecreaseCooldown)
		return
	}

	halved := int(math.Ceil(float64(p.limit) * p.cfg.DecreaseFactor))
	stepped := p.limit - 1
	next := halved
	if stepped < next {
		next = stepped
	}
	if next < p.cfg.Floor {
		next = p.cfg.Floor
	}

	if next != p.limit {
		p.logger.Warn("pool ceiling decreased after rate limit",
			"model", p.modelID,
			"old_limit", p.limit,
			"new_limit", next)
		p.limit = next
	}
	p.lastDecrease = now
}

// idleCheckLocked restores the initial ceiling after a quiet period so a
// model throttled during a rate-limit episode does not stay throttled
// forever.
func (p *Pool) idleCheckLocked(now time.Time) {
	if p.cfg.IdleReset <= 0 || p.lastDispatch.IsZero() {
		return
	}
	if now.Sub(p.lastDispatch) <= p.cfg.IdleReset {
		return
	}
	if p.limit != p.cfg.Initial {
		p.logger.Info("pool ceiling reset after idle period",
			"model", p.modelID,
			"old_limit", p.limit,
			"new_limit", p.cfg.Initial)
		p.limit = p.cfg.Initial
	}
	p.lastDecrease = time.Time{}
	p.streak = 0
}

func (p *Pool) admitLocked(now time.Time) {
	for p.active < p.limit && len(p.waiters) > 0 {
		ready := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.active++
		p.lastDispatch = now
		close(ready)
	}
}

// Stats returns a snapshot of the pool state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ModelID:       p.modelID,
		Limit:         p.limit,
		Active:        p.active,
		Queued:        len(p.waiters),
		Successes:     p.successes,
		RateLimits:    p.rateLimits,
		Errors:        p.errorCount,
		LastRateLimit: p.lastRateHit,
		LastRequest:   p.lastDispatch,
	}
}

// Limit returns the current concurrency ceiling.
func (p *Pool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}
