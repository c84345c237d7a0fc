// Package dispatch cascades streaming chat requests across an ordered
// model list. Each attempt runs inside the model's admission pool under
// a liveness timeout; the first stream to run to completion wins.
//
// Information Hiding:
// - Per-attempt pool admission hidden
// - Liveness timer rearming hidden
// - Attempt bookkeeping for the aggregated failure error
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/richinex/cite/catalog"
	"github.com/richinex/cite/llm"
	"github.com/richinex/cite/model"
	"github.com/richinex/cite/pool"
)

// DefaultAttemptTimeout is the default liveness window per attempt.
const DefaultAttemptTimeout = 10 * time.Second

// FallbackProvider wraps base streaming clients plus an ordered model
// list. It implements llm.Provider so callers stream through it exactly
// as through a single model.
type FallbackProvider struct {
	bases          map[string]llm.Provider
	models         []catalog.ModelSpec
	pools          *pool.Registry
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewFallbackProvider creates a fallback provider over the given base
// clients (keyed by provider tag) and ordered candidate models.
// An empty model list is a configuration error.
func NewFallbackProvider(bases map[string]llm.Provider, models []catalog.ModelSpec, pools *pool.Registry) (*FallbackProvider, error) {
	if len(models) == 0 {
		return nil, errors.New("fallback provider requires at least one model")
	}
	for _, spec := range models {
		if _, ok := bases[spec.Provider]; !ok {
			return nil, fmt.Errorf("no base client configured for provider %q (model %s)", spec.Provider, spec.ID)
		}
	}
	return &FallbackProvider{
		bases:          bases,
		models:         models,
		pools:          pools,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.Default(),
	}, nil
}

// WithAttemptTimeout overrides the per-attempt liveness window.
func (f *FallbackProvider) WithAttemptTimeout(d time.Duration) *FallbackProvider {
	f.attemptTimeout = d
	return f
}

// WithLogger overrides the logger.
func (f *FallbackProvider) WithLogger(logger *slog.Logger) *FallbackProvider {
	f.logger = logger
	return f
}

// Name returns the provider name.
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// StreamChat tries each candidate model in order. Chunks are forwarded
// to the caller as they arrive; an attempt that fails mid-stream does
// not retract output already forwarded. When every candidate fails, the
// returned error is an AllModelsFailedError carrying the attempt log.
func (f *FallbackProvider) StreamChat(ctx context.Context, opts llm.Options, chunks chan<- model.StreamChunk) error {
	var attempts []Attempt

	for _, spec := range f.models {
		if err := ctx.Err(); err != nil {
			return err
		}

		base := f.bases[spec.Provider]
		attemptOpts := opts
		attemptOpts.Model = spec.ID

		err := f.pools.Get(spec.ID).Execute(ctx, func(ctx context.Context) error {
			return f.streamAttempt(ctx, base, spec, attemptOpts, chunks)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}

		attempts = append(attempts, Attempt{
			Model:  spec.ID,
			Reason: ClassifyReason(err),
			Error:  err.Error(),
		})
		f.logger.Warn("model attempt failed, trying next",
			"model", spec.ID,
			"provider", spec.Provider,
			"reason", ClassifyReason(err),
			"error", err)
	}

	return &AllModelsFailedError{Attempts: attempts}
}

// streamAttempt runs one model's stream under the liveness timeout. The
// timer is rearmed after every chunk: a slow-but-alive stream proceeds
// indefinitely while a stalled one fails fast.
func (f *FallbackProvider) streamAttempt(ctx context.Context, base llm.Provider, spec catalog.ModelSpec, opts llm.Options, out chan<- model.StreamChunk) error {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inner := make(chan model.StreamChunk)
	errc := make(chan error, 1)
	go func() {
		errc <- base.StreamChat(attemptCtx, opts, inner)
		close(inner)
	}()

	timer := time.NewTimer(f.attemptTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-inner:
			if !ok {
				return <-errc
			}
			if chunk.Type == model.ChunkError {
				cancel()
				if chunk.Err != nil {
					return fmt.Errorf("upstream error chunk: %w", chunk.Err)
				}
				return fmt.Errorf("upstream error chunk: %s", chunk.Content)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(f.attemptTimeout)

		case <-timer.C:
			cancel()
			return &StallError{Model: spec.ID, Timeout: f.attemptTimeout.String()}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Verify FallbackProvider implements llm.Provider
var _ llm.Provider = (*FallbackProvider)(nil)
