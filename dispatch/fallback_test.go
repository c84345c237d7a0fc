package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richinex/cite/catalog"
	"github.com/richinex/cite/llm"
	"github.com/richinex/cite/model"
	"github.com/richinex/cite/pool"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedProvider returns a canned per-model outcome and records the
// models it was asked for.
type scriptedProvider struct {
	mu       sync.Mutex
	called   []string
	outcomes map[string]scriptedOutcome
}

type scriptedOutcome struct {
	chunks []string
	err    error
	hang   bool
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) StreamChat(ctx context.Context, opts llm.Options, chunks chan<- model.StreamChunk) error {
	s.mu.Lock()
	s.called = append(s.called, opts.Model)
	outcome := s.outcomes[opts.Model]
	s.mu.Unlock()

	for _, text := range outcome.chunks {
		select {
		case chunks <- model.ContentChunk(text):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if outcome.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return outcome.err
}

func (s *scriptedProvider) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.called...)
}

func specsFor(ids ...string) []catalog.ModelSpec {
	specs := make([]catalog.ModelSpec, len(ids))
	for i, id := range ids {
		specs[i] = catalog.ModelSpec{ID: id, Provider: "scripted", MaxInputTokens: 100000}
	}
	return specs
}

func newTestFallback(t *testing.T, base *scriptedProvider, ids ...string) *FallbackProvider {
	t.Helper()
	f, err := NewFallbackProvider(
		map[string]llm.Provider{"scripted": base},
		specsFor(ids...),
		pool.NewRegistry(pool.DefaultConfig(), quiet),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f.WithLogger(quiet)
}

// collect drains a full StreamChat call and returns the concatenated
// content plus the final error.
func collect(ctx context.Context, f *FallbackProvider, opts llm.Options) (string, error) {
	chunks := make(chan model.StreamChunk, 64)
	done := make(chan error, 1)
	go func() {
		done <- f.StreamChat(ctx, opts, chunks)
		close(chunks)
	}()

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Type == model.ChunkContent {
			sb.WriteString(chunk.Content)
		}
	}
	return sb.String(), <-done
}

func TestNewFallbackProviderValidation(t *testing.T) {
	pools := pool.NewRegistry(pool.DefaultConfig(), quiet)
	base := &scriptedProvider{}

	if _, err := NewFallbackProvider(map[string]llm.Provider{"scripted": base}, nil, pools); err == nil {
		t.Error("expected error for empty model list")
	}

	specs := []catalog.ModelSpec{{ID: "m", Provider: "unconfigured"}}
	if _, err := NewFallbackProvider(map[string]llm.Provider{"scripted": base}, specs, pools); err == nil {
		t.Error("expected error for model with no base client")
	}
}

func TestStreamChatFirstModelSucceeds(t *testing.T) {
	base := &scriptedProvider{outcomes: map[string]scriptedOutcome{
		"alpha": {chunks: []string{"hello ", "world"}},
	}}
	f := newTestFallback(t, base, "alpha", "beta")

	got, err := collect(context.Background(), f, llm.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
	if calls := base.calls(); len(calls) != 1 || calls[0] != "alpha" {
		t.Errorf("calls = %v, want [alpha]", calls)
	}
}

func TestStreamChatFallsBackInOrder(t *testing.T) {
	base := &scriptedProvider{outcomes: map[string]scriptedOutcome{
		"alpha": {err: &RateLimitError{Status: 429, Err: errors.New("slow down")}},
		"beta":  {err: errors.New("upstream 503")},
		"gamma": {chunks: []string{"finally"}},
	}}
	f := newTestFallback(t, base, "alpha", "beta", "gamma")

	got, err := collect(context.Background(), f, llm.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "finally" {
		t.Errorf("content = %q, want %q", got, "finally")
	}
	if calls := base.calls(); len(calls) != 3 {
		t.Errorf("calls = %v, want all three models in order", calls)
	}
}

func TestStreamChatAllModelsFailed(t *testing.T) {
	base := &scriptedProvider{outcomes: map[string]scriptedOutcome{
		"alpha": {err: &RateLimitError{Status: 429, Err: errors.New("slow down")}},
		"beta":  {err: errors.New("server error 500")},
		"gamma": {err: errors.New("request timeout")},
	}}
	f := newTestFallback(t, base, "alpha", "beta", "gamma")

	_, err := collect(context.Background(), f, llm.Options{})
	if err == nil {
		t.Fatal("expected error when every model fails")
	}
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Errorf("error does not wrap ErrAllModelsFailed: %v", err)
	}

	var allFailed *AllModelsFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("error type = %T, want *AllModelsFailedError", err)
	}
	if len(allFailed.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(allFailed.Attempts))
	}
	wantReasons := []string{ReasonRateLimit, ReasonServerError, ReasonTimeout}
	for i, want := range wantReasons {
		if allFailed.Attempts[i].Reason != want {
			t.Errorf("attempt %d reason = %s, want %s", i, allFailed.Attempts[i].Reason, want)
		}
	}
}

func TestStreamChatPartialOutputNotRetracted(t *testing.T) {
	base := &scriptedProvider{outcomes: map[string]scriptedOutcome{
		"alpha": {chunks: []string{"partial "}, err: errors.New("connection reset")},
		"beta":  {chunks: []string{"complete"}},
	}}
	f := newTestFallback(t, base, "alpha", "beta")

	got, err := collect(context.Background(), f, llm.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "partial complete" {
		t.Errorf("content = %q, want %q", got, "partial complete")
	}
}

func TestStreamChatStallTriggersFallback(t *testing.T) {
	base := &scriptedProvider{outcomes: map[string]scriptedOutcome{
		"alpha": {chunks: []string{"started "}, hang: true},
		"beta":  {chunks: []string{"rescued"}},
	}}
	f := newTestFallback(t, base, "alpha", "beta").WithAttemptTimeout(20 * time.Millisecond)

	got, err := collect(context.Background(), f, llm.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "started rescued" {
		t.Errorf("content = %q, want %q", got, "started rescued")
	}
}

func TestStreamChatSlowButAliveSurvives(t *testing.T) {
	slow := &tricklingProvider{interval: 10 * time.Millisecond, count: 5}
	f, err := NewFallbackProvider(
		map[string]llm.Provider{"scripted": slow},
		specsFor("alpha"),
		pool.NewRegistry(pool.DefaultConfig(), quiet),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.WithLogger(quiet).WithAttemptTimeout(50 * time.Millisecond)

	got, collectErr := collect(context.Background(), f, llm.Options{})
	if collectErr != nil {
		t.Fatalf("unexpected error: %v", collectErr)
	}
	if got != "x x x x x " {
		t.Errorf("content = %q, want five chunks", got)
	}
}

// tricklingProvider emits chunks spaced below the liveness window but
// with a total duration above it.
type tricklingProvider struct {
	interval time.Duration
	count    int
}

func (p *tricklingProvider) Name() string { return "trickling" }

func (p *tricklingProvider) StreamChat(ctx context.Context, opts llm.Options, chunks chan<- model.StreamChunk) error {
	for i := 0; i < p.count; i++ {
		time.Sleep(p.interval)
		select {
		case chunks <- model.ContentChunk("x "):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestStreamChatCancelledContextStopsCascade(t *testing.T) {
	base := &scriptedProvider{outcomes: map[string]scriptedOutcome{
		"alpha": {hang: true},
		"beta":  {chunks: []string{"never"}},
	}}
	f := newTestFallback(t, base, "alpha", "beta")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := collect(ctx, f, llm.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls := base.calls(); len(calls) != 1 {
		t.Errorf("calls = %v, want no fallback after cancellation", calls)
	}
}

func TestStreamChatUpstreamErrorChunkFailsAttempt(t *testing.T) {
	failing := &errorChunkProvider{}
	f, err := NewFallbackProvider(
		map[string]llm.Provider{"scripted": failing},
		specsFor("alpha"),
		pool.NewRegistry(pool.DefaultConfig(), quiet),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.WithLogger(quiet)

	_, streamErr := collect(context.Background(), f, llm.Options{})
	var allFailed *AllModelsFailedError
	if !errors.As(streamErr, &allFailed) {
		t.Fatalf("error = %v, want *AllModelsFailedError", streamErr)
	}
}

type errorChunkProvider struct{}

func (p *errorChunkProvider) Name() string { return "errorchunk" }

func (p *errorChunkProvider) StreamChat(ctx context.Context, opts llm.Options, chunks chan<- model.StreamChunk) error {
	select {
	case chunks <- model.ErrorChunk(errors.New("mid-stream failure")):
	case <-ctx.Done():
	}
	return ctx.Err()
}

func TestClassifyReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cancel", context.Canceled, ReasonAbort},
		{"deadline", context.DeadlineExceeded, ReasonTimeout},
		{"typed rate limit", &RateLimitError{Status: 429}, ReasonRateLimit},
		{"stall", &StallError{Model: "m", Timeout: "10s"}, ReasonTimeout},
		{"text 429", errors.New("got 429 from upstream"), ReasonRateLimit},
		{"text overloaded", errors.New("model overloaded"), ReasonServerError},
		{"opaque", errors.New("something odd"), ReasonUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyReason(tt.err); got != tt.want {
				t.Errorf("ClassifyReason(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
