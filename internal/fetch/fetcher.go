// Package fetch implements the resilient batched acquisition of raw person
// records: it partitions a requested total into bounded-size batches,
// issues them concurrently against a shared connection budget, and retries
// each batch with capped exponential backoff and jitter.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"personpipe/internal/fakerapi"
	"personpipe/internal/person"
)

const (
	defaultMaxRetries  = 5
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxInFlight = 8
)

// ErrExhausted marks a batch that used up its whole retry budget.
var ErrExhausted = fmt.Errorf("fetch retry budget exhausted")

// Batcher issues one upstream request for a batch of records.
type Batcher interface {
	FetchBatch(ctx context.Context, quantity int, gender string, seed int64) ([]person.RawPerson, error)
}

// Fetcher coordinates concurrent batch acquisition.
type Fetcher struct {
	source      Batcher
	logger      *slog.Logger
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxInFlight int
	seedBase    int64

	sleep      func(context.Context, time.Duration) error
	jitter     func() float64
	onProgress func(fetched int64)

	fetched atomic.Int64
}

// Option customizes the fetcher.
type Option func(*Fetcher)

// WithMaxRetries overrides the per-batch attempt budget (defaults to 5).
func WithMaxRetries(attempts int) Option {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.maxRetries = attempts
		}
	}
}

// WithBackoff overrides the retry backoff delays.
func WithBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(f *Fetcher) {
		if baseDelay > 0 {
			f.baseDelay = baseDelay
		}
		if maxDelay > 0 {
			f.maxDelay = maxDelay
		}
	}
}

// WithMaxInFlight bounds the number of simultaneous upstream requests.
func WithMaxInFlight(limit int) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.maxInFlight = limit
		}
	}
}

// WithSeedBase offsets the deterministic batch seeds.
func WithSeedBase(base int64) Option {
	return func(f *Fetcher) {
		f.seedBase = base
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithJitter overrides the jitter source. The function must return values
// in [0.5, 1.0).
func WithJitter(jitter func() float64) Option {
	return func(f *Fetcher) {
		if jitter != nil {
			f.jitter = jitter
		}
	}
}

// WithProgress registers a callback invoked with the running total of
// successfully fetched records.
func WithProgress(callback func(fetched int64)) Option {
	return func(f *Fetcher) {
		f.onProgress = callback
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New constructs a fetcher over the given upstream source.
func New(source Batcher, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:      source,
		logger:      slog.New(slog.DiscardHandler),
		maxRetries:  defaultMaxRetries,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		maxInFlight: defaultMaxInFlight,
		sleep:       sleepContext,
		jitter:      func() float64 { return 0.5 + rand.Float64()/2 },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetched reports how many records have been acquired from batches that
// completed successfully. The counter never overcounts: failed batches
// contribute nothing.
func (f *Fetcher) Fetched() int64 {
	return f.fetched.Load()
}

// Fetch acquires exactly total records. All batches must succeed; a batch
// that exhausts its retries fails the whole fetch, though sibling batches
// already in flight run to completion. Results are collected in completion
// order and truncated to total.
func (f *Fetcher) Fetch(ctx context.Context, total int, gender string, batchSize int) ([]person.RawPerson, error) {
	if total <= 0 {
		return nil, fmt.Errorf("fetch: total must be positive, got %d", total)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("fetch: batch size must be positive, got %d", batchSize)
	}

	batches := partition(total, batchSize, f.seedBase)
	f.logger.Info("starting fetch",
		"total", total,
		"batch_size", batchSize,
		"batches", len(batches),
		"max_in_flight", f.maxInFlight)

	var (
		mu        sync.Mutex
		collected []person.RawPerson
	)

	var group errgroup.Group
	group.SetLimit(f.maxInFlight)
	for _, b := range batches {
		group.Go(func() error {
			records, err := f.runBatch(ctx, b, gender)
			if err != nil {
				return err
			}
			mu.Lock()
			collected = append(collected, records...)
			mu.Unlock()

			fetched := f.fetched.Add(int64(len(records)))
			if f.onProgress != nil {
				f.onProgress(fetched)
			}
			f.logger.Debug("batch complete", "batch", b.id, "records", len(records), "fetched", fetched)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if len(collected) > total {
		collected = collected[:total]
	}
	return collected, nil
}

// runBatch drives one batch through the retry state machine until it
// succeeds, hits a non-retryable error, or exhausts the attempt budget.
func (f *Fetcher) runBatch(ctx context.Context, b *batch, gender string) ([]person.RawPerson, error) {
	var lastErr error
	for b.attempt = 0; b.attempt < f.maxRetries; b.attempt++ {
		b.state = stateInFlight
		records, err := f.source.FetchBatch(ctx, b.quantity, gender, b.seed)
		if err == nil {
			b.state = stateSucceeded
			return records, nil
		}
		lastErr = err

		// The batch context going away is final even when the upstream
		// error itself would be transient.
		if ctxErr := ctx.Err(); ctxErr != nil {
			b.state = stateFailed
			return nil, fmt.Errorf("batch %d: %w", b.id, ctxErr)
		}
		if !fakerapi.Retryable(err) {
			b.state = stateFailed
			return nil, fmt.Errorf("batch %d: %w", b.id, err)
		}
		if b.attempt+1 >= f.maxRetries {
			break
		}

		delay := f.backoffDelay(b.attempt)
		b.state = stateRetryScheduled
		f.logger.Warn("batch attempt failed",
			"batch", b.id,
			"attempt", b.attempt+1,
			"max_attempts", f.maxRetries,
			"delay", delay,
			"error", err)
		if sleepErr := f.sleep(ctx, delay); sleepErr != nil {
			b.state = stateFailed
			return nil, fmt.Errorf("batch %d: %w", b.id, sleepErr)
		}
	}

	b.state = stateFailed
	return nil, fmt.Errorf("%w: batch %d failed after %d attempts: %w", ErrExhausted, b.id, f.maxRetries, lastErr)
}

// backoffDelay returns min(base * 2^attempt, max) scaled by jitter.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	delay := f.baseDelay
	for i := 0; i < attempt && delay < f.maxDelay; i++ {
		delay *= 2
	}
	if delay > f.maxDelay {
		delay = f.maxDelay
	}
	return time.Duration(float64(delay) * f.jitter())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
