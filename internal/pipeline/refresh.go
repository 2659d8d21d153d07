package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Extractor produces the records of one upstream. Implementations return an
// empty slice instead of failing.
type Extractor interface {
	Name() string
	Extract(ctx context.Context) []domain.Record
}

// SnapshotStore persists the result of a refresh cycle.
type SnapshotStore interface {
	Save(records []domain.Record) error
}

// Publisher forwards the result of a refresh cycle downstream.
type Publisher interface {
	Publish(ctx context.Context, records []domain.Record) error
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithPublisher forwards every snapshot to p after it is persisted.
func WithPublisher(p Publisher) Option {
	return func(r *Refresher) { r.publisher = p }
}

// WithConcurrency bounds how many extractors run at once. 1 runs them
// sequentially.
func WithConcurrency(n int) Option {
	return func(r *Refresher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeout bounds the extraction phase of every cycle to d. Extractors
// still running when d elapses count as empty.
func WithTimeout(d time.Duration) Option {
	return func(r *Refresher) { r.timeout = d }
}

// Refresher runs one extract-aggregate-persist cycle on demand. Concurrent
// callers share a single in-flight cycle.
type Refresher struct {
	extractors  []Extractor
	store       SnapshotStore
	publisher   Publisher
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics

	flight singleflight.Group
	ready  atomic.Bool
}

// NewRefresher creates a Refresher over extractors, whose order defines the
// order of records in every snapshot.
func NewRefresher(extractors []Extractor, store SnapshotStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Refresher {
	r := &Refresher{
		extractors:  extractors,
		store:       store,
		concurrency: len(extractors),
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

// CheckReadiness returns nil once at least one cycle has completed.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// Refresh runs a cycle, or joins the one already running, and returns its
// records. The cycle is detached from ctx and always runs to completion; ctx
// only bounds how long this caller waits. Source failures, timeouts and
// persistence failures are absorbed, so the only other error is a panic while
// persisting or publishing.
func (r *Refresher) Refresh(ctx context.Context) ([]domain.Record, error) {
	ch := r.flight.DoChan("refresh", func() (any, error) {
		return r.run(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("joined in-flight refresh")
		}
		return res.Val.([]domain.Record), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("refresh abandoned: %w", ctx.Err())
	}
}

func (r *Refresher) run(ctx context.Context) (records []domain.Record, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			records, err = nil, fmt.Errorf("refresh panicked: %v", p)
		}
		if err != nil {
			r.logger.Error("refresh failed", "error", err, "duration", time.Since(start))
			r.metrics.RefreshRuns.WithLabelValues("error").Inc()
			return
		}
		r.metrics.RefreshRuns.WithLabelValues("success").Inc()
	}()

	results := r.extractAll(ctx)

	total := 0
	for _, res := range results {
		total += len(res)
	}
	records = make([]domain.Record, 0, total)
	for _, res := range results {
		records = append(records, res...)
	}

	if err := r.store.Save(records); err != nil {
		r.logger.Error("snapshot write failed", "error", err, "records", len(records))
		r.metrics.SnapshotWriteErrors.Inc()
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, records); err != nil {
			r.logger.Warn("snapshot publish failed", "error", err)
			r.metrics.PublishErrors.Inc()
		}
	}

	elapsed := time.Since(start)
	r.metrics.RefreshDuration.Observe(elapsed.Seconds())
	r.metrics.SnapshotRecords.Set(float64(len(records)))
	r.ready.Store(true)
	r.logger.Info("refresh complete", "records", len(records), "duration", elapsed)
	return records, nil
}

// extractAll runs every extractor and returns their results in extractor
// order. Once the cycle timeout passes, extractors that have not finished
// contribute nothing; late results are discarded.
func (r *Refresher) extractAll(ctx context.Context) [][]domain.Record {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		mu      sync.Mutex
		closed  bool
		results = make([][]domain.Record, len(r.extractors))
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, e := range r.extractors {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res := r.extractOne(ctx, e)
				mu.Lock()
				if !closed {
					results[i] = res
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("refresh timeout reached, unfinished sources count as empty", "timeout", r.timeout)
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	return results
}

// extractOne degrades a panicking extractor to an empty contribution.
func (r *Refresher) extractOne(ctx context.Context, e Extractor) (records []domain.Record) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("extractor panicked", "source", e.Name(), "panic", p)
			r.metrics.SourceFailures.WithLabelValues(e.Name()).Inc()
			records = []domain.Record{}
		}
	}()
	return e.Extract(ctx)
}
