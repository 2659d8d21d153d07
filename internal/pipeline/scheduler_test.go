package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
	"github.com/sutakip/sutakip/internal/pipeline"
)

type mockRefresher struct {
	calls atomic.Int32
	// behavior for each call index; missing entries succeed.
	fail  map[int32]error
	panic map[int32]bool
}

func (m *mockRefresher) Refresh(_ context.Context) ([]domain.Record, error) {
	n := m.calls.Add(1)
	if m.panic[n] {
		panic("refresh exploded")
	}
	if err := m.fail[n]; err != nil {
		return nil, err
	}
	return []domain.Record{{City: domain.CityAnkara}}, nil
}

func startScheduler(t *testing.T, r pipeline.RefreshRunner, clock clockwork.Clock, metrics *observability.Metrics) (context.CancelFunc, <-chan error) {
	t.Helper()
	s := pipeline.NewScheduler(r, 15*time.Minute, clock, slog.Default(), metrics)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return cancel, done
}

func stopScheduler(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type blocker interface {
	BlockUntilContext(ctx context.Context, n int) error
}

func waitForTicker(t *testing.T, clock blocker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func TestScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := &mockRefresher{}
	metrics := observability.NewMetricsForTesting()

	cancel, done := startScheduler(t, r, clock, metrics)

	waitForTicker(t, clock)
	assert.Equal(t, int32(1), r.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SchedulerRunning), 0)

	clock.Advance(15 * time.Minute)
	assert.Eventually(t, func() bool { return r.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	clock.Advance(15 * time.Minute)
	assert.Eventually(t, func() bool { return r.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	stopScheduler(t, cancel, done)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.SchedulerRunning), 0)
}

func TestScheduler_NoRunBeforeInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := &mockRefresher{}

	cancel, done := startScheduler(t, r, clock, observability.NewMetricsForTesting())
	waitForTicker(t, clock)

	clock.Advance(14 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load())

	stopScheduler(t, cancel, done)
}

func TestScheduler_SurvivesFailuresAndPanics(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := &mockRefresher{
		fail:  map[int32]error{1: errors.New("upstream down")},
		panic: map[int32]bool{2: true},
	}

	cancel, done := startScheduler(t, r, clock, observability.NewMetricsForTesting())
	waitForTicker(t, clock)

	clock.Advance(15 * time.Minute)
	assert.Eventually(t, func() bool { return r.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	clock.Advance(15 * time.Minute)
	assert.Eventually(t, func() bool { return r.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	stopScheduler(t, cancel, done)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := &mockRefresher{}

	cancel, done := startScheduler(t, r, clock, observability.NewMetricsForTesting())
	waitForTicker(t, clock)

	stopScheduler(t, cancel, done)
	assert.Equal(t, int32(1), r.calls.Load())
}
