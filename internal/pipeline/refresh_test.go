package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
	"github.com/sutakip/sutakip/internal/pipeline"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

type mockExtractor struct {
	name    string
	records []domain.Record
	delay   time.Duration
	gate    chan struct{}
	panics  bool
	calls   atomic.Int32

	active    *atomic.Int32
	maxActive *atomic.Int32
}

func (m *mockExtractor) Name() string { return m.name }

func (m *mockExtractor) Extract(ctx context.Context) []domain.Record {
	m.calls.Add(1)
	if m.active != nil {
		n := m.active.Add(1)
		defer m.active.Add(-1)
		for {
			cur := m.maxActive.Load()
			if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
	}
	if m.panics {
		panic("extractor exploded")
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return []domain.Record{}
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.records
}

type mockStore struct {
	mu     sync.Mutex
	err    error
	panics bool
	saved  [][]domain.Record
}

func (m *mockStore) Save(records []domain.Record) error {
	if m.panics {
		panic("disk on fire")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, records)
	return m.err
}

func (m *mockStore) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type mockPublisher struct {
	err       error
	published []domain.Record
}

func (m *mockPublisher) Publish(_ context.Context, records []domain.Record) error {
	m.published = records
	return m.err
}

func rec(city, district string) domain.Record {
	return domain.Record{City: city, District: district, Neighborhood: district + " Mahallesi"}
}

// twoZeroThree returns extractors yielding 2, 0 and 3 records. The first one
// is the slowest so completion order differs from extractor order.
func twoZeroThree() []pipeline.Extractor {
	return []pipeline.Extractor{
		&mockExtractor{name: "a", delay: 30 * time.Millisecond, records: []domain.Record{rec(domain.CityIzmir, "Buca"), rec(domain.CityIzmir, "Konak")}},
		&mockExtractor{name: "b", records: []domain.Record{}},
		&mockExtractor{name: "c", records: []domain.Record{rec(domain.CityIstanbul, "Kadıköy"), rec(domain.CityIstanbul, "Şişli"), rec(domain.CityIstanbul, "Beşiktaş")}},
	}
}

// --- tests ---

func TestRefresh_ConcatenatesInExtractorOrder(t *testing.T) {
	store := &mockStore{}
	r := pipeline.NewRefresher(twoZeroThree(), store, slog.Default(), observability.NewMetricsForTesting())

	got, err := r.Refresh(context.Background())
	require.NoError(t, err)

	want := []domain.Record{
		rec(domain.CityIzmir, "Buca"), rec(domain.CityIzmir, "Konak"),
		rec(domain.CityIstanbul, "Kadıköy"), rec(domain.CityIstanbul, "Şişli"), rec(domain.CityIstanbul, "Beşiktaş"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, store.saves())
	assert.Equal(t, want, store.saved[0])
}

func TestRefresh_SequentialWithConcurrencyOne(t *testing.T) {
	var active, maxActive atomic.Int32
	extractors := make([]pipeline.Extractor, 4)
	for i := range extractors {
		extractors[i] = &mockExtractor{name: "x", delay: 5 * time.Millisecond, active: &active, maxActive: &maxActive}
	}

	r := pipeline.NewRefresher(extractors, &mockStore{}, slog.Default(), observability.NewMetricsForTesting(), pipeline.WithConcurrency(1))
	_, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestRefresh_PersistenceFailureStillReturnsRecords(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	store := &mockStore{err: errors.New("disk full")}
	r := pipeline.NewRefresher(twoZeroThree(), store, slog.Default(), metrics)

	got, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SnapshotWriteErrors), 0)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_PublishesSnapshot(t *testing.T) {
	pub := &mockPublisher{}
	r := pipeline.NewRefresher(twoZeroThree(), &mockStore{}, slog.Default(), observability.NewMetricsForTesting(), pipeline.WithPublisher(pub))

	got, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, got, pub.published)
}

func TestRefresh_PublishFailureIsAbsorbed(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{err: errors.New("broker down")}
	r := pipeline.NewRefresher(twoZeroThree(), &mockStore{}, slog.Default(), metrics, pipeline.WithPublisher(pub))

	got, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestRefresh_PanicDegradesThatExtractor(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	store := &mockStore{}
	extractors := []pipeline.Extractor{
		&mockExtractor{name: "ok", records: []domain.Record{rec(domain.CityAnkara, "Çankaya")}},
		&mockExtractor{name: "boom", panics: true},
	}
	r := pipeline.NewRefresher(extractors, store, slog.Default(), metrics)

	got, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.Record{rec(domain.CityAnkara, "Çankaya")}, got)
	assert.Equal(t, 1, store.saves())
	assert.NoError(t, r.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SourceFailures.WithLabelValues("boom")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RefreshRuns.WithLabelValues("success")), 0)
}

func TestRefresh_StorePanicBecomesError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	r := pipeline.NewRefresher(twoZeroThree(), &mockStore{panics: true}, slog.Default(), metrics)

	got, err := r.Refresh(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Nil(t, got)
	assert.Error(t, r.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RefreshRuns.WithLabelValues("error")), 0)
}

func TestRefresh_CancelledCallerLeavesCycleRunning(t *testing.T) {
	store := &mockStore{}
	r := pipeline.NewRefresher(twoZeroThree(), store, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Refresh(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Eventually(t, func() bool { return store.saves() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRefresh_ConcurrentCallersShareOneRun(t *testing.T) {
	gate := make(chan struct{})
	slow := &mockExtractor{name: "slow", gate: gate, records: []domain.Record{rec(domain.CityAnkara, "Mamak")}}
	store := &mockStore{}
	r := pipeline.NewRefresher([]pipeline.Extractor{slow}, store, slog.Default(), observability.NewMetricsForTesting())

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]domain.Record, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = r.Refresh(context.Background())
		}()
	}

	assert.Eventually(t, func() bool { return slow.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), slow.calls.Load())
	assert.Equal(t, 1, store.saves())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 1)
	}
}

func TestCheckReadiness_BeforeFirstCycle(t *testing.T) {
	r := pipeline.NewRefresher(nil, &mockStore{}, slog.Default(), observability.NewMetricsForTesting())
	require.Error(t, r.CheckReadiness(context.Background()))

	got, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_TimeoutKeepsFinishedSources(t *testing.T) {
	store := &mockStore{}
	fast := &mockExtractor{name: "izmir", records: []domain.Record{rec(domain.CityIzmir, "Buca"), rec(domain.CityIzmir, "Konak")}}
	stuck := &mockExtractor{name: "ankara", gate: make(chan struct{})}
	r := pipeline.NewRefresher([]pipeline.Extractor{fast, stuck}, store, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithTimeout(50*time.Millisecond))

	got, err := r.Refresh(context.Background())

	require.NoError(t, err)
	want := []domain.Record{rec(domain.CityIzmir, "Buca"), rec(domain.CityIzmir, "Konak")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, store.saves())
	assert.Equal(t, want, store.saved[0])
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresh_TimeoutIgnoresExtractorThatOverruns(t *testing.T) {
	store := &mockStore{}
	fast := &mockExtractor{name: "izmir", records: []domain.Record{rec(domain.CityIzmir, "Buca")}}
	slow := &mockExtractor{name: "istanbul", delay: 200 * time.Millisecond, records: []domain.Record{rec(domain.CityIstanbul, "Şişli")}}
	r := pipeline.NewRefresher([]pipeline.Extractor{fast, slow}, store, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithTimeout(30*time.Millisecond))

	got, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.Record{rec(domain.CityIzmir, "Buca")}, got)
	// let the overrunning extractor finish before goleak runs
	time.Sleep(250 * time.Millisecond)
}
