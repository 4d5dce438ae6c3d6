package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/couchcryptid/reliefops/internal/observability"
	"github.com/couchcryptid/reliefops/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(n int) *int { return &n }

func sampleShelters() []domain.Shelter {
	return []domain.Shelter{
		{ID: "sample-shelter-1", Name: "Community Center North 1", County: "Broward", Status: domain.ShelterOperational},
	}
}

func sampleAlerts() []domain.Alert {
	return []domain.Alert{
		{ID: "sample-alert-1", Severity: domain.SeverityWarning, Title: "Sample Alert 1", CreatedAt: time.Now()},
	}
}

// stubShelterFetcher returns canned results keyed by region, optionally
// gating each call so tests control resolution order.
type stubShelterFetcher struct {
	mu       sync.Mutex
	byRegion map[string][]domain.Shelter
	errs     map[string]error
	started  chan string
	gates    map[string]chan struct{}
}

func newStubShelterFetcher() *stubShelterFetcher {
	return &stubShelterFetcher{
		byRegion: map[string][]domain.Shelter{},
		errs:     map[string]error{},
		started:  make(chan string, 16),
		gates:    map[string]chan struct{}{},
	}
}

func (f *stubShelterFetcher) FetchShelters(_ context.Context, region string) ([]domain.Shelter, error) {
	f.mu.Lock()
	gate := f.gates[region]
	items := f.byRegion[region]
	err := f.errs[region]
	f.mu.Unlock()

	f.started <- region
	if gate != nil {
		<-gate
	}
	return items, err
}

func (f *stubShelterFetcher) set(region string, items []domain.Shelter, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byRegion[region] = items
	f.errs[region] = err
}

func (f *stubShelterFetcher) gate(region string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[region] = gate
	return gate
}

type stubAlertFetcher struct {
	mu       sync.Mutex
	byRegion map[string][]domain.Alert
	errs     map[string]error
	started  chan string
}

func newStubAlertFetcher() *stubAlertFetcher {
	return &stubAlertFetcher{
		byRegion: map[string][]domain.Alert{},
		errs:     map[string]error{},
		started:  make(chan string, 16),
	}
}

func (f *stubAlertFetcher) FetchAlerts(_ context.Context, region string) ([]domain.Alert, error) {
	f.mu.Lock()
	items := f.byRegion[region]
	err := f.errs[region]
	f.mu.Unlock()

	f.started <- region
	return items, err
}

func (f *stubAlertFetcher) set(region string, items []domain.Alert, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byRegion[region] = items
	f.errs[region] = err
}

type fixture struct {
	store    *store.Store
	shelters *stubShelterFetcher
	alerts   *stubAlertFetcher
	clock    *clockwork.FakeClock
	metrics  *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		shelters: newStubShelterFetcher(),
		alerts:   newStubAlertFetcher(),
		clock:    clockwork.NewFakeClock(),
		metrics:  observability.NewMetricsForTesting(),
	}
	f.shelters.set("FL", []domain.Shelter{
		{ID: "fema-100", Name: "Live Shelter", County: "Miami-Dade", Status: domain.ShelterOperational},
	}, nil)
	f.alerts.set("FL", []domain.Alert{
		{ID: "nws-abc", Severity: domain.SeverityError, Title: "Hurricane Warning"},
	}, nil)

	f.store = store.New(store.Options{
		Region:              "FL",
		AlertPollInterval:   2 * time.Minute,
		ShelterPollInterval: 2 * time.Minute,
		Shelters:            f.shelters,
		Alerts:              f.alerts,
		SampleShelters:      sampleShelters(),
		SampleAlerts:        sampleAlerts(),
		Clock:               f.clock,
		Logger:              discardLogger(),
		Metrics:             f.metrics,
	})
	t.Cleanup(f.store.Close)
	return f
}

func waitForStatus(t *testing.T, f *fixture, feed string, want store.FeedStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := f.store.StateSnapshot()
		if feed == "shelters" {
			return snap.ShelterFeed.Status == want
		}
		return snap.AlertFeed.Status == want
	}, 2*time.Second, 5*time.Millisecond, "feed %s never reached %s", feed, want)
}

func TestStore_SampleViewByDefault(t *testing.T) {
	f := newFixture(t)

	snap := f.store.StateSnapshot()
	assert.False(t, snap.LiveEnabled)
	assert.Equal(t, "FL", snap.Region)
	assert.Equal(t, store.FeedIdle, snap.ShelterFeed.Status)
	assert.Equal(t, store.FeedIdle, snap.AlertFeed.Status)

	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "sample-shelter-1", shelters[0].ID)
	alerts := f.store.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "sample-alert-1", alerts[0].ID)
}

func TestStore_EnableLiveLoadsBothFeeds(t *testing.T) {
	f := newFixture(t)

	gate := f.shelters.gate("FL")
	f.store.SetLiveMode(true)

	// Loading is visible before either fetch resolves.
	snap := f.store.StateSnapshot()
	assert.True(t, snap.LiveEnabled)
	assert.Equal(t, store.FeedLoading, snap.ShelterFeed.Status)

	close(gate)
	waitForStatus(t, f, "shelters", store.FeedOK)
	waitForStatus(t, f, "alerts", store.FeedOK)

	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "fema-100", shelters[0].ID)
	alerts := f.store.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "nws-abc", alerts[0].ID)

	snap = f.store.StateSnapshot()
	require.NotNil(t, snap.ShelterFeed.LastFetchedAt)
	assert.Equal(t, 1, snap.ShelterFeed.ItemCount)
}

func TestStore_SetLiveModeIsIdempotent(t *testing.T) {
	f := newFixture(t)

	f.store.SetLiveMode(true)
	waitForStatus(t, f, "shelters", store.FeedOK)
	<-f.shelters.started
	<-f.alerts.started

	// Repeating the current value must not dispatch new fetches.
	f.store.SetLiveMode(true)
	select {
	case r := <-f.shelters.started:
		t.Fatalf("unexpected shelter fetch for region %s", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_DisableClearsFeedsAndStopsPolling(t *testing.T) {
	f := newFixture(t)

	f.store.SetLiveMode(true)
	waitForStatus(t, f, "shelters", store.FeedOK)
	waitForStatus(t, f, "alerts", store.FeedOK)
	<-f.shelters.started
	<-f.alerts.started

	f.store.SetLiveMode(false)

	snap := f.store.StateSnapshot()
	assert.False(t, snap.LiveEnabled)
	assert.Equal(t, store.FeedIdle, snap.ShelterFeed.Status)
	assert.Equal(t, store.FeedIdle, snap.AlertFeed.Status)
	assert.Equal(t, 0, snap.ShelterFeed.ItemCount)
	assert.Equal(t, 0, snap.AlertFeed.ItemCount)
	assert.Nil(t, snap.ShelterFeed.LastFetchedAt)

	// The view falls back to the sample fixture.
	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "sample-shelter-1", shelters[0].ID)

	// No poll tick fires after disable returns.
	f.clock.Advance(10 * time.Minute)
	select {
	case r := <-f.shelters.started:
		t.Fatalf("poller fired after disable for region %s", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_PollTickRefetchesFeeds(t *testing.T) {
	f := newFixture(t)

	f.store.SetLiveMode(true)
	require.Equal(t, "FL", <-f.shelters.started)
	require.Equal(t, "FL", <-f.alerts.started)
	waitForStatus(t, f, "shelters", store.FeedOK)
	waitForStatus(t, f, "alerts", store.FeedOK)

	// Both pollers are blocked on their tickers.
	f.clock.BlockUntil(2)
	f.clock.Advance(2 * time.Minute)

	require.Equal(t, "FL", <-f.shelters.started)
	require.Equal(t, "FL", <-f.alerts.started)
}

func TestStore_SetRegionRefetchesWhenLive(t *testing.T) {
	f := newFixture(t)
	f.shelters.set("GA", []domain.Shelter{{ID: "fema-200", Name: "Georgia Dome", Status: domain.ShelterOperational}}, nil)
	f.alerts.set("GA", nil, nil)

	f.store.SetLiveMode(true)
	require.Equal(t, "FL", <-f.shelters.started)
	waitForStatus(t, f, "shelters", store.FeedOK)

	f.store.SetRegion("GA")
	require.Equal(t, "GA", <-f.shelters.started)
	waitForStatus(t, f, "shelters", store.FeedOK)

	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "fema-200", shelters[0].ID)
}

func TestStore_SetRegionWhileSampleDoesNotFetch(t *testing.T) {
	f := newFixture(t)

	f.store.SetRegion("GA")

	assert.Equal(t, "GA", f.store.StateSnapshot().Region)
	select {
	case r := <-f.shelters.started:
		t.Fatalf("unexpected fetch for region %s", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_StaleRegionResponseIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.shelters.set("GA", []domain.Shelter{{ID: "fema-200", Name: "Georgia Dome", Status: domain.ShelterOperational}}, nil)
	f.alerts.set("GA", nil, nil)
	flGate := f.shelters.gate("FL")

	f.store.SetLiveMode(true)
	require.Equal(t, "FL", <-f.shelters.started)

	// Region changes while the FL response is still in flight.
	f.store.SetRegion("GA")
	require.Equal(t, "GA", <-f.shelters.started)
	waitForStatus(t, f, "shelters", store.FeedOK)

	// The late FL response must not overwrite the GA items.
	close(flGate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.FeedFetches.WithLabelValues("shelters", "stale")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "fema-200", shelters[0].ID)
}

func TestStore_FetchErrorKeepsPriorItems(t *testing.T) {
	f := newFixture(t)

	f.store.SetLiveMode(true)
	waitForStatus(t, f, "shelters", store.FeedOK)
	<-f.shelters.started

	f.shelters.set("FL", nil, errors.New("upstream 503"))
	f.store.FetchShelterFeed(context.Background())
	<-f.shelters.started
	waitForStatus(t, f, "shelters", store.FeedError)

	snap := f.store.StateSnapshot()
	assert.Equal(t, "upstream 503", snap.ShelterFeed.Error)
	// Stale-but-present beats empty.
	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "fema-100", shelters[0].ID)
}

func TestStore_FeedFailuresAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.alerts.set("FL", nil, errors.New("rate limited"))

	f.store.SetLiveMode(true)
	waitForStatus(t, f, "shelters", store.FeedOK)
	waitForStatus(t, f, "alerts", store.FeedError)

	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	assert.Equal(t, "fema-100", shelters[0].ID)
	assert.Empty(t, f.store.ActiveAlerts())
}

func TestStore_FetchFeedIsNoOpWhenSample(t *testing.T) {
	f := newFixture(t)

	f.store.FetchShelterFeed(context.Background())
	f.store.FetchAlertFeed(context.Background())

	select {
	case <-f.shelters.started:
		t.Fatal("shelter fetch dispatched while live mode off")
	case <-f.alerts.started:
		t.Fatal("alert fetch dispatched while live mode off")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, store.FeedIdle, f.store.StateSnapshot().ShelterFeed.Status)
}

func TestStore_SelectorsReturnCopies(t *testing.T) {
	f := newFixture(t)

	shelters := f.store.ActiveShelters()
	require.Len(t, shelters, 1)
	shelters[0].Name = "mutated"

	again := f.store.ActiveShelters()
	assert.Equal(t, "Community Center North 1", again[0].Name)
}

func TestStore_CoverageFor(t *testing.T) {
	f := newFixture(t)

	live := domain.Shelter{ID: "fema-100", CapacityTotal: intPtr(200), CapacityUsed: intPtr(50)}
	sample := domain.Shelter{ID: "sample-shelter-1"}

	// Live mode off: everything reads as sample.
	cov := f.store.CoverageFor(live)
	assert.Equal(t, "sample", cov.Location)
	assert.Equal(t, "reported", cov.Capacity)

	f.store.SetLiveMode(true)
	waitForStatus(t, f, "shelters", store.FeedOK)

	cov = f.store.CoverageFor(live)
	assert.Equal(t, "live", cov.Location)
	assert.Equal(t, "reported", cov.Capacity)

	cov = f.store.CoverageFor(sample)
	assert.Equal(t, "sample", cov.Location)
	assert.Equal(t, "n/a", cov.Capacity)
}
