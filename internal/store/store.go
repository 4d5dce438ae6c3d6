// Package store holds the single in-memory state container for the
// relief-ops dashboard core: the live/sample view selection, both external
// feeds with their fetch status, the incident workflow collection, and the
// bounded activity feed.
//
// All mutation goes through named actions on [Store]; each action is one
// locked, non-interruptible step. Network calls happen outside the lock, so
// both feeds can be in flight at once while every state transition stays
// serialized. Fetch dispatches are tagged with an epoch that SetLiveMode
// and SetRegion advance; a response carrying a stale epoch is discarded
// instead of overwriting newer state. Two same-epoch fetches for one feed
// still resolve last-write-wins.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/couchcryptid/reliefops/internal/observability"
	"github.com/couchcryptid/reliefops/internal/poller"
	"github.com/jonboulle/clockwork"
)

// FeedStatus is the fetch lifecycle state of one external feed.
type FeedStatus string

const (
	FeedIdle    FeedStatus = "idle"
	FeedLoading FeedStatus = "loading"
	FeedOK      FeedStatus = "ok"
	FeedError   FeedStatus = "error"
)

// Feed names used in snapshots, logs, and metrics labels.
const (
	feedShelters = "shelters"
	feedAlerts   = "alerts"
)

// ShelterFetcher retrieves and normalizes the shelter registry for a region.
type ShelterFetcher interface {
	FetchShelters(ctx context.Context, region string) ([]domain.Shelter, error)
}

// AlertFetcher retrieves and normalizes active weather alerts for a region.
type AlertFetcher interface {
	FetchAlerts(ctx context.Context, region string) ([]domain.Alert, error)
}

// EventSink receives recorded change events, e.g. a Kafka producer. May be
// nil, in which case events stay local to the activity feed.
type EventSink interface {
	Publish(ctx context.Context, events ...domain.ChangeEvent) error
}

// FeedSnapshot is a point-in-time copy of one feed's fetch state.
type FeedSnapshot struct {
	Name          string     `json:"name"`
	Status        FeedStatus `json:"status"`
	LastFetchedAt *time.Time `json:"lastFetchedAt"`
	Error         string     `json:"error,omitempty"`
	ItemCount     int        `json:"itemCount"`
}

// Snapshot is a point-in-time copy of the store's control state.
type Snapshot struct {
	LiveEnabled bool         `json:"liveEnabled"`
	Region      string       `json:"region"`
	ShelterFeed FeedSnapshot `json:"shelterFeed"`
	AlertFeed   FeedSnapshot `json:"alertFeed"`
}

// Coverage tells a consumer which parts of a shelter record are backed by
// live data so missing fields are not mistaken for real zeros.
type Coverage struct {
	Location string `json:"location"` // "live" or "sample"
	Capacity string `json:"capacity"` // "reported" or "n/a"
}

// Options configures a Store.
type Options struct {
	Region              string
	AlertPollInterval   time.Duration
	ShelterPollInterval time.Duration

	Shelters ShelterFetcher
	Alerts   AlertFetcher
	Sink     EventSink // optional

	SampleShelters []domain.Shelter
	SampleAlerts   []domain.Alert

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Store is the application state container. Zero value is not usable;
// construct with New.
type Store struct {
	mu sync.Mutex

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	shelters ShelterFetcher
	alerts   AlertFetcher
	sink     EventSink

	// baseCtx outlives any single caller so in-flight fetches and poll
	// loops are not tied to request lifetimes.
	baseCtx context.Context
	stop    context.CancelFunc

	region      string
	liveEnabled bool
	epoch       int64

	sampleShelters []domain.Shelter
	sampleAlerts   []domain.Alert

	shelterStatus    FeedStatus
	shelterFetchedAt *time.Time
	shelterErr       string
	liveShelters     []domain.Shelter

	alertStatus    FeedStatus
	alertFetchedAt *time.Time
	alertErr       string
	liveAlerts     []domain.Alert

	incidents []domain.Incident
	activity  []domain.ChangeEvent

	alertInterval   time.Duration
	shelterInterval time.Duration
	shelterPoller   *poller.Poller
	alertPoller     *poller.Poller
}

// New creates a Store seeded with the sample dataset and both feeds idle.
func New(opts Options) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,

		shelters: opts.Shelters,
		alerts:   opts.Alerts,
		sink:     opts.Sink,

		baseCtx: ctx,
		stop:    cancel,

		region:         opts.Region,
		sampleShelters: opts.SampleShelters,
		sampleAlerts:   opts.SampleAlerts,

		shelterStatus: FeedIdle,
		alertStatus:   FeedIdle,

		alertInterval:   opts.AlertPollInterval,
		shelterInterval: opts.ShelterPollInterval,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Close disables live mode, stops both pollers, and cancels any in-flight
// fetches.
func (s *Store) Close() {
	s.SetLiveMode(false)
	s.stop()
}

// CheckReadiness reports whether the store can serve reads. The sample
// dataset is loaded at construction, so a constructed store is ready.
func (s *Store) CheckReadiness(_ context.Context) error {
	return nil
}

// SetLiveMode toggles both feeds together; there is no per-feed switch.
// Enabling marks both feeds loading, dispatches one immediate fetch per
// feed, and arms both pollers. Disabling stops both pollers synchronously
// (no tick can fire after return), then clears live items and resets both
// feeds to idle. Calling with the current value is a no-op.
func (s *Store) SetLiveMode(enabled bool) {
	s.mu.Lock()
	if enabled == s.liveEnabled {
		s.mu.Unlock()
		return
	}

	if !enabled {
		s.disableLiveLocked()
		return
	}

	s.liveEnabled = true
	s.epoch++
	epoch := s.epoch
	s.shelterStatus = FeedLoading
	s.shelterErr = ""
	s.alertStatus = FeedLoading
	s.alertErr = ""

	s.shelterPoller = poller.New(feedShelters, s.shelterInterval, s.clock, func(ctx context.Context) {
		s.FetchShelterFeed(ctx)
	}, s.logger)
	s.alertPoller = poller.New(feedAlerts, s.alertInterval, s.clock, func(ctx context.Context) {
		s.FetchAlertFeed(ctx)
	}, s.logger)
	s.shelterPoller.Start(s.baseCtx)
	s.alertPoller.Start(s.baseCtx)

	if s.metrics != nil {
		s.metrics.LiveMode.Set(1)
	}
	s.logger.Info("live mode enabled", "region", s.region)
	s.mu.Unlock()

	go s.runShelterFetch(s.baseCtx, epoch)
	go s.runAlertFetch(s.baseCtx, epoch)
}

// disableLiveLocked is called with the lock held and releases it.
func (s *Store) disableLiveLocked() {
	s.liveEnabled = false
	s.epoch++
	sp, ap := s.shelterPoller, s.alertPoller
	s.shelterPoller, s.alertPoller = nil, nil
	s.mu.Unlock()

	// Stop outside the lock: a poller task blocked on the network may still
	// need the lock to observe its stale epoch and bail out.
	if sp != nil {
		sp.Stop()
	}
	if ap != nil {
		ap.Stop()
	}

	s.mu.Lock()
	s.liveShelters = nil
	s.liveAlerts = nil
	s.shelterStatus = FeedIdle
	s.shelterErr = ""
	s.shelterFetchedAt = nil
	s.alertStatus = FeedIdle
	s.alertErr = ""
	s.alertFetchedAt = nil
	if s.metrics != nil {
		s.metrics.LiveMode.Set(0)
		s.metrics.FeedItems.WithLabelValues(feedShelters).Set(0)
		s.metrics.FeedItems.WithLabelValues(feedAlerts).Set(0)
	}
	s.logger.Info("live mode disabled")
	s.mu.Unlock()
}

// SetRegion updates the selected region. If live mode is active both feeds
// are re-fetched immediately for the new region, replacing previous items;
// responses still in flight for the old region are discarded.
func (s *Store) SetRegion(region string) {
	s.mu.Lock()
	s.region = region
	if !s.liveEnabled {
		s.mu.Unlock()
		return
	}
	s.epoch++
	epoch := s.epoch
	s.shelterStatus = FeedLoading
	s.shelterErr = ""
	s.alertStatus = FeedLoading
	s.alertErr = ""
	s.logger.Info("region changed", "region", region)
	s.mu.Unlock()

	go s.runShelterFetch(s.baseCtx, epoch)
	go s.runAlertFetch(s.baseCtx, epoch)
}

// FetchShelterFeed runs one shelter-feed fetch cycle. No-op when live mode
// is off. On success the feed's items are replaced wholesale; on failure
// the previous items are kept (stale-but-present beats empty) and only the
// status and error message change.
func (s *Store) FetchShelterFeed(ctx context.Context) {
	s.mu.Lock()
	if !s.liveEnabled {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	s.shelterStatus = FeedLoading
	s.shelterErr = ""
	s.mu.Unlock()

	s.runShelterFetch(ctx, epoch)
}

// FetchAlertFeed runs one alert-feed fetch cycle, independent of the
// shelter feed; one feed's failure never blocks or clears the other.
func (s *Store) FetchAlertFeed(ctx context.Context) {
	s.mu.Lock()
	if !s.liveEnabled {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	s.alertStatus = FeedLoading
	s.alertErr = ""
	s.mu.Unlock()

	s.runAlertFetch(ctx, epoch)
}

// runShelterFetch performs the network call and applies the outcome if the
// dispatch epoch is still current.
func (s *Store) runShelterFetch(ctx context.Context, epoch int64) {
	s.mu.Lock()
	region := s.region
	s.mu.Unlock()

	start := s.clock.Now()
	items, err := s.shelters.FetchShelters(ctx, region)
	s.observeFetch(feedShelters, start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.countFetch(feedShelters, "stale")
		s.logger.Debug("discarding stale shelter response", "region", region)
		return
	}
	if err != nil {
		s.shelterStatus = FeedError
		s.shelterErr = err.Error()
		s.countFetch(feedShelters, "error")
		s.logger.Error("shelter feed fetch failed", "region", region, "error", err)
		return
	}

	s.liveShelters = items
	s.shelterStatus = FeedOK
	s.shelterErr = ""
	now := s.clock.Now()
	s.shelterFetchedAt = &now
	s.countFetch(feedShelters, "success")
	if s.metrics != nil {
		s.metrics.FeedItems.WithLabelValues(feedShelters).Set(float64(len(items)))
	}
	s.logger.Info("shelter feed updated", "region", region, "items", len(items))
}

// runAlertFetch mirrors runShelterFetch for the alert feed.
func (s *Store) runAlertFetch(ctx context.Context, epoch int64) {
	s.mu.Lock()
	region := s.region
	s.mu.Unlock()

	start := s.clock.Now()
	items, err := s.alerts.FetchAlerts(ctx, region)
	s.observeFetch(feedAlerts, start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.countFetch(feedAlerts, "stale")
		s.logger.Debug("discarding stale alert response", "region", region)
		return
	}
	if err != nil {
		s.alertStatus = FeedError
		s.alertErr = err.Error()
		s.countFetch(feedAlerts, "error")
		s.logger.Error("alert feed fetch failed", "region", region, "error", err)
		return
	}

	s.liveAlerts = items
	s.alertStatus = FeedOK
	s.alertErr = ""
	now := s.clock.Now()
	s.alertFetchedAt = &now
	s.countFetch(feedAlerts, "success")
	if s.metrics != nil {
		s.metrics.FeedItems.WithLabelValues(feedAlerts).Set(float64(len(items)))
	}
	s.logger.Info("alert feed updated", "region", region, "items", len(items))
}

// ActiveShelters returns the shelter list for the current view: the live
// feed when live mode is on, the sample fixture otherwise. Never a merge.
func (s *Store) ActiveShelters() []domain.Shelter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveEnabled {
		return cloneShelters(s.liveShelters)
	}
	return cloneShelters(s.sampleShelters)
}

// ActiveAlerts returns the alert list for the current view.
func (s *Store) ActiveAlerts() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveEnabled {
		return cloneAlerts(s.liveAlerts)
	}
	return cloneAlerts(s.sampleAlerts)
}

// CoverageFor reports which parts of a shelter record come from live data.
// Location is live only when live mode is on and the id carries the live
// feed's prefix; capacity is reported only when a positive value exists.
func (s *Store) CoverageFor(shelter domain.Shelter) Coverage {
	s.mu.Lock()
	live := s.liveEnabled
	s.mu.Unlock()

	c := Coverage{Location: "sample", Capacity: "n/a"}
	if live && hasLivePrefix(shelter.ID) {
		c.Location = "live"
	}
	if (shelter.CapacityTotal != nil && *shelter.CapacityTotal > 0) ||
		(shelter.CapacityUsed != nil && *shelter.CapacityUsed > 0) {
		c.Capacity = "reported"
	}
	return c
}

// StateSnapshot returns a copy of the store's control state for status
// displays and the feeds endpoint.
func (s *Store) StateSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LiveEnabled: s.liveEnabled,
		Region:      s.region,
		ShelterFeed: FeedSnapshot{
			Name:          feedShelters,
			Status:        s.shelterStatus,
			LastFetchedAt: copyTime(s.shelterFetchedAt),
			Error:         s.shelterErr,
			ItemCount:     len(s.liveShelters),
		},
		AlertFeed: FeedSnapshot{
			Name:          feedAlerts,
			Status:        s.alertStatus,
			LastFetchedAt: copyTime(s.alertFetchedAt),
			Error:         s.alertErr,
			ItemCount:     len(s.liveAlerts),
		},
	}
}

func (s *Store) observeFetch(feed string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.FeedFetchDuration.WithLabelValues(feed).Observe(s.clock.Since(start).Seconds())
}

func (s *Store) countFetch(feed, outcome string) {
	if s.metrics != nil {
		s.metrics.FeedFetches.WithLabelValues(feed, outcome).Inc()
	}
}

func hasLivePrefix(id string) bool {
	return len(id) > 5 && id[:5] == "fema-"
}

func cloneShelters(in []domain.Shelter) []domain.Shelter {
	out := make([]domain.Shelter, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

func cloneAlerts(in []domain.Alert) []domain.Alert {
	out := make([]domain.Alert, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
