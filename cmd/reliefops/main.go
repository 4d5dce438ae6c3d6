package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reliefops/internal/adapter/fema"
	"github.com/couchcryptid/reliefops/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/reliefops/internal/adapter/kafka"
	"github.com/couchcryptid/reliefops/internal/adapter/mapbox"
	"github.com/couchcryptid/reliefops/internal/adapter/nws"
	"github.com/couchcryptid/reliefops/internal/config"
	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/couchcryptid/reliefops/internal/observability"
	"github.com/couchcryptid/reliefops/internal/prefs"
	"github.com/couchcryptid/reliefops/internal/seed"
	"github.com/couchcryptid/reliefops/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	// Local development convenience; ignore a missing .env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// County/coordinate enrichment is feature-flagged via MAPBOX_ENABLED /
	// MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	shelterFeed := fema.NewClient(cfg.FEMABaseURL, cfg.FetchUserAgent, cfg.FetchTimeout, geocoder, clock, logger)
	alertFeed := nws.NewClient(cfg.NWSBaseURL, cfg.FetchUserAgent, cfg.FetchTimeout, clock, logger)

	// Change-event sink is enabled when brokers are configured.
	var sink store.EventSink
	var sinkWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		sinkWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaEventsTopic, logger)
		sink = sinkWriter
		logger.Info("change-event sink enabled", "topic", cfg.KafkaEventsTopic)
	}

	seedValue := cfg.SampleSeed
	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}
	dataset := seed.Generate(rand.New(rand.NewSource(seedValue)), time.Now())
	logger.Info("sample dataset generated", "seed", seedValue,
		"shelters", len(dataset.Shelters), "alerts", len(dataset.Alerts))

	st := store.New(store.Options{
		Region:              cfg.Region,
		AlertPollInterval:   cfg.AlertPollInterval,
		ShelterPollInterval: cfg.ShelterPollInterval,
		Shelters:            shelterFeed,
		Alerts:              alertFeed,
		Sink:                sink,
		SampleShelters:      dataset.Shelters,
		SampleAlerts:        dataset.Alerts,
		Clock:               clock,
		Logger:              logger,
		Metrics:             metrics,
	})

	prefsStore, err := prefs.Open(cfg.PrefsDBPath, prefs.Theme(cfg.ThemeDefault), logger)
	if err != nil {
		logger.Error("failed to open prefs store", "error", err)
		os.Exit(1)
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, st, prefsStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	st.Close()
	if sinkWriter != nil {
		if err := sinkWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := prefsStore.Close(); err != nil {
		logger.Error("prefs store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
