package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// minAlertPollInterval is the floor for the alert feed cadence.
// api.weather.gov rate-limits aggressive pollers.
const minAlertPollInterval = 60 * time.Second

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Feed configuration.
	Region              string
	NWSBaseURL          string
	FEMABaseURL         string
	FetchUserAgent      string
	FetchTimeout        time.Duration
	AlertPollInterval   time.Duration
	ShelterPollInterval time.Duration

	// Sample dataset configuration. A zero seed means time-based.
	SampleSeed int64

	// Theme preference persistence.
	PrefsDBPath  string
	ThemeDefault string

	// Mapbox county/coordinate enrichment.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Optional Kafka change-event sink, enabled when brokers are set.
	KafkaBrokers     []string
	KafkaEventsTopic string
	KafkaEnabled     bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	alertInterval, err := parseDuration("ALERT_POLL_INTERVAL", "120s")
	if err != nil {
		return nil, err
	}
	shelterInterval, err := parseDuration("SHELTER_POLL_INTERVAL", "600s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	sampleSeed, err := parseSampleSeed()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Region:              sharedcfg.EnvOrDefault("REGION", "FL"),
		NWSBaseURL:          sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		FEMABaseURL:         sharedcfg.EnvOrDefault("FEMA_BASE_URL", "https://gis.fema.gov/arcgis/rest/services/NSS/OpenShelters/MapServer/0"),
		FetchUserAgent:      sharedcfg.EnvOrDefault("FETCH_USER_AGENT", "ReliefOps/1.0 (ops@couchcryptid.dev)"),
		FetchTimeout:        fetchTimeout,
		AlertPollInterval:   alertInterval,
		ShelterPollInterval: shelterInterval,

		SampleSeed: sampleSeed,

		PrefsDBPath:  sharedcfg.EnvOrDefault("PREFS_DB_PATH", "data/reliefops.db"),
		ThemeDefault: sharedcfg.EnvOrDefault("THEME_DEFAULT", "dark"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		KafkaBrokers:     brokers,
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "reliefops-change-events"),
		KafkaEnabled:     len(brokers) > 0,
	}

	if len(cfg.Region) != 2 {
		return nil, fmt.Errorf("REGION must be a two-letter state code, got %q", cfg.Region)
	}
	if cfg.AlertPollInterval < minAlertPollInterval {
		return nil, fmt.Errorf("ALERT_POLL_INTERVAL must be at least %s to respect upstream rate limits", minAlertPollInterval)
	}
	if cfg.ShelterPollInterval <= 0 {
		return nil, errors.New("SHELTER_POLL_INTERVAL must be positive")
	}
	if cfg.ThemeDefault != "dark" && cfg.ThemeDefault != "light" {
		return nil, fmt.Errorf("THEME_DEFAULT must be dark or light, got %q", cfg.ThemeDefault)
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := sharedcfg.EnvOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseSampleSeed() (int64, error) {
	s := os.Getenv("SAMPLE_SEED")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SAMPLE_SEED: %q", s)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
