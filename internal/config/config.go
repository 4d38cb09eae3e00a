package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all client settings, populated from environment variables.
type Config struct {
	APIBaseURL      string
	APITimeout      time.Duration
	HTTPAddr        string
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Polling and playback.
	PollInterval     time.Duration
	PlaybackInterval time.Duration
	ReportHours      int
	FallbackEnabled  bool

	// Proximity and location.
	ProximityRadiusKm       float64
	LocationRefreshInterval time.Duration
	StaticLat               *float64
	StaticLon               *float64
	IPGeoEnabled            bool
	IPGeoURL                string

	// Map layers.
	SatelliteTileURL    string
	AircraftEnabled     bool
	AircraftURL         string
	AircraftTrailPoints int

	// Local persisted preferences.
	PrefsPath string

	// Proximity alert delivery.
	KafkaBrokers      []string
	KafkaAlertTopic   string
	PushAlertsEnabled bool
	AlertCooldown     time.Duration
}

// AlertsToKafka reports whether proximity alerts should be published to Kafka.
func (c *Config) AlertsToKafka() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBaseURL:       strings.TrimRight(sharedcfg.EnvOrDefault("API_BASE_URL", "http://localhost:8000"), "/"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		CORSOrigins:      parseList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		IPGeoURL:         sharedcfg.EnvOrDefault("IPGEO_URL", "http://ip-api.com/json"),
		SatelliteTileURL: sharedcfg.EnvOrDefault("SATELLITE_TILE_URL", "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"),
		AircraftURL:      strings.TrimRight(sharedcfg.EnvOrDefault("AIRCRAFT_URL", "https://opensky-network.org"), "/"),
		PrefsPath:        sharedcfg.EnvOrDefault("PREFS_PATH", "data/prefs"),
		KafkaBrokers:     parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic:  sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "proximity-alerts"),
	}

	durations := []struct {
		key       string
		def       string
		dst       *time.Duration
		allowZero bool
	}{
		{"API_TIMEOUT", "10s", &cfg.APITimeout, false},
		{"POLL_INTERVAL", "5s", &cfg.PollInterval, false},
		{"PLAYBACK_INTERVAL", "1500ms", &cfg.PlaybackInterval, false},
		{"LOCATION_REFRESH_INTERVAL", "5m", &cfg.LocationRefreshInterval, false},
		// 0 turns the alert cool-down off.
		{"ALERT_COOLDOWN", "30m", &cfg.AlertCooldown, true},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def, d.allowZero); err != nil {
			return nil, err
		}
	}

	if cfg.ReportHours, err = parsePositiveInt("REPORT_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.AircraftTrailPoints, err = parsePositiveInt("AIRCRAFT_TRAIL_POINTS", 30); err != nil {
		return nil, err
	}
	if cfg.ProximityRadiusKm, err = parsePositiveFloat("PROXIMITY_RADIUS_KM", 50); err != nil {
		return nil, err
	}

	cfg.FallbackEnabled = parseBool("FALLBACK_ENABLED", true)
	cfg.IPGeoEnabled = parseBool("IPGEO_ENABLED", false)
	cfg.AircraftEnabled = parseBool("AIRCRAFT_ENABLED", false)
	cfg.PushAlertsEnabled = parseBool("PUSH_ALERTS_ENABLED", false)

	if err := cfg.loadStaticLocation(); err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid API_BASE_URL")
	}
	if cfg.AlertsToKafka() && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// loadStaticLocation reads LOCATION_LAT/LOCATION_LON. Both or neither must be set.
func (c *Config) loadStaticLocation() error {
	latStr, lonStr := os.Getenv("LOCATION_LAT"), os.Getenv("LOCATION_LON")
	if latStr == "" && lonStr == "" {
		return nil
	}
	if latStr == "" || lonStr == "" {
		return errors.New("LOCATION_LAT and LOCATION_LON must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return errors.New("invalid LOCATION_LAT")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return errors.New("invalid LOCATION_LON")
	}
	c.StaticLat, c.StaticLon = &lat, &lon
	return nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
