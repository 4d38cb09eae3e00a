package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.PlaybackInterval)
	assert.Equal(t, 24, cfg.ReportHours)
	assert.True(t, cfg.FallbackEnabled)
	assert.Equal(t, 50.0, cfg.ProximityRadiusKm)
	assert.Equal(t, 5*time.Minute, cfg.LocationRefreshInterval)
	assert.Nil(t, cfg.StaticLat)
	assert.Nil(t, cfg.StaticLon)
	assert.False(t, cfg.IPGeoEnabled)
	assert.False(t, cfg.AircraftEnabled)
	assert.Equal(t, 30, cfg.AircraftTrailPoints)
	assert.Equal(t, "data/prefs", cfg.PrefsPath)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.AlertsToKafka())
	assert.Equal(t, "proximity-alerts", cfg.KafkaAlertTopic)
	assert.False(t, cfg.PushAlertsEnabled)
	assert.Equal(t, 30*time.Minute, cfg.AlertCooldown)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://radar.example.com/")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("PLAYBACK_INTERVAL", "2s")
	t.Setenv("REPORT_HOURS", "6")
	t.Setenv("FALLBACK_ENABLED", "false")
	t.Setenv("PROXIMITY_RADIUS_KM", "25.5")
	t.Setenv("LOCATION_LAT", "47.37")
	t.Setenv("LOCATION_LON", "8.54")
	t.Setenv("IPGEO_ENABLED", "true")
	t.Setenv("AIRCRAFT_ENABLED", "1")
	t.Setenv("AIRCRAFT_TRAIL_POINTS", "12")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_ALERT_TOPIC", "alerts")
	t.Setenv("PUSH_ALERTS_ENABLED", "true")
	t.Setenv("ALERT_COOLDOWN", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://radar.example.com", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.PlaybackInterval)
	assert.Equal(t, 6, cfg.ReportHours)
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, 25.5, cfg.ProximityRadiusKm)
	require.NotNil(t, cfg.StaticLat)
	assert.Equal(t, 47.37, *cfg.StaticLat)
	assert.Equal(t, 8.54, *cfg.StaticLon)
	assert.True(t, cfg.IPGeoEnabled)
	assert.True(t, cfg.AircraftEnabled)
	assert.Equal(t, 12, cfg.AircraftTrailPoints)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AlertsToKafka())
	assert.Equal(t, "alerts", cfg.KafkaAlertTopic)
	assert.True(t, cfg.PushAlertsEnabled)
	assert.Equal(t, 5*time.Minute, cfg.AlertCooldown)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"API_TIMEOUT", "POLL_INTERVAL", "PLAYBACK_INTERVAL", "LOCATION_REFRESH_INTERVAL", "ALERT_COOLDOWN"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "-1s")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_ZeroDurations(t *testing.T) {
	t.Setenv("ALERT_COOLDOWN", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.AlertCooldown)

	t.Setenv("POLL_INTERVAL", "0s")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_InvalidNumbers(t *testing.T) {
	cases := map[string]string{
		"REPORT_HOURS":          "0",
		"AIRCRAFT_TRAIL_POINTS": "many",
		"PROXIMITY_RADIUS_KM":   "-5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidAPIBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "not a url")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_BASE_URL")
}

func TestLoad_StaticLocationRequiresBothCoordinates(t *testing.T) {
	t.Setenv("LOCATION_LAT", "47.37")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCATION_LON")
}

func TestLoad_StaticLocationOutOfRange(t *testing.T) {
	t.Setenv("LOCATION_LAT", "91")
	t.Setenv("LOCATION_LON", "8.54")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCATION_LAT")
}
