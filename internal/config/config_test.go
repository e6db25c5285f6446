package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(originalDir) })
	return tmpDir
}

func clearOverrides(t *testing.T) {
	t.Helper()
	for env := range envOverrides {
		t.Setenv(env, "")
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearOverrides(t)
	tmpDir := chdirTemp(t)

	configContent := `
app:
  name: "weather-relay-test"
  env: "test"
  log_level: "debug"

openweather:
  api_key: "file-key"
  base_url: "http://localhost:9999/data/2.5"

geolocation:
  provider: "ipapi"
  endpoint: "http://localhost:9998/json/"
  timeout: "5s"
  maximum_age: "2m"

kafka:
  broker: "kafka:9092"
  outbox_topic: "watch.out"
  inbox_topic: "watch.in"
  group_id: "relay-test"
  device_id: "watch-1"
  required_acks: -1
  max_retries: 5

relay:
  single_flight: true
  cycle_timeout: "20s"

scheduler:
  refresh_interval: "15m"
  timeout: "10s"

api:
  enabled: true
  port: 9090
  rate_limit: 5
  rate_window: "2s"
  shutdown_timeout: "3s"

healthcheck:
  api_timeout: "1s"
  kafka_timeout: "2s"
  retry_interval: "500ms"
  max_retries: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configContent), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "weather-relay-test", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "debug", cfg.App.LogLevel)

	assert.Equal(t, "file-key", cfg.OpenWeather.APIKey)
	assert.Equal(t, "http://localhost:9999/data/2.5", cfg.OpenWeather.BaseURL)

	assert.Equal(t, "ipapi", cfg.Geolocation.Provider)
	assert.Equal(t, "http://localhost:9998/json/", cfg.Geolocation.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Geolocation.MaximumAge)

	assert.Equal(t, "kafka:9092", cfg.Kafka.Broker)
	assert.Equal(t, "watch.out", cfg.Kafka.OutboxTopic)
	assert.Equal(t, "watch.in", cfg.Kafka.InboxTopic)
	assert.Equal(t, "relay-test", cfg.Kafka.GroupID)
	assert.Equal(t, "watch-1", cfg.Kafka.DeviceID)
	assert.Equal(t, int16(-1), cfg.Kafka.RequiredAcks)
	assert.Equal(t, 5, cfg.Kafka.MaxRetries)

	assert.True(t, cfg.Relay.SingleFlight)
	assert.Equal(t, 20*time.Second, cfg.Relay.CycleTimeout)

	assert.Equal(t, 15*time.Minute, cfg.Scheduler.RefreshInterval)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Timeout)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, 5, cfg.API.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.API.RateWindow)
	assert.Equal(t, 3*time.Second, cfg.API.ShutdownTimeout)

	assert.Equal(t, 500*time.Millisecond, cfg.HealthCheck.RetryInterval)
	assert.Equal(t, 2, cfg.HealthCheck.MaxRetries)
}

func TestLoad_Defaults(t *testing.T) {
	clearOverrides(t)
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "weather-relay", cfg.App.Name)
	assert.Equal(t, "http://api.openweathermap.org/data/2.5", cfg.OpenWeather.BaseURL)
	assert.Empty(t, cfg.OpenWeather.APIKey)
	assert.Equal(t, "ipapi", cfg.Geolocation.Provider)
	assert.Equal(t, "http://ip-api.com/json/?fields=status,message,lat,lon", cfg.Geolocation.Endpoint)
	assert.Equal(t, 15*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Geolocation.MaximumAge)
	assert.Equal(t, "localhost:9092", cfg.Kafka.Broker)
	assert.False(t, cfg.Relay.SingleFlight)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.RefreshInterval)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearOverrides(t)
	chdirTemp(t)

	t.Setenv("WEATHER_API_KEY", "env-key")
	t.Setenv("OPENWEATHER_BASE_URL", "http://owm.test")
	t.Setenv("KAFKA_BROKER", "broker:29092")
	t.Setenv("KAFKA_OUTBOX_TOPIC", "env.out")
	t.Setenv("KAFKA_INBOX_TOPIC", "env.in")
	t.Setenv("DEVICE_ID", "env-device")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.OpenWeather.APIKey)
	assert.Equal(t, "http://owm.test", cfg.OpenWeather.BaseURL)
	assert.Equal(t, "broker:29092", cfg.Kafka.Broker)
	assert.Equal(t, "env.out", cfg.Kafka.OutboxTopic)
	assert.Equal(t, "env.in", cfg.Kafka.InboxTopic)
	assert.Equal(t, "env-device", cfg.Kafka.DeviceID)
}

func TestLoad_StaticCoordinatesFromEnv(t *testing.T) {
	clearOverrides(t)
	chdirTemp(t)

	t.Setenv("GEOLOCATION_PROVIDER", "static")
	t.Setenv("GEOLOCATION_LATITUDE", "59.93")
	t.Setenv("GEOLOCATION_LONGITUDE", "-30.36")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Geolocation.Provider)
	assert.InDelta(t, 59.93, cfg.Geolocation.Latitude, 1e-9)
	assert.InDelta(t, -30.36, cfg.Geolocation.Longitude, 1e-9)
}

func TestLoad_DotEnv(t *testing.T) {
	clearOverrides(t)
	tmpDir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("WEATHER_API_KEY=dotenv-key\n"), 0644))
	// godotenv never overrides a variable that is already set, even to "".
	require.NoError(t, os.Unsetenv("WEATHER_API_KEY"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dotenv-key", cfg.OpenWeather.APIKey)
}

func TestLoad_UnknownProvider(t *testing.T) {
	clearOverrides(t)
	chdirTemp(t)
	t.Setenv("GEOLOCATION_PROVIDER", "gps")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown geolocation provider "gps"`)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Geolocation: GeolocationConfig{Provider: "static", Latitude: 51.5, Longitude: -0.12, Timeout: 15 * time.Second},
			Kafka:       KafkaConfig{Broker: "localhost:9092", OutboxTopic: "out", InboxTopic: "in"},
			API:         APIConfig{Enabled: true, Port: 8080, RateLimit: 10, RateWindow: time.Second},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"valid", func(cfg *Config) {}, ""},
		{"missing api key is allowed", func(cfg *Config) { cfg.OpenWeather.APIKey = "" }, ""},
		{"empty broker", func(cfg *Config) { cfg.Kafka.Broker = "" }, "kafka broker must not be empty"},
		{"empty outbox", func(cfg *Config) { cfg.Kafka.OutboxTopic = "" }, "kafka outbox topic must not be empty"},
		{"empty inbox", func(cfg *Config) { cfg.Kafka.InboxTopic = "" }, "kafka inbox topic must not be empty"},
		{"zero geolocation timeout", func(cfg *Config) { cfg.Geolocation.Timeout = 0 }, "geolocation timeout must be positive"},
		{"negative maximum age", func(cfg *Config) { cfg.Geolocation.MaximumAge = -time.Second }, "maximum age must not be negative"},
		{"latitude out of range", func(cfg *Config) { cfg.Geolocation.Latitude = 91 }, "latitude 91 out of range"},
		{"longitude out of range", func(cfg *Config) { cfg.Geolocation.Longitude = -181 }, "longitude -181 out of range"},
		{"ipapi without endpoint", func(cfg *Config) { cfg.Geolocation.Provider = "ipapi" }, "endpoint must not be empty"},
		{"unknown provider", func(cfg *Config) { cfg.Geolocation.Provider = "gps" }, "unknown geolocation provider"},
		{"negative refresh interval", func(cfg *Config) { cfg.Scheduler.RefreshInterval = -time.Minute }, "refresh interval must not be negative"},
		{"bad port", func(cfg *Config) { cfg.API.Port = 70000 }, "api port 70000 out of range"},
		{"bad port ignored when api disabled", func(cfg *Config) {
			cfg.API.Enabled = false
			cfg.API.Port = 0
		}, ""},
		{"zero rate limit", func(cfg *Config) { cfg.API.RateLimit = 0 }, "rate limit and window must be positive"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)

			err := validateConfig(&cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
