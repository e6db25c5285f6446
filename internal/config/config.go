package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	OpenWeather OpenWeatherConfig
	Geolocation GeolocationConfig
	Kafka       KafkaConfig
	Relay       RelayConfig
	Scheduler   SchedulerConfig
	API         APIConfig
	HealthCheck HealthCheckConfig
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type OpenWeatherConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeolocationConfig struct {
	Provider   string        `mapstructure:"provider"`
	Endpoint   string        `mapstructure:"endpoint"`
	Latitude   float64       `mapstructure:"latitude"`
	Longitude  float64       `mapstructure:"longitude"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaximumAge time.Duration `mapstructure:"maximum_age"`
}

type KafkaConfig struct {
	Broker       string `mapstructure:"broker"`
	OutboxTopic  string `mapstructure:"outbox_topic"`
	InboxTopic   string `mapstructure:"inbox_topic"`
	GroupID      string `mapstructure:"group_id"`
	DeviceID     string `mapstructure:"device_id"`
	RequiredAcks int16  `mapstructure:"required_acks"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

type RelayConfig struct {
	SingleFlight bool          `mapstructure:"single_flight"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

type SchedulerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type APIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HealthCheckConfig struct {
	APITimeout    time.Duration `mapstructure:"api_timeout"`
	KafkaTimeout  time.Duration `mapstructure:"kafka_timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

var envOverrides = map[string]string{
	"WEATHER_API_KEY":      "openweather.api_key",
	"OPENWEATHER_BASE_URL": "openweather.base_url",
	"GEOLOCATION_PROVIDER": "geolocation.provider",
	"KAFKA_BROKER":         "kafka.broker",
	"KAFKA_OUTBOX_TOPIC":   "kafka.outbox_topic",
	"KAFKA_INBOX_TOPIC":    "kafka.inbox_topic",
	"KAFKA_GROUP_ID":       "kafka.group_id",
	"DEVICE_ID":            "kafka.device_id",
	"LOG_LEVEL":            "app.log_level",
	"APP_ENV":              "app.env",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "weather-relay")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("openweather.base_url", "http://api.openweathermap.org/data/2.5")
	v.SetDefault("openweather.timeout", "10s")

	v.SetDefault("geolocation.provider", "ipapi")
	v.SetDefault("geolocation.endpoint", "http://ip-api.com/json/?fields=status,message,lat,lon")
	v.SetDefault("geolocation.latitude", 0.0)
	v.SetDefault("geolocation.longitude", 0.0)
	v.SetDefault("geolocation.timeout", "15s")
	v.SetDefault("geolocation.maximum_age", "60s")

	v.SetDefault("kafka.broker", "localhost:9092")
	v.SetDefault("kafka.outbox_topic", "companion.outbox")
	v.SetDefault("kafka.inbox_topic", "companion.inbox")
	v.SetDefault("kafka.group_id", "weather-relay")
	v.SetDefault("kafka.device_id", "pebble")
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.max_retries", 3)

	v.SetDefault("relay.single_flight", false)
	v.SetDefault("relay.cycle_timeout", "0s")

	v.SetDefault("scheduler.refresh_interval", "30m")
	v.SetDefault("scheduler.timeout", "30s")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.rate_window", "1s")
	v.SetDefault("api.shutdown_timeout", "10s")

	v.SetDefault("healthcheck.api_timeout", "5s")
	v.SetDefault("healthcheck.kafka_timeout", "5s")
	v.SetDefault("healthcheck.retry_interval", "5s")
	v.SetDefault("healthcheck.max_retries", 3)
}

// Load reads .env (if present), then config.yaml, then environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/weather-relay/")

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for env, key := range envOverrides {
		if value := os.Getenv(env); value != "" {
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Kafka.Broker == "" {
		return fmt.Errorf("kafka broker must not be empty")
	}

	if cfg.Kafka.OutboxTopic == "" {
		return fmt.Errorf("kafka outbox topic must not be empty")
	}

	if cfg.Kafka.InboxTopic == "" {
		return fmt.Errorf("kafka inbox topic must not be empty")
	}

	if cfg.Geolocation.Timeout <= 0 {
		return fmt.Errorf("geolocation timeout must be positive")
	}

	if cfg.Geolocation.MaximumAge < 0 {
		return fmt.Errorf("geolocation maximum age must not be negative")
	}

	switch cfg.Geolocation.Provider {
	case "static":
		if cfg.Geolocation.Latitude < -90 || cfg.Geolocation.Latitude > 90 {
			return fmt.Errorf("geolocation latitude %v out of range", cfg.Geolocation.Latitude)
		}
		if cfg.Geolocation.Longitude < -180 || cfg.Geolocation.Longitude > 180 {
			return fmt.Errorf("geolocation longitude %v out of range", cfg.Geolocation.Longitude)
		}
	case "ipapi":
		if cfg.Geolocation.Endpoint == "" {
			return fmt.Errorf("geolocation endpoint must not be empty for the ipapi provider")
		}
	default:
		return fmt.Errorf("unknown geolocation provider %q", cfg.Geolocation.Provider)
	}

	if cfg.Scheduler.RefreshInterval < 0 {
		return fmt.Errorf("scheduler refresh interval must not be negative")
	}

	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return fmt.Errorf("api port %d out of range", cfg.API.Port)
		}
		if cfg.API.RateLimit <= 0 || cfg.API.RateWindow <= 0 {
			return fmt.Errorf("api rate limit and window must be positive")
		}
	}

	return nil
}
