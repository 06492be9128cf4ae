package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	FetchTimeout    time.Duration

	// Nominatim geocoding configuration.
	NominatimURL       string
	NominatimUserAgent string
	NominatimTimeout   time.Duration
	NominatimRate      float64
	GeocodeCacheSize   int
	GeocodeCachePath   string

	// Open-Meteo weather configuration.
	OpenMeteoURL     string
	OpenMeteoTimeout time.Duration
	WeatherEnabled   bool

	// Optional Kafka sink. Disabled when KafkaBrokers is empty.
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := parsePositiveDuration("NOMINATIM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	openMeteoTimeout, err := parsePositiveDuration("OPENMETEO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	rate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("NOMINATIM_RATE", "1"), 64)
	if err != nil || rate <= 0 {
		return nil, errors.New("invalid NOMINATIM_RATE: must be a positive number of requests per second")
	}

	cacheSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("GEOCODE_CACHE_SIZE", "10000"))
	if err != nil || cacheSize < 1 {
		return nil, errors.New("invalid GEOCODE_CACHE_SIZE: must be a positive integer")
	}

	weatherEnabled := true
	if v := os.Getenv("WEATHER_ENABLED"); v != "" {
		weatherEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WEATHER_ENABLED: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		FetchTimeout:    fetchTimeout,

		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "incident-etl/1.0"),
		NominatimTimeout:   nominatimTimeout,
		NominatimRate:      rate,
		GeocodeCacheSize:   cacheSize,
		GeocodeCachePath:   os.Getenv("GEOCODE_CACHE_PATH"),

		OpenMeteoURL:     sharedcfg.EnvOrDefault("OPENMETEO_URL", "https://archive-api.open-meteo.com/v1/archive"),
		OpenMeteoTimeout: openMeteoTimeout,
		WeatherEnabled:   weatherEnabled,

		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "incidents"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags may have overridden after Load.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.NominatimURL, "http://") && !strings.HasPrefix(c.NominatimURL, "https://") {
		return errors.New("invalid NOMINATIM_URL: must be an http(s) URL")
	}
	if strings.TrimSpace(c.NominatimUserAgent) == "" {
		return errors.New("NOMINATIM_USER_AGENT is required")
	}
	if c.WeatherEnabled && !strings.HasPrefix(c.OpenMeteoURL, "http://") && !strings.HasPrefix(c.OpenMeteoURL, "https://") {
		return errors.New("invalid OPENMETEO_URL: must be an http(s) URL")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether the Kafka sink should be started.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}
