package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/incident-etl/internal/adapter/document"
	httpadapter "github.com/couchcryptid/incident-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/incident-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/incident-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/incident-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/incident-etl/internal/adapter/tsv"
	"github.com/couchcryptid/incident-etl/internal/config"
	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
	"github.com/couchcryptid/incident-etl/internal/pipeline"
)

// loadConfig reads the environment and applies flag overrides on top.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("http-addr") {
		cfg.HTTPAddr = opts.httpAddr
	}
	if cmd.Flags().Changed("cache-path") {
		cfg.GeocodeCachePath = opts.cachePath
	}
	if opts.noWeather {
		cfg.WeatherEnabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(parent context.Context, cmd *cobra.Command, opts options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Geocoding: Nominatim behind an LRU, optionally backed by sqlite.
	var store nominatim.Store
	if cfg.GeocodeCachePath != "" {
		geoCache, err := sqlite.OpenGeoCache(ctx, cfg.GeocodeCachePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := geoCache.Close(); err != nil {
				logger.Error("geocode cache close error", "error", err)
			}
		}()
		store = geoCache
		entries, err := geoCache.Len(ctx)
		if err != nil {
			return err
		}
		logger.Info("persistent geocode cache enabled", "path", cfg.GeocodeCachePath, "entries", entries)
	}
	client := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, cfg.NominatimRate, metrics, logger)
	geocoder := nominatim.NewCachedGeocoder(client, cfg.GeocodeCacheSize, store, metrics, logger)

	// Weather is optional; without it every weather code is 0.
	var weather domain.WeatherLookup
	if cfg.WeatherEnabled {
		weather = openmeteo.NewClient(cfg.OpenMeteoURL, cfg.OpenMeteoTimeout, metrics, logger)
		metrics.WeatherEnabled.Set(1)
		logger.Info("weather lookups enabled", "url", cfg.OpenMeteoURL)
	} else {
		logger.Info("weather lookups disabled")
	}

	loaders := []pipeline.BatchLoader{tsv.NewWriter(os.Stdout)}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	source := document.NewSource(cfg.FetchTimeout, logger)
	transformer := pipeline.NewTransformer(geocoder, weather, logger)
	p := pipeline.New(source, transformer, loaders, logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer shutdownServer(srv, cfg, logger)
	}

	if err := p.ProcessURLFile(ctx, opts.urls); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted, shutting down")
		}
		return err
	}
	return nil
}

func shutdownServer(srv *httpadapter.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
