package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
)

// Client implements domain.Geocoder using the Nominatim search and reverse APIs.
// Requests are paced by a shared limiter to respect the public usage policy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client allowing at most perSecond requests per second.
func NewClient(baseURL, userAgent string, timeout time.Duration, perSecond float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// ForwardGeocode searches for a free-text address or place name.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	var places []place
	if err := c.get(ctx, "forward", c.baseURL+"/search?"+params.Encode(), &places); err != nil {
		return domain.GeocodingResult{}, err
	}
	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("forward", "empty").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("%w: %q", domain.ErrNotFound, query)
	}
	return c.toResult("forward", places[0])
}

// ReverseGeocode looks up the place at the given coordinates.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
		"format": {"jsonv2"},
	}

	var p place
	if err := c.get(ctx, "reverse", c.baseURL+"/reverse?"+params.Encode(), &p); err != nil {
		return domain.GeocodingResult{}, err
	}
	if p.Error != "" || p.DisplayName == "" {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("%w: %.6f,%.6f", domain.ErrNotFound, lat, lon)
	}
	return c.toResult("reverse", p)
}

func (c *Client) get(ctx context.Context, method, fullURL string, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s geocode rate limit: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) toResult(method string, p place) (domain.GeocodingResult, error) {
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lon, errLon := strconv.ParseFloat(p.Lon, 64)
	if err := errors.Join(errLat, errLon); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("parse coordinates %q,%q: %w", p.Lat, p.Lon, err)
	}

	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	c.logger.Debug("geocoded", "method", method, "display_name", p.DisplayName)
	return domain.GeocodingResult{Lat: lat, Lon: lon, DisplayName: p.DisplayName}, nil
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}
