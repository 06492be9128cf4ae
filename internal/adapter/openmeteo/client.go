package openmeteo

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
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
)

const hourlyVariables = "temperature_2m,precipitation,weather_code"

var errNoHourMatch = errors.New("no unique hourly row for requested hour")

// Client implements domain.WeatherLookup against the Open-Meteo historical
// archive API. Successful lookups are memoized for the life of the process.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	memo        *gocache.Cache
	maxAttempts int
	backoff     time.Duration
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates an Open-Meteo archive client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		memo:        gocache.New(gocache.NoExpiration, 0),
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
		metrics:     metrics,
		logger:      logger,
	}
}

// WeatherCode returns the WMO weather code at q's coordinates for the hour of
// q's date, in GMT.
func (c *Client) WeatherCode(ctx context.Context, q domain.WeatherQuery) (int, error) {
	key := memoKey(q)
	if v, ok := c.memo.Get(key); ok {
		c.metrics.WeatherLookups.WithLabelValues("cached").Inc()
		return v.(int), nil
	}

	resp, err := c.fetchWithRetry(ctx, q)
	if err != nil {
		c.metrics.WeatherLookups.WithLabelValues("error").Inc()
		return 0, err
	}

	code, err := resp.codeAtHour(q.Hour)
	if err != nil {
		c.metrics.WeatherLookups.WithLabelValues("miss").Inc()
		return 0, fmt.Errorf("weather %s hour %d: %w", q.Date, q.Hour, err)
	}

	c.metrics.WeatherLookups.WithLabelValues("success").Inc()
	c.memo.Set(key, code, gocache.NoExpiration)
	return code, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, q domain.WeatherQuery) (*archiveResponse, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.fetch(ctx, q)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}
		c.logger.Debug("weather request failed, retrying", "attempt", attempt, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, 5*time.Second)
	}
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, q domain.WeatherQuery) (*archiveResponse, error) {
	start := time.Now()
	defer func() { c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds()) }()

	params := url.Values{
		"latitude":   {strconv.FormatFloat(q.Lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(q.Lon, 'f', -1, 64)},
		"start_date": {q.Date},
		"end_date":   {q.Date},
		"hourly":     {hourlyVariables},
		"timezone":   {"GMT"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var out archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func memoKey(q domain.WeatherQuery) string {
	return fmt.Sprintf("%.6f,%.6f|%s|%d", q.Lat, q.Lon, q.Date, q.Hour)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("open-meteo API error: status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Open-Meteo archive response types.

type archiveResponse struct {
	Hourly struct {
		Time          []string   `json:"time"` // "2006-01-02T15:04" in the requested timezone
		Temperature2m []*float64 `json:"temperature_2m"`
		Precipitation []*float64 `json:"precipitation"`
		WeatherCode   []*float64 `json:"weather_code"`
	} `json:"hourly"`
}

// codeAtHour selects the rows whose hour equals hour and requires exactly one.
func (r *archiveResponse) codeAtHour(hour int) (int, error) {
	match := -1
	for i, ts := range r.Hourly.Time {
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			return 0, fmt.Errorf("parse hourly time %q: %w", ts, err)
		}
		if t.Hour() != hour {
			continue
		}
		if match >= 0 {
			return 0, errNoHourMatch
		}
		match = i
	}
	if match < 0 || match >= len(r.Hourly.WeatherCode) || r.Hourly.WeatherCode[match] == nil {
		return 0, errNoHourMatch
	}
	return int(*r.Hourly.WeatherCode[match]), nil
}
