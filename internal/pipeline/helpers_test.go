package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
)

// --- mocks ---

// fakeGeocoder resolves a fixed set of Norman addresses.
type fakeGeocoder struct {
	mu      sync.Mutex
	calls   int
	forward map[string]domain.GeocodingResult
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{forward: map[string]domain.GeocodingResult{
		"Norman":                    {Lat: 35.2226, Lon: -97.4395, DisplayName: "Norman, Cleveland County, Oklahoma, United States"},
		"3603 N FLOOD AVE":          {Lat: 35.2540, Lon: -97.4590, DisplayName: "3603 N Flood Ave, Norman, Oklahoma"},
		"1400 W LINDSEY ST":         {Lat: 35.2050, Lon: -97.4600, DisplayName: "1400 W Lindsey St, Norman, Oklahoma"},
		"E LINDSEY ST / S BERRY RD": {Lat: 35.2050, Lon: -97.4200, DisplayName: "Lindsey Street, Norman, Oklahoma"},
	}}
}

func (g *fakeGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeocodingResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	r, ok := g.forward[query]
	if !ok {
		return domain.GeocodingResult{}, fmt.Errorf("%w: %q", domain.ErrNotFound, query)
	}
	return r, nil
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	return domain.GeocodingResult{Lat: lat, Lon: lon, DisplayName: "East Main Street, Norman, Oklahoma"}, nil
}

type pageSource struct {
	pages map[string][]string
	err   error
}

func (s *pageSource) Pages(_ context.Context, location string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.pages[location]
	if !ok {
		return nil, fmt.Errorf("no such document: %s", location)
	}
	return p, nil
}

type recordingLoader struct {
	batches [][]domain.Incident
	err     error
}

func (l *recordingLoader) LoadBatch(_ context.Context, incidents []domain.Incident) error {
	if l.err != nil {
		return l.err
	}
	l.batches = append(l.batches, incidents)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}
