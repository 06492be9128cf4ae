package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockGeocoder struct {
	forward      map[string]GeocodingResult
	reverse      GeocodingResult
	err          error
	forwardCalls []string
	reverseCalls int
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, query string) (GeocodingResult, error) {
	m.forwardCalls = append(m.forwardCalls, query)
	if m.err != nil {
		return GeocodingResult{}, m.err
	}
	r, ok := m.forward[query]
	if !ok {
		return GeocodingResult{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	return r, nil
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.reverseCalls++
	if m.err != nil {
		return GeocodingResult{}, m.err
	}
	return m.reverse, nil
}

type mockWeather struct {
	code    int
	err     error
	queries []WeatherQuery
}

func (m *mockWeather) WeatherCode(_ context.Context, q WeatherQuery) (int, error) {
	m.queries = append(m.queries, q)
	return m.code, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func normanGeocoder() *mockGeocoder {
	return &mockGeocoder{
		forward: map[string]GeocodingResult{
			"3603 N FLOOD AVE":         {Lat: 35.2540, Lon: -97.4590, DisplayName: "3603 N Flood Ave, Norman, Oklahoma, 73069, United States"},
			"E LINDSEY ST / S BERRY RD": {Lat: 35.2050, Lon: -97.4590, DisplayName: "Lindsey Street, Norman, Oklahoma, United States"},
			"Norman":                   {Lat: 35.2226, Lon: -97.4395, DisplayName: "Norman, Cleveland County, Oklahoma, United States"},
		},
		reverse: GeocodingResult{Lat: 35.0, Lon: -97.0, DisplayName: "Elm Avenue, Norman, Oklahoma"},
	}
}

// --- tests ---

func TestParseLine(t *testing.T) {
	t.Run("full line", func(t *testing.T) {
		parsed, err := ParseLine(testLineTraffic)
		require.NoError(t, err)
		assert.Equal(t, ParsedLine{
			Fields: Fields{
				Time:       "0:01",
				CaseNumber: "2024-00000001",
				Address:    "3603 N FLOOD AVE",
				Nature:     "Traffic Stop",
				AgencyCode: AgencyPolice,
			},
			Date:      "2024-01-01",
			DayOfWeek: 2,
			Hour:      0,
			Minute:    1,
		}, parsed)
	})

	t.Run("special case keeps date from line", func(t *testing.T) {
		parsed, err := ParseLine("1/9/2024 6:42 2024-00004434 W STATE HWY 9 HWY I35 NB ON RAMPMotorist Assist OK0140200")
		require.NoError(t, err)
		assert.Equal(t, "W STATE HWY 9 HWY I35 NB ON RAMP 108A", parsed.Address)
		assert.Equal(t, "2024-01-09", parsed.Date)
		assert.Equal(t, 3, parsed.DayOfWeek)
		assert.Equal(t, 6, parsed.Hour)
		assert.Equal(t, 42, parsed.Minute)
	})

	rejects := []struct {
		name  string
		line  string
		err   error
		stage Stage
	}{
		{"blank", "  ", ErrBlankLine, StageStart},
		{"header", "Date / Time Incident Number Location Nature Incident ORI", ErrNoTime, StageStart},
		{"hour out of range", "1/1/2024 24:01 2024-00000001 3603 N FLOOD AVE Traffic Stop OK0140200", ErrNoTime, StageStart},
		{"no case number", "1/1/2024 0:01 3603 N FLOOD AVE Traffic Stop OK0140200", ErrNoCaseNumber, StageTimeFound},
		{"no address", "1/1/2024 0:01 2024-00000001 somewhere Traffic Stop OK0140200", ErrNoAddress, StageNumberFound},
		{"no agency", "1/1/2024 0:01 2024-00000001 3603 N FLOOD AVE Traffic Stop", ErrNoAgency, StageAddressFound},
		{"bad date", "1/32/2024 0:01 2024-00000001 3603 N FLOOD AVE Traffic Stop OK0140200", ErrBadDate, StageNatureAgencyFound},
		{"footer", "Daily Incident Summary (Public) Page 1 of 3", ErrNoTime, StageStart},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			var rejected *RejectedError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, tt.stage, rejected.Stage)
		})
	}
}

func TestAssembleIncident(t *testing.T) {
	fixed := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	t.Run("enriched", func(t *testing.T) {
		geo := normanGeocoder()
		weather := &mockWeather{code: 61}

		inc, err := AssembleIncident(context.Background(), testLineTraffic, geo, weather, discardLogger())
		require.NoError(t, err)

		assert.Equal(t, "3603 N FLOOD AVE", inc.Address)
		assert.Equal(t, Geo{Lat: 35.2540, Lon: -97.4590}, inc.Geo)
		assert.Equal(t, "Norman", inc.Town)
		assert.Equal(t, QuadrantNW, inc.Quadrant)
		assert.Equal(t, 61, inc.WeatherCode)
		assert.Equal(t, fixed, inc.ProcessedAt)
		assert.Equal(t, []string{"3603 N FLOOD AVE", "Norman"}, geo.forwardCalls)
		require.Len(t, weather.queries, 1)
		assert.Equal(t, WeatherQuery{Lat: 35.2540, Lon: -97.4590, Date: "2024-01-01", Hour: 0}, weather.queries[0])
	})

	t.Run("weather failure defaults to zero", func(t *testing.T) {
		weather := &mockWeather{code: 3, err: errors.New("upstream down")}
		inc, err := AssembleIncident(context.Background(), testLineTraffic, normanGeocoder(), weather, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 0, inc.WeatherCode)
	})

	t.Run("nil weather lookup", func(t *testing.T) {
		inc, err := AssembleIncident(context.Background(), testLineTraffic, normanGeocoder(), nil, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 0, inc.WeatherCode)
	})

	t.Run("coordinates reverse geocode", func(t *testing.T) {
		geo := normanGeocoder()
		inc, err := AssembleIncident(context.Background(), testLineCoords, geo, nil, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, geo.reverseCalls)
		assert.Equal(t, Geo{Lat: 35.2206, Lon: -97.4395}, inc.Geo)
		assert.Equal(t, "Norman", inc.Town)
		assert.Equal(t, QuadrantSW, inc.Quadrant)
	})

	t.Run("geocode miss drops line", func(t *testing.T) {
		_, err := AssembleIncident(context.Background(), testLineUnknown, normanGeocoder(), nil, discardLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "geocode_miss", RejectReason(err))
	})

	t.Run("geocoder error drops line", func(t *testing.T) {
		geo := &mockGeocoder{err: errors.New("connection refused")}
		_, err := AssembleIncident(context.Background(), testLineTraffic, geo, nil, discardLogger())
		require.Error(t, err)
		assert.Equal(t, "geocode_error", RejectReason(err))

		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, StageDayFound, rejected.Stage)
	})

	t.Run("parse failure skips geocoding", func(t *testing.T) {
		geo := normanGeocoder()
		_, err := AssembleIncident(context.Background(), "not an incident", geo, nil, discardLogger())
		require.Error(t, err)
		assert.Empty(t, geo.forwardCalls)
	})
}

func TestRejectReason(t *testing.T) {
	assert.Empty(t, RejectReason(nil))
	assert.Equal(t, "blank", RejectReason(&RejectedError{Err: ErrBlankLine}))
	assert.Equal(t, "no_address", RejectReason(&RejectedError{Stage: StageNumberFound, Err: ErrNoAddress}))
	assert.Equal(t, "bad_date", RejectReason(fmt.Errorf("wrap: %w", ErrBadDate)))
	assert.Equal(t, "geocode_miss", RejectReason(ErrNoTown))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "address_found", StageAddressFound.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
