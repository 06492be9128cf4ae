package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQuadrant(t *testing.T) {
	center := Geo{Lat: 35.24, Lon: -97.48}
	tests := []struct {
		name string
		pos  Geo
		want Quadrant
	}{
		{"north west", Geo{Lat: 36.24, Lon: -98.0}, QuadrantNW},
		{"north east", Geo{Lat: 36.24, Lon: -97.0}, QuadrantNE},
		{"south east", Geo{Lat: 35.0, Lon: -97.0}, QuadrantSE},
		{"south west", Geo{Lat: 35.0, Lon: -98.0}, QuadrantSW},
		{"ties fall south west", center, QuadrantSW},
		{"latitude tie", Geo{Lat: 35.24, Lon: -97.0}, QuadrantSE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuadrant(center, tt.pos))
		})
	}
}

func TestTownFromDisplayName(t *testing.T) {
	assert.Equal(t, "Norman", TownFromDisplayName("1400 W Lindsey St, Norman, Oklahoma, United States"))
	assert.Equal(t, "North Flood Avenue", TownFromDisplayName("3603, North Flood Avenue, Norman, Oklahoma"))
	assert.Empty(t, TownFromDisplayName("Norman"))
	assert.Empty(t, TownFromDisplayName(""))
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, ok := ParseCoordinates("35.2206;-97.4395")
	require.True(t, ok)
	assert.InDelta(t, 35.2206, lat, 1e-9)
	assert.InDelta(t, -97.4395, lon, 1e-9)

	_, _, ok = ParseCoordinates("3603 N FLOOD AVE")
	assert.False(t, ok)

	_, _, ok = ParseCoordinates("35.2;-97.4 extra")
	assert.False(t, ok)
}

func TestLocate(t *testing.T) {
	t.Run("no town in display name", func(t *testing.T) {
		geo := &mockGeocoder{forward: map[string]GeocodingResult{
			"PLAZA": {Lat: 35.2, Lon: -97.4, DisplayName: "Somewhere"},
		}}
		_, _, _, err := Locate(context.Background(), geo, "PLAZA")
		assert.ErrorIs(t, err, ErrNoTown)
	})

	t.Run("town center not found", func(t *testing.T) {
		geo := &mockGeocoder{forward: map[string]GeocodingResult{
			"PLAZA": {Lat: 35.2, Lon: -97.4, DisplayName: "Plaza, Nowhere"},
		}}
		_, _, _, err := Locate(context.Background(), geo, "PLAZA")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, []string{"PLAZA", "Nowhere"}, geo.forwardCalls)
	})
}
