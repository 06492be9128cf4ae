package domain

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exactCoordinateRe = regexp.MustCompile(`^([-+]?\d*\.?\d+);([-+]?\d*\.?\d+)$`)

// Locate geocodes address, derives its town from the display name, geocodes
// the town center and classifies the address into a quadrant of the town.
func Locate(ctx context.Context, geocoder Geocoder, address string) (Geo, string, Quadrant, error) {
	place, err := resolveAddress(ctx, geocoder, address)
	if err != nil {
		return Geo{}, "", "", fmt.Errorf("geocode address %q: %w", address, err)
	}

	town := TownFromDisplayName(place.DisplayName)
	if town == "" {
		return Geo{}, "", "", fmt.Errorf("%w: %q", ErrNoTown, place.DisplayName)
	}

	center, err := geocoder.ForwardGeocode(ctx, town)
	if err != nil {
		return Geo{}, "", "", fmt.Errorf("geocode town %q: %w", town, err)
	}

	pos := Geo{Lat: place.Lat, Lon: place.Lon}
	return pos, town, ClassifyQuadrant(Geo{Lat: center.Lat, Lon: center.Lon}, pos), nil
}

// resolveAddress reverse geocodes "lat;lon" addresses and forward geocodes
// everything else. Coordinates from the line win over the provider's.
func resolveAddress(ctx context.Context, geocoder Geocoder, address string) (GeocodingResult, error) {
	if lat, lon, ok := ParseCoordinates(address); ok {
		place, err := geocoder.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			return GeocodingResult{}, err
		}
		place.Lat, place.Lon = lat, lon
		return place, nil
	}
	return geocoder.ForwardGeocode(ctx, address)
}

// ParseCoordinates parses a "lat;lon" address.
func ParseCoordinates(s string) (float64, float64, bool) {
	m := exactCoordinateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(m[1], 64)
	lon, errLon := strconv.ParseFloat(m[2], 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// TownFromDisplayName returns the second comma-separated component of a
// geocoder display name, e.g. "3603, North Flood Avenue, Norman, ..." yields
// "North Flood Avenue" and "3603 N FLOOD AVE, Norman, Oklahoma" yields
// "Norman". Returns "" when there is no second component.
func TownFromDisplayName(displayName string) string {
	parts := strings.Split(displayName, ",")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ClassifyQuadrant places pos relative to center. Latitude and longitude are
// compared independently; a value equal to the center counts as South or West.
func ClassifyQuadrant(center, pos Geo) Quadrant {
	north := pos.Lat > center.Lat
	east := pos.Lon > center.Lon
	switch {
	case north && east:
		return QuadrantNE
	case north:
		return QuadrantNW
	case east:
		return QuadrantSE
	default:
		return QuadrantSW
	}
}
