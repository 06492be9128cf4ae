package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// Geocoder resolves free-text places and coordinates. Implementations return
// an error wrapping ErrNotFound when the provider has no match.
type Geocoder interface {
	// ForwardGeocode converts a free-text address or place name to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
