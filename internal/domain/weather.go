package domain

import (
	"context"
	"log/slog"
)

// WeatherQuery identifies one hour of historical weather at a point.
type WeatherQuery struct {
	Lat  float64
	Lon  float64
	Date string // YYYY-MM-DD
	Hour int
}

// WeatherLookup returns the WMO weather code for a query.
type WeatherLookup interface {
	WeatherCode(ctx context.Context, q WeatherQuery) (int, error)
}

// LookupWeatherCode returns the weather code for q, or 0 when lookup is nil
// or fails for any reason.
func LookupWeatherCode(ctx context.Context, lookup WeatherLookup, q WeatherQuery, logger *slog.Logger) int {
	if lookup == nil {
		return 0
	}
	code, err := lookup.WeatherCode(ctx, q)
	if err != nil {
		logger.Debug("weather lookup failed",
			"lat", q.Lat,
			"lon", q.Lon,
			"date", q.Date,
			"hour", q.Hour,
			"error", err,
		)
		return 0
	}
	return code
}
