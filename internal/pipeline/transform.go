package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/incident-etl/internal/domain"
)

// IncidentTransformer implements LineTransformer using the domain assembler
// with geocoding and optional weather enrichment.
type IncidentTransformer struct {
	geocoder domain.Geocoder
	weather  domain.WeatherLookup
	logger   *slog.Logger
}

// NewTransformer creates an IncidentTransformer. Pass a nil weather lookup to
// leave every weather code at 0.
func NewTransformer(geocoder domain.Geocoder, weather domain.WeatherLookup, logger *slog.Logger) *IncidentTransformer {
	return &IncidentTransformer{
		geocoder: geocoder,
		weather:  weather,
		logger:   logger,
	}
}

func (t *IncidentTransformer) Transform(ctx context.Context, line string) (domain.Incident, error) {
	return domain.AssembleIncident(ctx, line, t.geocoder, t.weather, t.logger)
}
