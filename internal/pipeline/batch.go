package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
)

// LineTransformer converts one raw text line into an incident.
type LineTransformer interface {
	Transform(ctx context.Context, line string) (domain.Incident, error)
}

// BatchResult is the outcome of processing every line of one document.
type BatchResult struct {
	Lines     int
	Incidents []domain.Incident
	Dropped   map[string]int // reason -> count
}

// PageBatchProcessor feeds each line of each page, in order, through a
// LineTransformer. Rejected lines are counted and skipped; they never abort
// the batch.
type PageBatchProcessor struct {
	transformer LineTransformer
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewPageBatchProcessor creates a processor around t.
func NewPageBatchProcessor(t LineTransformer, metrics *observability.Metrics, logger *slog.Logger) *PageBatchProcessor {
	return &PageBatchProcessor{transformer: t, metrics: metrics, logger: logger}
}

// Process returns the incidents assembled from pages in document order. It
// only fails when ctx is cancelled.
func (b *PageBatchProcessor) Process(ctx context.Context, pages []string) (BatchResult, error) {
	res := BatchResult{Dropped: make(map[string]int)}

	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			line = strings.TrimSpace(line)
			res.Lines++
			b.metrics.LinesRead.Inc()

			inc, err := b.transformer.Transform(ctx, line)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return res, ctxErr
				}
				reason := domain.RejectReason(err)
				res.Dropped[reason]++
				b.metrics.LinesDropped.WithLabelValues(reason).Inc()
				continue
			}
			res.Incidents = append(res.Incidents, inc)
		}
	}
	return res, nil
}
