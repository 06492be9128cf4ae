package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
)

// DocumentSource returns the per-page text of a document.
type DocumentSource interface {
	Pages(ctx context.Context, location string) ([]string, error)
}

// BatchLoader writes one document's augmented incidents to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, incidents []domain.Incident) error
}

// Pipeline orchestrates fetch, line assembly, augmentation and loading, one
// document at a time.
type Pipeline struct {
	source    DocumentSource
	processor *PageBatchProcessor
	loaders   []BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	last      atomic.Pointer[domain.Report]
}

// New creates a Pipeline. Every loader receives every document's incidents,
// in the given order.
func New(source DocumentSource, t LineTransformer, loaders []BatchLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		processor: NewPageBatchProcessor(t, metrics, logger),
		loaders:   loaders,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one document has been processed,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any documents yet")
	}
	return nil
}

// LastReport returns the report of the most recent successful document.
func (p *Pipeline) LastReport() (domain.Report, bool) {
	r := p.last.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// ProcessDocument runs one document end to end: pages are parsed into
// incidents, the complete list is augmented with ranks and EMS flags, and the
// result is handed to every loader.
func (p *Pipeline) ProcessDocument(ctx context.Context, location string) (domain.Report, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	report := domain.Report{RunID: uuid.NewString(), Source: location}
	logger := p.logger.With("run_id", report.RunID, "source", location)

	pages, err := p.source.Pages(ctx, location)
	if err != nil {
		p.metrics.DocumentsProcessed.WithLabelValues("error").Inc()
		return report, fmt.Errorf("load document: %w", err)
	}
	report.Pages = len(pages)

	res, err := p.processor.Process(ctx, pages)
	if err != nil {
		p.metrics.DocumentsProcessed.WithLabelValues("error").Inc()
		return report, fmt.Errorf("process pages: %w", err)
	}
	report.Lines = res.Lines
	report.Dropped = res.Dropped

	for i := range res.Incidents {
		res.Incidents[i].RunID = report.RunID
	}
	domain.Augment(res.Incidents)
	report.Incidents = res.Incidents

	for _, l := range p.loaders {
		if err := l.LoadBatch(ctx, report.Incidents); err != nil {
			p.metrics.DocumentsProcessed.WithLabelValues("error").Inc()
			return report, fmt.Errorf("load incidents: %w", err)
		}
	}

	p.metrics.IncidentsEmitted.Add(float64(len(report.Incidents)))
	p.metrics.IncidentsPerDocument.Observe(float64(len(report.Incidents)))
	p.metrics.DocumentDuration.Observe(time.Since(start).Seconds())
	p.metrics.DocumentsProcessed.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.last.Store(&report)

	logger.Info("document processed",
		"pages", report.Pages,
		"lines", report.Lines,
		"incidents", len(report.Incidents),
		"dropped", report.Dropped,
		"duration", time.Since(start),
	)
	return report, nil
}

// ProcessURLFile processes every location listed in the file at path, in
// order. Each record's first comma-separated field is the location; blank
// records are skipped. A failing document is logged and skipped.
func (p *Pipeline) ProcessURLFile(ctx context.Context, path string) error {
	locations, err := ReadLocations(path)
	if err != nil {
		return err
	}

	p.logger.Info("processing documents", "count", len(locations), "file", path)
	failed := 0
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.ProcessDocument(ctx, loc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			p.logger.Error("document failed, skipping", "source", loc, "error", err)
		}
	}
	p.logger.Info("all documents processed", "count", len(locations), "failed", failed)
	return nil
}

// ReadLocations reads the first field of every non-blank CSV record in path.
func ReadLocations(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var locations []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read url file: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		if loc := strings.TrimSpace(rec[0]); loc != "" {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}
