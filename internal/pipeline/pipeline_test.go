package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/incident-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lineFlood   = "1/1/2024 0:01 2024-00000001 3603 N FLOOD AVE Traffic Stop OK0140200"
	lineLindsey = "1/1/2024 0:04 2024-00000002 1400 W LINDSEY ST Sick Person OK0140200"
	lineEMS     = "1/1/2024 0:04 2024-00000003 1400 W LINDSEY ST Sick Person EMSSTAT"
	lineUnknown = "1/1/2024 1:15 2024-00000005 <UNKNOWN> 911 Call Nature Unknown OK0140200"
)

func newPipeline(src pipeline.DocumentSource, loaders ...pipeline.BatchLoader) (*pipeline.Pipeline, *fakeGeocoder) {
	geo := newFakeGeocoder()
	tfm := pipeline.NewTransformer(geo, nil, discardLogger())
	return pipeline.New(src, tfm, loaders, discardLogger(), newTestMetrics()), geo
}

func TestProcessDocument_HappyPath(t *testing.T) {
	src := &pageSource{pages: map[string][]string{
		"doc.pdf": {"Header\n" + lineFlood + "\n" + lineLindsey, lineEMS + "\n" + lineUnknown},
	}}
	loader := &recordingLoader{}
	p, _ := newPipeline(src, loader)

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before the first document")
	_, ok := p.LastReport()
	assert.False(t, ok)

	report, err := p.ProcessDocument(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "doc.pdf", report.Source)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 5, report.Lines)
	assert.Equal(t, map[string]int{"no_time": 1, "geocode_miss": 1}, report.Dropped)

	require.Len(t, report.Incidents, 3)
	for _, inc := range report.Incidents {
		assert.Equal(t, report.RunID, inc.RunID)
	}
	assert.Equal(t, "2024-00000001", report.Incidents[0].CaseNumber)
	assert.True(t, report.Incidents[1].EMSFollowup)
	assert.True(t, report.Incidents[2].EMSFollowup)
	assert.False(t, report.Incidents[0].EMSFollowup)

	require.Len(t, loader.batches, 1)
	assert.Equal(t, report.Incidents, loader.batches[0])

	require.NoError(t, p.CheckReadiness(context.Background()))
	last, ok := p.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestProcessDocument_RunIDsDiffer(t *testing.T) {
	src := &pageSource{pages: map[string][]string{"doc": {lineFlood}}}
	p, _ := newPipeline(src)

	a, err := p.ProcessDocument(context.Background(), "doc")
	require.NoError(t, err)
	b, err := p.ProcessDocument(context.Background(), "doc")
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestProcessDocument_SourceError(t *testing.T) {
	src := &pageSource{err: errors.New("connection reset")}
	loader := &recordingLoader{}
	geo := newFakeGeocoder()
	metrics := newTestMetrics()
	p := pipeline.New(src, pipeline.NewTransformer(geo, nil, discardLogger()), []pipeline.BatchLoader{loader}, discardLogger(), metrics)

	_, err := p.ProcessDocument(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load document")
	assert.Empty(t, loader.batches)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DocumentsProcessed.WithLabelValues("error")), 0)
}

func TestProcessDocument_LoaderError(t *testing.T) {
	src := &pageSource{pages: map[string][]string{"doc": {lineFlood}}}
	p, _ := newPipeline(src, &recordingLoader{err: errors.New("disk full")})

	_, err := p.ProcessDocument(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load incidents")
	_, ok := p.LastReport()
	assert.False(t, ok)
}

func TestProcessDocument_EmptyDocumentStillReports(t *testing.T) {
	src := &pageSource{pages: map[string][]string{"doc": {"Daily Incident Summary (Public)"}}}
	loader := &recordingLoader{}
	p, _ := newPipeline(src, loader)

	report, err := p.ProcessDocument(context.Background(), "doc")
	require.NoError(t, err)
	assert.Empty(t, report.Incidents)
	require.Len(t, loader.batches, 1)
	assert.Empty(t, loader.batches[0])
}

func TestProcessDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &pageSource{pages: map[string][]string{"doc": {lineFlood}}}
	p, _ := newPipeline(src)

	_, err := p.ProcessDocument(ctx, "doc")
	assert.ErrorIs(t, err, context.Canceled)
}

func writeURLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProcessURLFile_SkipsFailingDocuments(t *testing.T) {
	src := &pageSource{pages: map[string][]string{
		"a.pdf": {lineFlood},
		"c.pdf": {lineLindsey},
	}}
	loader := &recordingLoader{}
	p, _ := newPipeline(src, loader)

	path := writeURLFile(t, "a.pdf\nb.pdf\n\nc.pdf,ignored\n")
	require.NoError(t, p.ProcessURLFile(context.Background(), path))

	require.Len(t, loader.batches, 2)
	assert.Equal(t, "2024-00000001", loader.batches[0][0].CaseNumber)
	assert.Equal(t, "2024-00000002", loader.batches[1][0].CaseNumber)
}

func TestProcessURLFile_MissingFile(t *testing.T) {
	p, _ := newPipeline(&pageSource{})
	err := p.ProcessURLFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open url file")
}

func TestProcessURLFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newPipeline(&pageSource{})
	err := p.ProcessURLFile(ctx, writeURLFile(t, "a.pdf\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadLocations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "one per line", content: "https://x/a.pdf\nhttps://x/b.pdf\n", want: []string{"https://x/a.pdf", "https://x/b.pdf"}},
		{name: "first column only", content: "a.pdf,2024-03-01\nb.pdf, note\n", want: []string{"a.pdf", "b.pdf"}},
		{name: "blank records skipped", content: "\n  \na.pdf\n\n", want: []string{"a.pdf"}},
		{name: "no trailing newline", content: "a.pdf", want: []string{"a.pdf"}},
		{name: "empty file", content: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pipeline.ReadLocations(writeURLFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
