package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransformer struct {
	seen []string
	fail map[string]error
}

func (s *stubTransformer) Transform(_ context.Context, line string) (domain.Incident, error) {
	s.seen = append(s.seen, line)
	if err, ok := s.fail[line]; ok {
		return domain.Incident{}, err
	}
	return domain.Incident{ParsedLine: domain.ParsedLine{Fields: domain.Fields{Address: line}}}, nil
}

func TestPageBatchProcessor_KeepsOrderAndCountsDrops(t *testing.T) {
	tfm := &stubTransformer{fail: map[string]error{
		"":       &domain.RejectedError{Err: domain.ErrBlankLine},
		"header": &domain.RejectedError{Err: domain.ErrNoTime},
	}}
	metrics := newTestMetrics()
	proc := pipeline.NewPageBatchProcessor(tfm, metrics, discardLogger())

	res, err := proc.Process(context.Background(), []string{"header\n  a  \n\nb", "c\r"})
	require.NoError(t, err)

	assert.Equal(t, []string{"header", "a", "", "b", "c"}, tfm.seen, "lines are trimmed")
	assert.Equal(t, 5, res.Lines)
	require.Len(t, res.Incidents, 3)
	assert.Equal(t, "a", res.Incidents[0].Address)
	assert.Equal(t, "b", res.Incidents[1].Address)
	assert.Equal(t, "c", res.Incidents[2].Address)
	assert.Equal(t, map[string]int{"blank": 1, "no_time": 1}, res.Dropped)

	assert.InDelta(t, 5, testutil.ToFloat64(metrics.LinesRead), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LinesDropped.WithLabelValues("no_time")), 0)
}

func TestPageBatchProcessor_EmptyPages(t *testing.T) {
	proc := pipeline.NewPageBatchProcessor(&stubTransformer{}, newTestMetrics(), discardLogger())

	res, err := proc.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Lines)
	assert.Empty(t, res.Incidents)
}

func TestPageBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := pipeline.NewPageBatchProcessor(&stubTransformer{}, newTestMetrics(), discardLogger())
	_, err := proc.Process(ctx, []string{"a\nb"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageBatchProcessor_GeocoderErrorIsADrop(t *testing.T) {
	tfm := &stubTransformer{fail: map[string]error{
		"x": &domain.RejectedError{Stage: domain.StageDayFound, Err: errors.New("connection refused")},
	}}
	proc := pipeline.NewPageBatchProcessor(tfm, newTestMetrics(), discardLogger())

	res, err := proc.Process(context.Background(), []string{"x\ny"})
	require.NoError(t, err)
	assert.Len(t, res.Incidents, 1)
	assert.Equal(t, map[string]int{"geocode_error": 1}, res.Dropped)
}
