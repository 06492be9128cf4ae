// Package tsv emits augmented incidents as tab-separated rows.
package tsv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/incident-etl/internal/domain"
)

// Columns is the fixed output column order.
var Columns = []string{
	"dayOfWeek",
	"hour",
	"nature",
	"locationRank",
	"quadrant",
	"natureRank",
	"agencyCode",
	"emsFlag",
}

// Writer writes one row per incident. It implements pipeline.BatchLoader.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriter creates a Writer on out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(out)}
}

// LoadBatch writes the incidents in order and flushes.
func (w *Writer) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range incidents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.w.WriteString(FormatRow(incidents[i]) + "\n"); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

// FormatRow renders an incident without a trailing newline. Tabs and
// newlines inside the nature text are replaced by spaces.
func FormatRow(inc domain.Incident) string {
	fields := []string{
		strconv.Itoa(inc.DayOfWeek),
		strconv.Itoa(inc.Hour),
		sanitize(inc.Nature),
		strconv.Itoa(inc.LocationRank),
		string(inc.Quadrant),
		strconv.Itoa(inc.NatureRank),
		inc.AgencyCode,
		formatFlag(inc.EMSFollowup),
	}
	return strings.Join(fields, "\t")
}

func formatFlag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

var sanitizer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func sanitize(s string) string {
	return sanitizer.Replace(s)
}
