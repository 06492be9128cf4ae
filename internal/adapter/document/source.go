// Package document fetches incident summary documents and extracts their
// per-page text.
package document

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
)

// maxDocumentSize bounds a single download.
const maxDocumentSize = 64 << 20

var pdfMagic = []byte("%PDF-")

// ErrEmptyDocument is returned when a document has no extractable text.
var ErrEmptyDocument = errors.New("document has no text")

// Source loads documents from http(s) URLs or local paths. PDFs are split into
// one text per page with one line per rendered row; anything else is treated
// as plain text with form feeds separating pages.
type Source struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSource creates a Source whose downloads time out after timeout.
func NewSource(timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Pages returns the text of each page of the document at location, in order.
func (s *Source) Pages(ctx context.Context, location string) ([]string, error) {
	data, err := s.read(ctx, location)
	if err != nil {
		return nil, err
	}

	var pages []string
	if bytes.HasPrefix(data, pdfMagic) {
		pages, err = pdfPages(data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text from %s: %w", location, err)
		}
	} else {
		pages = strings.Split(string(data), "\f")
	}

	if strings.TrimSpace(strings.Join(pages, "")) == "" {
		return nil, fmt.Errorf("%s: %w", location, ErrEmptyDocument)
	}

	s.logger.Debug("document loaded", "location", location, "bytes", len(data), "pages", len(pages))
	return pages, nil
}

func (s *Source) read(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document %s: status %d", location, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("fetch document %s: larger than %d bytes", location, maxDocumentSize)
	}
	return data, nil
}

func pdfPages(data []byte) (pages []string, err error) {
	// The pdf library panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	pages = make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, glyphsToText(page.Content().Text))
	}
	return pages, nil
}

// textRow collects the segments drawn on one baseline.
type textRow struct {
	y        float64
	segments []*textSegment
}

// textSegment is a run of glyphs drawn edge to edge.
type textSegment struct {
	x   float64
	end float64
	b   strings.Builder
}

// glyphsToText renders positioned glyphs as one line per baseline, top to
// bottom. Consecutive glyphs whose gap is under a fifth of the font size
// belong to the same segment, so kerned pieces of one word stay joined;
// segments are ordered left to right and separated by a single space.
func glyphsToText(glyphs []pdflib.Text) string {
	rows := make(map[int64]*textRow)
	var order []*textRow

	for _, g := range glyphs {
		if strings.ContainsAny(g.S, "\r\n") || g.S == "" {
			continue
		}
		key := int64(math.Round(g.Y))
		row, ok := rows[key]
		if !ok {
			row = &textRow{y: g.Y}
			rows[key] = row
			order = append(order, row)
		}

		tolerance := g.FontSize * 0.2
		if tolerance <= 0 {
			tolerance = 2
		}
		if n := len(row.segments); n > 0 {
			seg := row.segments[n-1]
			if math.Abs(g.X-seg.end) <= tolerance {
				seg.b.WriteString(g.S)
				seg.end = g.X + g.W
				continue
			}
		}
		seg := &textSegment{x: g.X, end: g.X + g.W}
		seg.b.WriteString(g.S)
		row.segments = append(row.segments, seg)
	}

	slices.SortStableFunc(order, func(a, b *textRow) int { return cmp.Compare(b.y, a.y) })

	lines := make([]string, 0, len(order))
	for _, row := range order {
		slices.SortStableFunc(row.segments, func(a, b *textSegment) int { return cmp.Compare(a.x, b.x) })
		parts := make([]string, 0, len(row.segments))
		for _, seg := range row.segments {
			parts = append(parts, seg.b.String())
		}
		lines = append(lines, strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
	}
	return strings.Join(lines, "\n")
}
