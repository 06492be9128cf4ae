// Command validate checks an incident TSV stream for structural and domain
// validity: column count, value ranges, the quadrant and agency code sets,
// and flag consistency.
//
// Usage:
//
//	incident-etl --urls urls.csv | go run ./cmd/validate
//	go run ./cmd/validate -in incidents.tsv
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/incident-etl/internal/adapter/tsv"
	"github.com/couchcryptid/incident-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// row is one TSV line split into its columns.
type row struct {
	lineNum int
	fields  []string
}

func main() {
	in := flag.String("in", "", "TSV file to validate (default: stdin)")
	flag.Parse()

	var r io.Reader = os.Stdin
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	if code := run(r, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(r io.Reader, out io.Writer) int {
	rows, err := readRows(r)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read rows: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== Incident TSV Validation ===")
	fmt.Fprintln(out)

	shape := validateShape(rows)
	// Domain checks only make sense on rows with the right column count.
	wellFormed := make([]row, 0, len(rows))
	for _, rw := range rows {
		if len(rw.fields) == len(tsv.Columns) {
			wellFormed = append(wellFormed, rw)
		}
	}
	phases := []*phase{
		shape,
		validateDomains(wellFormed),
		validateEMSFlags(wellFormed),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nRows: %d\n", len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func readRows(r io.Reader) ([]row, error) {
	var rows []row
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		rows = append(rows, row{lineNum: n, fields: strings.Split(line, "\t")})
	}
	return rows, sc.Err()
}

// ── Phase 1: shape ──

func validateShape(rows []row) *phase {
	p := &phase{name: "Column count"}
	for _, rw := range rows {
		if len(rw.fields) != len(tsv.Columns) {
			p.errorf("line %d: %d columns, want %d", rw.lineNum, len(rw.fields), len(tsv.Columns))
		}
	}
	return p
}

// ── Phase 2: per-field domains ──

var quadrants = []string{
	string(domain.QuadrantNE), string(domain.QuadrantNW),
	string(domain.QuadrantSE), string(domain.QuadrantSW),
}

func validateDomains(rows []row) *phase {
	p := &phase{name: "Field domains"}
	for _, rw := range rows {
		f := rw.fields
		checkInt(p, rw.lineNum, "dayOfWeek", f[0], 1, 7)
		checkInt(p, rw.lineNum, "hour", f[1], 0, 23)
		checkInt(p, rw.lineNum, "locationRank", f[3], 1, domain.DefaultRank)
		if !slices.Contains(quadrants, f[4]) {
			p.errorf("line %d: quadrant %q not one of %v", rw.lineNum, f[4], quadrants)
		}
		checkInt(p, rw.lineNum, "natureRank", f[5], 1, domain.DefaultRank)
		if !slices.Contains(domain.AgencyCodes, f[6]) {
			p.errorf("line %d: agency code %q not one of %v", rw.lineNum, f[6], domain.AgencyCodes)
		}
		if f[7] != "True" && f[7] != "False" {
			p.errorf("line %d: emsFlag %q must be True or False", rw.lineNum, f[7])
		}
	}
	return p
}

func checkInt(p *phase, lineNum int, name, value string, lo, hi int) {
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errorf("line %d: %s %q is not an integer", lineNum, name, value)
		return
	}
	if n < lo || n > hi {
		p.errorf("line %d: %s %d outside [%d, %d]", lineNum, name, n, lo, hi)
	}
}

// ── Phase 3: cross-field consistency ──

func validateEMSFlags(rows []row) *phase {
	p := &phase{name: "EMS flag consistency"}
	for _, rw := range rows {
		if rw.fields[6] == domain.AgencyEMS && rw.fields[7] != "True" {
			p.errorf("line %d: EMSSTAT row must carry emsFlag True", rw.lineNum)
		}
	}
	return p
}
