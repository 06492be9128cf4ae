package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// timeRe matches the first H:MM or HH:MM token, e.g. "0:01" or "23:59".
	timeRe = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)

	// caseNumberRe matches a YYYY-NNNNNNNN incident number followed by whitespace.
	caseNumberRe = regexp.MustCompile(`(\d{4}-\d{8})\s`)

	// specialTokenRe matches bracketed placeholders such as <UNKNOWN>.
	specialTokenRe = regexp.MustCompile(`<[^>]+>`)

	// coordinateRe matches a "lat;lon" pair, e.g. "35.2206;-97.4395".
	coordinateRe = regexp.MustCompile(`[-+]?\d*\.?\d+;[-+]?\d*\.?\d+`)

	// trailingWordRe requires the line to end in a word character.
	trailingWordRe = regexp.MustCompile(`\w+$`)

	suffixRe = buildSuffixRe(addressSuffixes)
)

func buildSuffixRe(suffixes []string) *regexp.Regexp {
	quoted := make([]string, len(suffixes))
	for i, s := range suffixes {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// ExtractTime returns the first H:MM or HH:MM token in line.
func ExtractTime(line string) (string, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractCaseNumber returns the first incident number in line and the byte
// offset just past it, where the address scan starts.
func ExtractCaseNumber(line string) (string, int, bool) {
	loc := caseNumberRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return "", 0, false
	}
	return line[loc[2]:loc[3]], loc[3], true
}

// ExtractAddress locates the address that starts at offset start and returns
// it with the offset where it ends. The nature text begins at that offset.
//
// In order of preference the address is:
//  1. a bracketed token (<UNKNOWN>) that is the first thing after start;
//  2. everything up to the upper-case suffix match ending furthest from start,
//     ignoring matches inside a bracketed token;
//  3. a lat;lon coordinate pair anywhere after start;
//  4. a bracketed token anywhere after start.
//
// Rule 2 is a heuristic: among matches ending at the same offset the first
// found wins, and an upper-case nature word that happens to be a suffix will
// pull the boundary too far.
func ExtractAddress(line string, start int) (string, int, bool) {
	if start < 0 || start > len(line) {
		return "", 0, false
	}
	rest := line[start:]

	if loc := specialTokenRe.FindStringIndex(rest); loc != nil && strings.TrimSpace(rest[:loc[0]]) == "" {
		return rest[loc[0]:loc[1]], start + loc[1], true
	}

	if end := furthestSuffixEnd(rest); end > 0 {
		return strings.TrimSpace(rest[:end]), start + end, true
	}

	if loc := coordinateRe.FindStringIndex(rest); loc != nil {
		return rest[loc[0]:loc[1]], start + loc[1], true
	}

	if loc := specialTokenRe.FindStringIndex(rest); loc != nil {
		return rest[loc[0]:loc[1]], start + loc[1], true
	}

	return "", 0, false
}

// furthestSuffixEnd returns the end offset of the upper-case suffix match that
// ends furthest into s, or 0 when there is none. Matches overlapping a
// bracketed token such as <UNKNOWN> do not count.
func furthestSuffixEnd(s string) int {
	brackets := specialTokenRe.FindAllStringIndex(s, -1)
	best := 0
	for _, loc := range suffixRe.FindAllStringIndex(s, -1) {
		if !isUpper(s[loc[0]:loc[1]]) || insideAny(loc, brackets) {
			continue
		}
		if loc[1] > best {
			best = loc[1]
		}
	}
	return best
}

func insideAny(loc []int, spans [][]int) bool {
	for _, sp := range spans {
		if loc[0] < sp[1] && loc[1] > sp[0] {
			return true
		}
	}
	return false
}

// isUpper reports whether s has at least one cased letter and no lower-case
// letters, so "RD/156" and "AVE" qualify but "Ave" and "156" do not.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// ExtractNatureAndAgency finds the agency code after offset start and returns
// the trimmed text between start and the code as the nature.
func ExtractNatureAndAgency(line string, start int) (nature, agency string, ok bool) {
	if start < 0 || start > len(line) || !trailingWordRe.MatchString(line) {
		return "", "", false
	}
	rest := line[start:]
	for _, code := range AgencyCodes {
		if i := strings.Index(rest, code); i >= 0 {
			return strings.TrimSpace(rest[:i]), code, true
		}
	}
	return "", "", false
}

// ExtractDay parses the leading M/D/YYYY token and returns the day of week
// (see [DayOfWeek]) and the date as YYYY-MM-DD.
func ExtractDay(line string) (int, string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, "", ErrBadDate
	}
	date, err := time.Parse("1/2/2006", fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrBadDate, fields[0])
	}
	return DayOfWeek(date), date.Format(time.DateOnly), nil
}

// DayOfWeek maps a date to 1..7 with Sunday=1, Monday=2, ..., Saturday=7.
func DayOfWeek(t time.Time) int {
	mondayZero := (int(t.Weekday()) + 6) % 7
	return (mondayZero+1)%7 + 1
}

// parseClock splits an H:MM token into hour and minute.
func parseClock(s string) (int, int, bool) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	hour, errH := strconv.Atoi(h)
	minute, errM := strconv.Atoi(m)
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
