package domain

import (
	"errors"
	"time"
)

// Agency codes (ORIs) that appear in the Incident ORI column.
const (
	AgencyPolice = "OK0140200"
	AgencyEMS    = "EMSSTAT"
	AgencyFire   = "14005"
	AgencyFire2  = "14009"
)

// AgencyCodes lists the known agency codes in match priority order.
var AgencyCodes = []string{AgencyPolice, AgencyEMS, AgencyFire, AgencyFire2}

// DefaultRank is assigned when a key is missing from a rank table.
const DefaultRank = 1000

// Rejection reasons. A line rejected with any of these is dropped silently.
var (
	ErrNoTime       = errors.New("no time token")
	ErrNoCaseNumber = errors.New("no incident number")
	ErrNoAddress    = errors.New("no address")
	ErrNoAgency     = errors.New("no agency code")
	ErrBadDate      = errors.New("unparsable date")
	ErrNoTown       = errors.New("no town in display name")
	ErrNotFound     = errors.New("location not found")
	ErrBlankLine    = errors.New("blank line")
)

// Quadrant is the compass quarter of a town an incident falls in.
type Quadrant string

const (
	QuadrantNE Quadrant = "NE"
	QuadrantNW Quadrant = "NW"
	QuadrantSE Quadrant = "SE"
	QuadrantSW Quadrant = "SW"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Fields are the five primary values recovered from one line.
type Fields struct {
	Time       string `json:"time"`
	CaseNumber string `json:"case_number"`
	Address    string `json:"address"`
	Nature     string `json:"nature"`
	AgencyCode string `json:"agency_code"`
}

// ParsedLine is a line that passed every extractor. It carries no
// network-derived data yet.
type ParsedLine struct {
	Fields
	Date      string `json:"date"` // YYYY-MM-DD
	DayOfWeek int    `json:"day_of_week"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
}

// Incident is a fully assembled incident record.
type Incident struct {
	ParsedLine

	Geo         Geo      `json:"geo"`
	Town        string   `json:"town,omitempty"`
	Quadrant    Quadrant `json:"quadrant"`
	WeatherCode int      `json:"weather_code"`

	// Set by the augmenters once the whole document is known.
	LocationRank int  `json:"location_rank"`
	NatureRank   int  `json:"nature_rank"`
	EMSFollowup  bool `json:"ems_followup"`

	RunID       string    `json:"run_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Report summarizes one processed document.
type Report struct {
	RunID     string         `json:"run_id"`
	Source    string         `json:"source"`
	Pages     int            `json:"pages"`
	Lines     int            `json:"lines"`
	Dropped   map[string]int `json:"dropped"`
	Incidents []Incident     `json:"incidents"`
}
