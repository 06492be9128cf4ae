package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Stage is the last gate an assembly passed.
type Stage int

const (
	StageStart Stage = iota
	StageTimeFound
	StageNumberFound
	StageAddressFound
	StageNatureAgencyFound
	StageDayFound
	StageEnriched
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageTimeFound:
		return "time_found"
	case StageNumberFound:
		return "number_found"
	case StageAddressFound:
		return "address_found"
	case StageNatureAgencyFound:
		return "nature_agency_found"
	case StageDayFound:
		return "day_found"
	case StageEnriched:
		return "enriched"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// RejectedError reports the stage a line reached before it was dropped.
type RejectedError struct {
	Stage Stage
	Err   error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected after %s: %v", e.Stage, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// RejectReason maps a rejection to a short label for metrics and reports.
func RejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBlankLine):
		return "blank"
	case errors.Is(err, ErrNoTime):
		return "no_time"
	case errors.Is(err, ErrNoCaseNumber):
		return "no_case_number"
	case errors.Is(err, ErrNoAddress):
		return "no_address"
	case errors.Is(err, ErrNoAgency):
		return "no_agency"
	case errors.Is(err, ErrBadDate):
		return "bad_date"
	case errors.Is(err, ErrNoTown), errors.Is(err, ErrNotFound):
		return "geocode_miss"
	default:
		return "geocode_error"
	}
}

// assembly carries one line through the extraction steps.
type assembly struct {
	line   string
	cursor int
	stage  Stage
	parsed ParsedLine
}

type step func(a *assembly) error

var (
	candidateSteps   = []step{findTime, findCaseNumber, findAddress, findNatureAndAgency, findDay}
	specialCaseSteps = []step{applyClock, findDay}
)

// ParseLine runs the extractors over line in order, stopping at the first
// failure. No network lookups happen here.
func ParseLine(line string) (ParsedLine, error) {
	a := &assembly{line: line}

	steps := candidateSteps
	switch c := ClassifyLine(line); c.Kind {
	case LineDiscard:
		return ParsedLine{}, &RejectedError{Stage: StageStart, Err: ErrBlankLine}
	case LineSpecialCase:
		a.parsed.Fields = c.Fields
		a.stage = StageNatureAgencyFound
		steps = specialCaseSteps
	}

	for _, s := range steps {
		if err := s(a); err != nil {
			return ParsedLine{}, &RejectedError{Stage: a.stage, Err: err}
		}
	}
	return a.parsed, nil
}

func findTime(a *assembly) error {
	t, ok := ExtractTime(a.line)
	if !ok {
		return ErrNoTime
	}
	a.parsed.Time = t
	if err := applyClock(a); err != nil {
		return err
	}
	a.stage = StageTimeFound
	return nil
}

func applyClock(a *assembly) error {
	hour, minute, ok := parseClock(a.parsed.Time)
	if !ok {
		return fmt.Errorf("%w: %q out of range", ErrNoTime, a.parsed.Time)
	}
	a.parsed.Hour = hour
	a.parsed.Minute = minute
	return nil
}

func findCaseNumber(a *assembly) error {
	number, end, ok := ExtractCaseNumber(a.line)
	if !ok {
		return ErrNoCaseNumber
	}
	a.parsed.CaseNumber = number
	a.cursor = end
	a.stage = StageNumberFound
	return nil
}

func findAddress(a *assembly) error {
	address, end, ok := ExtractAddress(a.line, a.cursor)
	if !ok {
		return ErrNoAddress
	}
	a.parsed.Address = address
	a.cursor = end
	a.stage = StageAddressFound
	return nil
}

func findNatureAndAgency(a *assembly) error {
	nature, agency, ok := ExtractNatureAndAgency(a.line, a.cursor)
	if !ok {
		return ErrNoAgency
	}
	a.parsed.Nature = nature
	a.parsed.AgencyCode = agency
	a.stage = StageNatureAgencyFound
	return nil
}

func findDay(a *assembly) error {
	day, date, err := ExtractDay(a.line)
	if err != nil {
		return err
	}
	a.parsed.DayOfWeek = day
	a.parsed.Date = date
	a.stage = StageDayFound
	return nil
}

// AssembleIncident parses line and enriches it with location and weather.
// Any extraction or geocoding failure rejects the line; weather failures
// only zero the weather code.
func AssembleIncident(ctx context.Context, line string, geocoder Geocoder, weather WeatherLookup, logger *slog.Logger) (Incident, error) {
	parsed, err := ParseLine(line)
	if err != nil {
		return Incident{}, err
	}
	return EnrichIncident(ctx, parsed, geocoder, weather, logger)
}

// EnrichIncident adds geocoded position, town quadrant and weather code to a
// parsed line.
func EnrichIncident(ctx context.Context, parsed ParsedLine, geocoder Geocoder, weather WeatherLookup, logger *slog.Logger) (Incident, error) {
	pos, town, quadrant, err := Locate(ctx, geocoder, parsed.Address)
	if err != nil {
		logger.Warn("geocoding failed, dropping incident",
			"case_number", parsed.CaseNumber,
			"address", parsed.Address,
			"error", err,
		)
		return Incident{}, &RejectedError{Stage: StageDayFound, Err: err}
	}

	query := WeatherQuery{Lat: pos.Lat, Lon: pos.Lon, Date: parsed.Date, Hour: parsed.Hour}
	return Incident{
		ParsedLine:  parsed,
		Geo:         pos,
		Town:        town,
		Quadrant:    quadrant,
		WeatherCode: LookupWeatherCode(ctx, weather, query, logger),
		ProcessedAt: clock.Now(),
	}, nil
}
