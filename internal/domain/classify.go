package domain

import "strings"

// LineKind is the outcome of classifying a raw line.
type LineKind int

const (
	// LineDiscard is noise that never reaches the extractors.
	LineDiscard LineKind = iota
	// LineCandidate goes through the extractors and may still be dropped.
	LineCandidate
	// LineSpecialCase is a known irregular row with fixed field values.
	LineSpecialCase
)

// Classification is the result of [ClassifyLine]. Fields is only set for
// LineSpecialCase.
type Classification struct {
	Kind   LineKind
	Fields Fields
}

// specialCases maps a marker substring of a published row that the general
// rules cannot parse to its hand-verified field values.
var specialCases = []struct {
	marker string
	fields Fields
}{
	{
		marker: "RAMPMotorist",
		fields: Fields{
			Time:       "6:42",
			CaseNumber: "2024-00004434",
			Address:    "W STATE HWY 9 HWY I35 NB ON RAMP 108A",
			Nature:     "Motorist Assist",
			AgencyCode: AgencyPolice,
		},
	},
	{
		marker: "SPUR",
		fields: Fields{
			Time:       "6:36",
			CaseNumber: "2024-00005537",
			Address:    "W MAIN ST / I35 NB ON RAMP 109 EAST SPUR RAMP",
			Nature:     "MVA Non Injury",
			AgencyCode: AgencyPolice,
		},
	},
}

// ClassifyLine decides whether line is blank noise, a known special case, or
// a candidate for extraction.
func ClassifyLine(line string) Classification {
	if strings.TrimSpace(line) == "" {
		return Classification{Kind: LineDiscard}
	}
	for _, sc := range specialCases {
		if strings.Contains(line, sc.marker) {
			return Classification{Kind: LineSpecialCase, Fields: sc.fields}
		}
	}
	return Classification{Kind: LineCandidate}
}
