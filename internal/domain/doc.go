// Package domain models police daily incident summary data.
//
// # Data Source
//
// Incident summaries are published daily as PDF documents (for example
// https://www.normanok.gov/sites/default/files/documents/2024-03/2024-03-04_daily_incident_summary.pdf).
// Each page renders a table with the columns Date/Time, Incident Number,
// Location, Nature and Incident ORI, but text extraction flattens every row
// into a single free-text line with no reliable column delimiter:
//
//	1/1/2024 0:01 2024-00000001 3603 N FLOOD AVE Traffic Stop OK0140200
//
// Headers, footers, blank lines and page artifacts are interleaved with the
// real rows. They are never identified positively; a line that fails any
// extractor is simply dropped.
//
// # Field Conventions
//
// Date: the first whitespace-delimited token, M/D/YYYY.
//
// Time: the first H:MM or HH:MM token in the line, 24-hour local time.
//
// Incident number: YYYY-NNNNNNNN followed by whitespace. The address scan
// starts right after it.
//
// Location: free text ending in an upper-case street-type suffix (AVE, RD,
// HWY, ...) or one of a handful of jurisdiction literals. When several
// suffixes occur, the one ending furthest from the incident number bounds the
// address, because cross streets carry their own suffix. Two other shapes
// occur: a bracketed token such as <UNKNOWN>, and a "lat;lon" coordinate pair.
// See [ExtractAddress].
//
// Nature: everything between the end of the location and the agency code.
//
// Incident ORI (agency code): one of [AgencyCodes], searched in that order.
// The line must end in a word character.
//
// Day of week: 1..7 computed as ((mondayZeroWeekday + 1) mod 7) + 1, so
// Sunday=1, Monday=2, ..., Saturday=7. See [DayOfWeek].
//
// # Known Irregular Rows
//
// Two published rows are unparsable by the general rules. They are matched by
// substring and mapped to fixed, hand-verified field values. See
// [ClassifyLine]. This is a deliberate carve-out, not a general mechanism.
//
// # Enrichment
//
// The address is geocoded, and the second comma-separated component of the
// geocoder display name is taken as the town. The town is geocoded again to
// find its center, and the incident is placed in a quadrant by independent
// sign comparison of latitude and longitude; ties fall to South and West.
// Geocoding failure drops the incident.
//
// Historical weather is looked up for the incident coordinates, date and hour.
// Weather failure is not fatal; the code defaults to 0.
//
// # Ranks
//
// After a whole document is parsed, incidents are ranked by how often their
// location and nature occur. Ranks are cumulative rather than dense: a group's
// rank is the 1-based position its first member would take if all incidents
// were laid out group by group in (frequency desc, key asc) order. See
// [AugmentLocationRanks].
package domain
