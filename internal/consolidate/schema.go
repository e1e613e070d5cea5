// Package consolidate turns the portal's raw CSV export plus the phone
// directory into the consolidated CSV artifact: same rows, same order,
// one appended PhoneNumber column. It owns header resolution (locale
// synonym matching) but no business filtering; cancelled rows pass
// through untouched and are excluded later by grouping.
package consolidate

import (
	"strings"

	"apptsheet/internal/config"
)

// PhoneColumnName is the appended consolidated column.
const PhoneColumnName = "PhoneNumber"

// Schema maps logical fields to column indexes for one resolved header.
// -1 means the column is absent. Resolved once per run; rows are then
// addressed by index only.
type Schema struct {
	Reference int
	Client    int
	RawPhone  int // the portal's own phone column, usually empty
	Time      int
	Date      int
	Service   int
	Status    int

	// PhoneNumber is the appended column. Non-negative when the input
	// was already consolidated once (idempotent re-runs).
	PhoneNumber int
}

// HasReference reports whether the header exposed a recognizable
// reference column. Without it no line is treated as a data row.
func (s Schema) HasReference() bool { return s.Reference >= 0 }

// Consolidated reports whether the input already carries the appended
// phone column.
func (s Schema) Consolidated() bool { return s.PhoneNumber >= 0 }

// Resolve matches the header against the configured per-field synonym
// lists. Matching is case-insensitive substring matching, so one synonym
// table serves both portal locales at once. The exact PhoneNumber column
// is resolved first and excluded from synonym matching, otherwise the
// "Phone" synonym would capture it on re-runs.
func Resolve(header []string, cols config.ColumnsConfig) Schema {
	s := Schema{
		Reference:   -1,
		Client:      -1,
		RawPhone:    -1,
		Time:        -1,
		Date:        -1,
		Service:     -1,
		Status:      -1,
		PhoneNumber: -1,
	}

	for i, cell := range header {
		if strings.EqualFold(strings.TrimSpace(cell), PhoneColumnName) {
			s.PhoneNumber = i
			break
		}
	}

	s.Reference = findColumn(header, cols.Reference, s.PhoneNumber)
	s.Client = findColumn(header, cols.Client, s.PhoneNumber)
	s.RawPhone = findColumn(header, cols.Phone, s.PhoneNumber)
	s.Time = findColumn(header, cols.Time, s.PhoneNumber)
	s.Date = findColumn(header, cols.Date, s.PhoneNumber)
	s.Service = findColumn(header, cols.Service, s.PhoneNumber)
	s.Status = findColumn(header, cols.Status, s.PhoneNumber)

	return s
}

// findColumn returns the first header cell matching any synonym, in
// synonym priority order. exclude skips one index (the appended phone
// column).
func findColumn(header []string, synonyms []string, exclude int) int {
	for _, syn := range synonyms {
		want := strings.ToLower(strings.TrimSpace(syn))
		if want == "" {
			continue
		}
		for i, cell := range header {
			if i == exclude {
				continue
			}
			if strings.Contains(strings.ToLower(strings.TrimSpace(cell)), want) {
				return i
			}
		}
	}
	return -1
}

// cell safely reads a field from a record, returning "" when the record
// is too short.
func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
