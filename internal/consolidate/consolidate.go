package consolidate

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"apptsheet/internal/config"
	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
)

// ErrEmptyExport is returned when the raw export contains no lines at
// all. Short or malformed individual rows are skipped, not fatal.
var ErrEmptyExport = errors.New("consolidate: empty export")

// readRecords parses CSV bytes tolerantly: variable field counts are
// allowed and individually malformed lines are skipped with a log line
// rather than aborting the file.
func readRecords(raw []byte) [][]string {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			applog.Error("malformed CSV line skipped", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// isHeaderRepeat reports whether a data-position record is actually a
// repeated header line (the export occasionally re-emits its header
// mid-file). Detection: the reference-column cell IS a reference synonym
// instead of holding a reference value. Exact match only; a reference
// value that merely contains "ref" must not be dropped.
func isHeaderRepeat(record []string, schema Schema, header []string, cols config.ColumnsConfig) bool {
	value := cell(record, schema.Reference)
	if value == "" {
		return false
	}
	if strings.EqualFold(value, cell(header, schema.Reference)) {
		return true
	}
	for _, syn := range cols.Reference {
		if strings.EqualFold(value, strings.TrimSpace(syn)) {
			return true
		}
	}
	return false
}

// MissingPhoneRefs lists the references whose rows need enrichment: the
// raw export either has no phone column or an empty value in it, and the
// input has not been consolidated yet.
func MissingPhoneRefs(raw []byte, cols config.ColumnsConfig) []string {
	records := readRecords(raw)
	if len(records) == 0 {
		return nil
	}

	schema := Resolve(records[0], cols)
	if !schema.HasReference() {
		applog.Info("no reference column in header, nothing to enrich")
		return nil
	}

	var refs []string
	for _, rec := range records[1:] {
		if isHeaderRepeat(rec, schema, records[0], cols) {
			continue
		}
		ref := cell(rec, schema.Reference)
		if ref == "" {
			continue
		}
		if cell(rec, schema.RawPhone) != "" {
			continue
		}
		if schema.Consolidated() && cell(rec, schema.PhoneNumber) != "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// Consolidate merges the raw export with the phone directory into the
// consolidated CSV: identical schema and row order plus the appended
// PhoneNumber column. Idempotent: input that already carries the column
// is passed through with populated cells untouched.
func Consolidate(raw []byte, phones model.PhoneDirectory, cols config.ColumnsConfig) ([]byte, Schema, error) {
	records := readRecords(raw)
	if len(records) == 0 {
		return nil, Schema{}, ErrEmptyExport
	}

	header := records[0]
	schema := Resolve(header, cols)

	if !schema.HasReference() {
		// Degenerate case: nothing is recognizable as a data row, so
		// the file passes through unchanged.
		applog.Info("no reference column in header, consolidation is a no-op")
		return raw, schema, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	outHeader := header
	if !schema.Consolidated() {
		outHeader = append(append([]string{}, header...), PhoneColumnName)
		schema.PhoneNumber = len(outHeader) - 1
	}
	if err := w.Write(outHeader); err != nil {
		return nil, schema, err
	}

	appended, dropped, skipped := 0, 0, 0
	for _, rec := range records[1:] {
		if isHeaderRepeat(rec, schema, records[0], cols) {
			dropped++
			continue
		}

		ref := cell(rec, schema.Reference)
		if ref == "" {
			// Structurally short or blank row. Not a data row.
			skipped++
			continue
		}

		out := append([]string{}, rec...)

		// Rows that already carry a phone value are never re-enriched.
		if len(out) > schema.PhoneNumber && out[schema.PhoneNumber] != "" && len(out) == len(outHeader) {
			if err := w.Write(out); err != nil {
				return nil, schema, err
			}
			continue
		}

		phone := cell(rec, schema.RawPhone)
		if phone == "" {
			phone = phones[ref]
		}
		for len(out) < len(outHeader)-1 {
			out = append(out, "")
		}
		if len(out) == len(outHeader)-1 {
			out = append(out, phone)
		} else {
			out[schema.PhoneNumber] = phone
		}

		if err := w.Write(out); err != nil {
			return nil, schema, err
		}
		appended++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, schema, err
	}

	applog.Info("consolidation complete",
		"rows", appended, "header_repeats_dropped", dropped, "rows_skipped", skipped)
	return buf.Bytes(), schema, nil
}

// ParseRows reads a consolidated CSV into typed rows for grouping and
// rendering. Rows without a reference are skipped; the phone field is
// always present (possibly empty) by construction.
func ParseRows(consolidated []byte, cols config.ColumnsConfig) ([]model.ConsolidatedRow, Schema) {
	records := readRecords(consolidated)
	if len(records) == 0 {
		return nil, Schema{}
	}

	schema := Resolve(records[0], cols)
	if !schema.HasReference() {
		return nil, schema
	}

	rows := make([]model.ConsolidatedRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isHeaderRepeat(rec, schema, records[0], cols) {
			continue
		}
		ref := cell(rec, schema.Reference)
		if ref == "" {
			continue
		}
		rows = append(rows, model.ConsolidatedRow{
			AppointmentRow: model.AppointmentRow{
				Fields:     append([]string{}, rec...),
				Reference:  ref,
				ClientName: cell(rec, schema.Client),
				Phone:      cell(rec, schema.RawPhone),
				Date:       cell(rec, schema.Date),
				TimeSlot:   cell(rec, schema.Time),
				Service:    cell(rec, schema.Service),
				Status:     cell(rec, schema.Status),
			},
			PhoneNumber: cell(rec, schema.PhoneNumber),
		})
	}
	return rows, schema
}
