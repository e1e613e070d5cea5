// Package contacts turns consolidated appointment rows into the reminder
// sheet's grouping units: one entry per unique contact, keyed by a
// canonical national phone number, with a composed reminder message and
// a messaging deep link.
package contacts

import "strings"

// NormalizePhone canonicalizes a raw phone string: every non-digit is
// stripped, then the configured country calling codes are tested in
// precedence order and the first matching prefix is removed. At most one
// code is stripped, and a number that IS a bare country code is left
// alone. Idempotent: normalizing an already-normalized number is a
// no-op.
func NormalizePhone(raw string, countryCodes []string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	for _, cc := range countryCodes {
		cc = strings.TrimSpace(cc)
		if cc == "" {
			continue
		}
		if strings.HasPrefix(digits, cc) && len(digits) > len(cc) {
			return digits[len(cc):]
		}
	}
	return digits
}

// IsCancelled reports whether a status value matches any configured
// cancellation term, case-insensitively. Cancelled rows are excluded
// permanently before grouping, not merely hidden.
func IsCancelled(status string, terms []string) bool {
	status = strings.TrimSpace(status)
	for _, term := range terms {
		if strings.EqualFold(status, strings.TrimSpace(term)) {
			return true
		}
	}
	return false
}

// FirstName derives the salutation name: the first whitespace-separated
// token of the client name, or fallback when that strips to empty.
func FirstName(clientName, fallback string) string {
	fields := strings.Fields(clientName)
	if len(fields) == 0 {
		return fallback
	}
	return fields[0]
}
