// Package portal drives the scheduling portal's web UI: consent banner
// dismissal, session-reusing login, CSV report export and per-appointment
// phone enrichment. All flows operate against the browser.Driver
// capability surface so they can run against a fake driver in tests.
package portal

import "errors"

var (
	// ErrAuthentication marks login failures (form not found, fields not
	// found, post-submit URL never leaves sign-in). Fatal for the run.
	ErrAuthentication = errors.New("portal: authentication failed")

	// ErrExport marks export failures (trigger or format option never
	// appears, no download materializes). Fatal for the run.
	ErrExport = errors.New("portal: report export failed")

	// ErrEnrichment marks a per-reference phone extraction failure.
	// Never fatal; the row's phone is recorded as the sentinel.
	ErrEnrichment = errors.New("portal: phone enrichment failed")
)
