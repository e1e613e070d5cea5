// Package browser wraps headless Chromium behind a narrow capability
// surface so the portal flows (consent, login, export, enrichment) can be
// exercised against a fake driver in tests.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// Frame is an opaque handle for an embedded iframe of the current page.
type Frame struct {
	// ID is a stable label for logging (frame URL or node id).
	ID string

	node *cdp.Node
}

// Driver is the capability surface the portal flows depend on. Every wait
// is bounded: exceeding a timeout surfaces as an error at the call site,
// never as a silent hang. Selectors are CSS by default; selectors starting
// with "/" or "(" are treated as XPath/text searches.
type Driver interface {
	// Navigate loads the given URL and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector is visible or the timeout
	// elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Click clicks the first match of the selector.
	Click(ctx context.Context, selector string) error

	// Fill replaces the value of an input field in one operation.
	Fill(ctx context.Context, selector, value string) error

	// TypeKeys enters text into a field one key at a time, pausing
	// perKey between keystrokes.
	TypeKeys(ctx context.Context, selector, text string, perKey time.Duration) error

	// CurrentURL reports the top frame's current location.
	CurrentURL(ctx context.Context) (string, error)

	// Frames lists the iframes embedded in the current page.
	Frames(ctx context.Context) ([]Frame, error)

	// ClickInFrame waits for and clicks a selector inside the given
	// frame. Frame selectors are always CSS.
	ClickInFrame(ctx context.Context, frame Frame, selector string, timeout time.Duration) error

	// OuterHTML returns the serialized HTML of the first match.
	OuterHTML(ctx context.Context, selector string) (string, error)

	// WaitDownload blocks until a download triggered by a prior Click
	// completes, and returns its bytes.
	WaitDownload(ctx context.Context, timeout time.Duration) ([]byte, error)

	// Back navigates one entry back in the session history.
	Back(ctx context.Context) error

	// Sleep pauses for a fixed settle period, honoring ctx cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}

// SessionCarrier moves the authenticated-session blob in and out of a
// live browser. Implemented by Chrome; faked in tests.
type SessionCarrier interface {
	ExportSession(ctx context.Context) (*Session, error)
	ImportSession(ctx context.Context, s *Session) error
}
