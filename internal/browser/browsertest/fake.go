// Package browsertest provides a scriptable in-memory browser.Driver for
// exercising the portal flows and the pipeline without Chromium.
package browsertest

import (
	"context"
	"fmt"
	"time"

	"apptsheet/internal/browser"
)

// Call records one driver operation, for order assertions.
type Call struct {
	Op  string
	Arg string
}

// Fake implements browser.Driver and browser.SessionCarrier against
// scripted state. The zero value is usable: everything invisible,
// nothing downloadable, every navigation accepted.
type Fake struct {
	// Visible selectors that WaitVisible (and ClickInFrame) succeed on.
	Visible map[string]bool

	// URL is the current location; Navigate sets it, optionally routed
	// through OnNavigate (e.g. to redirect the list page to sign-in).
	URL        string
	OnNavigate func(url string) string

	// OnClick observes clicks, e.g. to flip URL after a login submit.
	OnClick func(selector string)

	// Filled records the last value per selector from Fill/TypeKeys.
	Filled map[string]string

	// HTML maps OuterHTML selectors to payloads; DefaultHTML is the
	// fallback.
	HTML        map[string]string
	DefaultHTML string

	// Downloads are handed out by WaitDownload in order.
	Downloads [][]byte

	// FrameList is what Frames returns.
	FrameList []browser.Frame

	// Session captures Import/Export traffic.
	Imported *browser.Session
	Exported *browser.Session

	// Released is flipped by the Release method handed to the pipeline.
	Released bool

	Calls []Call
}

var _ browser.Driver = (*Fake)(nil)
var _ browser.SessionCarrier = (*Fake)(nil)

func (f *Fake) record(op, arg string) {
	f.Calls = append(f.Calls, Call{Op: op, Arg: arg})
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.record("navigate", url)
	if f.OnNavigate != nil {
		url = f.OnNavigate(url)
	}
	f.URL = url
	return ctx.Err()
}

func (f *Fake) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("wait", selector)
	if f.Visible[selector] {
		return nil
	}
	return fmt.Errorf("browsertest: %q never became visible", selector)
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.record("click", selector)
	if f.OnClick != nil {
		f.OnClick(selector)
	}
	return nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	f.record("fill", selector)
	if f.Filled == nil {
		f.Filled = map[string]string{}
	}
	f.Filled[selector] = value
	return nil
}

func (f *Fake) TypeKeys(ctx context.Context, selector, text string, perKey time.Duration) error {
	f.record("type", selector)
	if f.Filled == nil {
		f.Filled = map[string]string{}
	}
	f.Filled[selector] = text
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	return f.URL, nil
}

func (f *Fake) Frames(ctx context.Context) ([]browser.Frame, error) {
	return f.FrameList, nil
}

func (f *Fake) ClickInFrame(ctx context.Context, frame browser.Frame, selector string, timeout time.Duration) error {
	key := frame.ID + "|" + selector
	f.record("click-in-frame", key)
	if f.Visible[key] {
		return nil
	}
	return fmt.Errorf("browsertest: %q not visible in frame %q", selector, frame.ID)
}

func (f *Fake) OuterHTML(ctx context.Context, selector string) (string, error) {
	f.record("html", selector)
	if html, ok := f.HTML[selector]; ok {
		return html, nil
	}
	if f.DefaultHTML != "" {
		return f.DefaultHTML, nil
	}
	return "", fmt.Errorf("browsertest: no HTML scripted for %q", selector)
}

func (f *Fake) WaitDownload(ctx context.Context, timeout time.Duration) ([]byte, error) {
	f.record("download", "")
	if len(f.Downloads) == 0 {
		return nil, fmt.Errorf("browsertest: no download scripted")
	}
	data := f.Downloads[0]
	f.Downloads = f.Downloads[1:]
	return data, nil
}

func (f *Fake) Back(ctx context.Context) error {
	f.record("back", "")
	return nil
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	// Settle periods are a no-op for a fake; only cancellation matters.
	return ctx.Err()
}

func (f *Fake) ExportSession(ctx context.Context) (*browser.Session, error) {
	if f.Exported == nil {
		f.Exported = &browser.Session{
			SavedAt:      time.Now(),
			LocalStorage: map[string]string{"auth": "token"},
		}
	}
	return f.Exported, nil
}

func (f *Fake) ImportSession(ctx context.Context, s *browser.Session) error {
	f.Imported = s
	return nil
}

// Release returns a func suitable as the pipeline's release hook.
func (f *Fake) Release() func() {
	return func() { f.Released = true }
}
