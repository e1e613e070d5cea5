package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"apptsheet/internal/browser"
	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
)

// Contact-number controls probed in the detail view, most specific
// first.
var phoneControlSelectors = []string{
	`button[data-qa='customer-contact-number']`,
	`[data-qa*='contact-number']`,
	`a[href^='tel:']`,
}

const (
	referenceWaitTimeout = 15 * time.Second
	detailViewSettle     = 3 * time.Second
	listReturnSettle     = 1 * time.Second
)

// EnrichPhones opens each reference's detail view in turn and records
// the recovered phone number. Strictly sequential: the browsing session
// has exactly one list view, and each cycle must return to it before the
// next begins. A failed reference records the sentinel and the loop
// continues; enrichment never aborts the run.
func EnrichPhones(ctx context.Context, d browser.Driver, refs []string) model.PhoneDirectory {
	dir := make(model.PhoneDirectory, len(refs))

	for _, ref := range refs {
		phone, err := extractPhone(ctx, d, ref)
		if err != nil {
			applog.Error("reference enrichment failed", fmt.Errorf("%w: %v", ErrEnrichment, err), "reference", ref)
			phone = model.PhoneNotFound
		}
		dir[ref] = phone
		applog.Info("reference enriched", "reference", ref, "phone", phone)
	}

	return dir
}

// extractPhone opens one appointment's detail view, reads the contact
// number, and navigates back to the list. A detail view without a
// contact control is not an error; it yields the sentinel.
func extractPhone(ctx context.Context, d browser.Driver, ref string) (string, error) {
	sel := fmt.Sprintf(`//*[text()=%q]`, ref)
	if err := d.WaitVisible(ctx, sel, referenceWaitTimeout); err != nil {
		return "", fmt.Errorf("reference not visible in list: %w", err)
	}
	if err := d.Click(ctx, sel); err != nil {
		return "", fmt.Errorf("open detail view: %w", err)
	}

	// Return to the list even when extraction fails, otherwise every
	// following reference would fail too.
	defer func() {
		if err := d.Back(ctx); err != nil {
			applog.Error("return to list failed", err, "reference", ref)
			return
		}
		_ = d.Sleep(ctx, listReturnSettle)
	}()

	// The detail view renders client data asynchronously; there is no
	// ready signal to wait on, so a fixed settle period it is.
	if err := d.Sleep(ctx, detailViewSettle); err != nil {
		return "", err
	}

	html, err := d.OuterHTML(ctx, "body")
	if err != nil {
		return "", fmt.Errorf("capture detail view: %w", err)
	}
	return phoneFromDetailHTML(html), nil
}

// phoneFromDetailHTML locates the contact-number control in a detail
// view snapshot. Missing control or empty text yields the sentinel.
func phoneFromDetailHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		applog.Debug("detail view not parseable", "err", err)
		return model.PhoneNotFound
	}

	for _, sel := range phoneControlSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
		// tel: links may carry the number only in the href.
		if href, ok := node.Attr("href"); ok {
			if number := strings.TrimPrefix(href, "tel:"); number != href && number != "" {
				return number
			}
		}
	}
	return model.PhoneNotFound
}
