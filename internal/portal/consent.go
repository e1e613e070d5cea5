package portal

import (
	"context"
	"time"

	"apptsheet/internal/browser"
	applog "apptsheet/internal/log"
)

// consentPattern is one known consent-platform accept button.
type consentPattern struct {
	name     string
	selector string
}

// consentPatterns covers the consent platforms the portal has been seen
// to embed, in order of likelihood. All are CSS so they can also be
// probed inside iframes.
var consentPatterns = []consentPattern{
	{"onetrust", `#onetrust-accept-btn-handler`},
	{"didomi", `#didomi-notice-agree-button`},
	{"cookiebot", `#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll`},
	{"usercentrics", `button[data-testid="uc-accept-all-button"]`},
	{"cookie-generic", `[class*='cookie'] button[class*='accept']`},
}

// consentTextFallbacks are generic accept-button texts tried on the main
// document after every known pattern failed, covering both portal locales.
var consentTextFallbacks = []string{
	`//button[contains(., 'Accept all')]`,
	`//button[contains(., 'Accept')]`,
	`//button[contains(., 'Agree')]`,
	`//button[contains(., 'Aceitar')]`,
	`//button[contains(., 'Concordo')]`,
}

// consentProbeTimeout bounds each individual visibility probe. Banners
// show up fast or not at all, so these stay short.
const consentProbeTimeout = 1500 * time.Millisecond

// DismissConsent makes a best-effort attempt to dismiss a cookie/consent
// banner: known patterns on the main document, then on every iframe, then
// generic accept texts. It never fails; an absent banner is the normal
// case, and any click error just moves to the next pattern.
func DismissConsent(ctx context.Context, d browser.Driver) bool {
	for _, p := range consentPatterns {
		if err := d.WaitVisible(ctx, p.selector, consentProbeTimeout); err != nil {
			continue
		}
		if err := d.Click(ctx, p.selector); err != nil {
			applog.Debug("consent click failed, trying next pattern", "pattern", p.name, "err", err)
			continue
		}
		applog.Info("consent banner dismissed", "pattern", p.name)
		return true
	}

	frames, err := d.Frames(ctx)
	if err != nil {
		applog.Debug("could not enumerate frames for consent probing", "err", err)
		frames = nil
	}
	for _, fr := range frames {
		for _, p := range consentPatterns {
			if err := d.ClickInFrame(ctx, fr, p.selector, consentProbeTimeout); err != nil {
				continue
			}
			applog.Info("consent banner dismissed in frame", "pattern", p.name, "frame", fr.ID)
			return true
		}
	}

	for _, sel := range consentTextFallbacks {
		if err := d.WaitVisible(ctx, sel, consentProbeTimeout); err != nil {
			continue
		}
		if err := d.Click(ctx, sel); err != nil {
			continue
		}
		applog.Info("consent banner dismissed", "pattern", "text-fallback")
		return true
	}

	applog.Debug("no consent banner found")
	return false
}
