package portal

import (
	"context"
	"fmt"
	"time"

	"apptsheet/internal/browser"
	"apptsheet/internal/config"
	applog "apptsheet/internal/log"
)

// Export UI synonyms for both portal locales. The trigger is a plain
// button labeled by text, so these are text searches rather than CSS.
var (
	exportTriggers = []string{
		`//button[contains(., 'Exportar')]`,
		`//button[contains(., 'Export')]`,
	}
	csvFormatOptions = []string{
		`//li[contains(., 'CSV')]`,
		`//*[@role='menuitem'][contains(., 'CSV')]`,
	}
)

const (
	exportPageSettle    = 2 * time.Second
	exportOptionTimeout = 10 * time.Second
	downloadTimeout     = 60 * time.Second
)

// ExportReport drives the portal's export UI for the target date and
// returns the raw CSV bytes. Any missing UI element or absent download
// is ErrExport, which is fatal for the run.
func ExportReport(ctx context.Context, d browser.Driver, cfg *config.Config, targetDate time.Time) ([]byte, error) {
	stamp := targetDate.Format("2006-01-02")
	url := fmt.Sprintf("%s?report-date-from=%s&report-date-to=%s", cfg.ListURL(), stamp, stamp)

	applog.Info("opening report view", "date", stamp)
	if err := d.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("%w: open report view: %v", ErrExport, err)
	}
	if err := d.Sleep(ctx, exportPageSettle); err != nil {
		return nil, err
	}

	if err := clickFirst(ctx, d, exportTriggers); err != nil {
		return nil, fmt.Errorf("%w: export trigger: %v", ErrExport, err)
	}
	if err := clickFirst(ctx, d, csvFormatOptions); err != nil {
		return nil, fmt.Errorf("%w: CSV format option: %v", ErrExport, err)
	}

	data, err := d.WaitDownload(ctx, downloadTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}

	applog.Info("report exported", "date", stamp, "bytes", len(data))
	return data, nil
}

// clickFirst waits for and clicks the first selector synonym that shows
// up; it fails only when none of them does.
func clickFirst(ctx context.Context, d browser.Driver, selectors []string) error {
	var lastErr error
	for _, sel := range selectors {
		if err := d.WaitVisible(ctx, sel, exportOptionTimeout); err != nil {
			lastErr = err
			continue
		}
		if err := d.Click(ctx, sel); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no selector candidates")
	}
	return fmt.Errorf("none of %d selectors appeared: %v", len(selectors), lastErr)
}
