// Package pipeline wires one end-to-end run: authenticate, export,
// enrich, consolidate, group, render. Only authentication and export
// failures abort a run; everything downstream degrades to sentinel or
// partial data per the error taxonomy.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"apptsheet/internal/browser"
	"apptsheet/internal/config"
	"apptsheet/internal/consolidate"
	"apptsheet/internal/contacts"
	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
	"apptsheet/internal/portal"
	"apptsheet/internal/report"
)

// Artifacts lists what a successful run produced.
type Artifacts struct {
	ConsolidatedCSV string
	ReminderSheet   string
	CalendarFeed    string
	Groups          int
}

// Options tweaks one run beyond the config file.
type Options struct {
	// DumpRaw additionally writes the unconsolidated export next to the
	// artifacts, for debugging locale/synonym issues.
	DumpRaw bool
}

// Run executes one complete pipeline run with a real browser. The
// browsing context is acquired here and released as soon as the
// export+enrichment phase is over, on every exit path.
func Run(ctx context.Context, cfg *config.Config, rc model.RunContext, opts Options) (*Artifacts, error) {
	applog.Info("pipeline run starting", "run_id", rc.ID, "target_date", rc.DateStamp())

	chrome, err := browser.NewChrome(ctx, browser.ChromeOptions{Headless: cfg.Headless})
	if err != nil {
		return nil, err
	}

	return RunWithBrowser(ctx, cfg, rc, opts, chrome, chrome, chrome.Close)
}

// RunWithBrowser is Run with the browser supplied by the caller, so the
// whole pipeline can be exercised against a fake driver. release is
// invoked as soon as the browser is no longer needed and is guaranteed
// to run even on early exits.
func RunWithBrowser(ctx context.Context, cfg *config.Config, rc model.RunContext, opts Options,
	d browser.Driver, sc browser.SessionCarrier, release func()) (*Artifacts, error) {

	released := false
	releaseOnce := func() {
		if !released {
			released = true
			release()
		}
	}
	defer releaseOnce()

	auth := portal.NewAuthFlow(cfg)
	if err := auth.Run(ctx, d, sc); err != nil {
		return nil, err
	}

	raw, err := portal.ExportReport(ctx, d, cfg, rc.TargetDate)
	if err != nil {
		return nil, err
	}
	if opts.DumpRaw {
		dumpPath := filepath.Join(rc.ArtifactDir, "RawExport_"+rc.DateStamp()+".csv")
		if err := os.WriteFile(dumpPath, raw, 0o644); err != nil {
			applog.Error("raw export dump failed", err, "path", dumpPath)
		}
	}

	refs := consolidate.MissingPhoneRefs(raw, cfg.Columns)
	applog.Info("rows needing phone enrichment", "count", len(refs))
	phones := portal.EnrichPhones(ctx, d, refs)

	// Everything from here on is local; the browsing session is done.
	releaseOnce()

	merged, _, err := consolidate.Consolidate(raw, phones, cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", portal.ErrExport, err)
	}

	csvPath := filepath.Join(rc.ArtifactDir, "Appointments_"+rc.DateStamp()+".csv")
	if err := os.WriteFile(csvPath, merged, 0o644); err != nil {
		return nil, fmt.Errorf("write consolidated CSV: %w", err)
	}
	applog.Info("consolidated CSV written", "path", csvPath)

	rows, _ := consolidate.ParseRows(merged, cfg.Columns)

	groups, err := contacts.Group(rows, cfg.Grouping, cfg.Message)
	if err != nil {
		return nil, err
	}

	htmlPath := filepath.Join(rc.ArtifactDir, "Reminders_"+rc.DateStamp()+".html")
	if err := report.WriteHTML(rc, groups, htmlPath); err != nil {
		return nil, err
	}

	kept := make([]model.ConsolidatedRow, 0, len(rows))
	for _, row := range rows {
		if !contacts.IsCancelled(row.Status, cfg.Grouping.CancellationTerms) {
			kept = append(kept, row)
		}
	}
	icsPath := filepath.Join(rc.ArtifactDir, "Appointments_"+rc.DateStamp()+".ics")
	if err := report.WriteICS(rc, kept, icsPath); err != nil {
		return nil, err
	}

	if cfg.OpenReport {
		if err := report.OpenInDefaultApp(htmlPath); err != nil {
			applog.Error("could not open reminder sheet", err)
		}
	}

	applog.Info("pipeline run complete", "run_id", rc.ID, "groups", len(groups))
	return &Artifacts{
		ConsolidatedCSV: csvPath,
		ReminderSheet:   htmlPath,
		CalendarFeed:    icsPath,
		Groups:          len(groups),
	}, nil
}
