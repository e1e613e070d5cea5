package report

import (
	"fmt"
	"os"
	"time"

	ical "github.com/arran4/golang-ical"

	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
)

// defaultSlotLength is assumed when the export carries no end time
// (it never does); it only affects how the calendar block looks.
const defaultSlotLength = 45 * time.Minute

// RenderICS builds a VCALENDAR with one VEVENT per consolidated row.
// Rows whose date or time slot cannot be parsed are skipped; the feed is
// a convenience overlay, not the system of record.
func RenderICS(rc model.RunContext, rows []model.ConsolidatedRow) ([]byte, int) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//apptsheet//reminder feed//PT")

	count := 0
	for _, row := range rows {
		start, ok := slotStart(row.Date, row.TimeSlot)
		if !ok {
			applog.Debug("row skipped in ICS feed, unparseable slot",
				"reference", row.Reference, "date", row.Date, "time", row.TimeSlot)
			continue
		}

		ev := cal.AddEvent(fmt.Sprintf("%s@apptsheet", row.Reference))
		ev.SetCreatedTime(rc.StartedAt)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(defaultSlotLength))
		ev.SetSummary(fmt.Sprintf("%s: %s", row.Service, row.ClientName))
		ev.SetDescription(fmt.Sprintf("Ref %s, tel %s", row.Reference, row.PhoneNumber))
		count++
	}

	return []byte(cal.Serialize()), count
}

// WriteICS writes the calendar feed artifact.
func WriteICS(rc model.RunContext, rows []model.ConsolidatedRow, path string) error {
	data, count := RenderICS(rc, rows)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write calendar feed: %w", err)
	}
	applog.Info("calendar feed written", "path", path, "events", count)
	return nil
}

var slotDateLayouts = []string{"2006-01-02", "02/01/2006"}
var slotTimeLayouts = []string{"15:04", "15:04:05", "3:04 PM"}

// slotStart combines the exported date and time strings into one local
// timestamp.
func slotStart(date, slot string) (time.Time, bool) {
	for _, dl := range slotDateLayouts {
		d, err := time.ParseInLocation(dl, date, time.Local)
		if err != nil {
			continue
		}
		for _, tl := range slotTimeLayouts {
			t, err := time.Parse(tl, slot)
			if err != nil {
				continue
			}
			return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), true
		}
	}
	return time.Time{}, false
}
