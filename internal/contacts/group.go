package contacts

import (
	"fmt"
	"time"

	"apptsheet/internal/config"
	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
)

// Group filters cancelled rows, normalizes phones, groups the remaining
// rows by contact and composes the reminder message per group. Groups
// come out in first-seen row order, which keeps the sheet deterministic
// for a given export.
func Group(rows []model.ConsolidatedRow, gcfg config.GroupingConfig, mcfg config.MessageConfig) ([]model.ContactGroup, error) {
	composer, err := NewComposer(mcfg)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*model.ContactGroup)
	var order []string

	dropped := 0
	for _, row := range rows {
		if IsCancelled(row.Status, gcfg.CancellationTerms) {
			dropped++
			continue
		}

		key := NormalizePhone(row.PhoneNumber, gcfg.CountryCodes)
		if key == "" && gcfg.UnknownPhonePolicy == config.UnknownSeparate {
			// One bucket per unknown-phone reference; merging unrelated
			// customers behind one empty key would cross-send reminders.
			key = "ref:" + row.Reference
		}

		g, ok := byKey[key]
		if !ok {
			g = &model.ContactGroup{Key: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.Rows = append(g.Rows, row)
	}
	if dropped > 0 {
		applog.Info("cancelled rows excluded", "count", dropped)
	}

	groups := make([]model.ContactGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		finishGroup(g, composer, mcfg)
		groups = append(groups, *g)
	}
	return groups, nil
}

// finishGroup picks the earliest slot as the representative, deduplicates
// service names in first-seen order, and fills in message and deep link.
func finishGroup(g *model.ContactGroup, composer *Composer, mcfg config.MessageConfig) {
	rep := g.Rows[0]
	for _, row := range g.Rows[1:] {
		if slotBefore(row.TimeSlot, rep.TimeSlot) {
			rep = row
		}
	}

	seen := make(map[string]bool)
	for _, row := range g.Rows {
		if row.Service == "" || seen[row.Service] {
			continue
		}
		seen[row.Service] = true
		g.Services = append(g.Services, row.Service)
	}

	g.DisplayName = rep.ClientName
	g.FirstName = FirstName(rep.ClientName, mcfg.FallbackFirstName)
	g.Date = rep.Date
	g.TimeSlot = rep.TimeSlot

	g.Message = composer.Compose(g)
	g.WhatsAppURL = composer.DeepLink(g)
}

// clockLayouts are the time-slot formats the portal has produced.
var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM"}

func parseClock(s string) (time.Time, bool) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// slotBefore orders two time-slot strings chronologically, falling back
// to lexical order when either side does not parse as a clock time.
func slotBefore(a, b string) bool {
	ta, okA := parseClock(a)
	tb, okB := parseClock(b)
	if okA && okB {
		return ta.Before(tb)
	}
	if okA != okB {
		// Parseable slots sort before unparseable ones.
		return okA
	}
	return a < b
}

// ptMonths maps month numbers to pt-PT month names for the reminder
// message's date.
var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// dateLayouts are the scheduled-date formats the portal has produced.
var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// displayDate renders a scheduled date as "10 de maio". Unparseable
// dates fall back to the raw export value rather than failing the row.
func displayDate(raw string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return fmt.Sprintf("%d de %s", t.Day(), ptMonths[t.Month()-1])
		}
	}
	return raw
}
