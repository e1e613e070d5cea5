// Package report writes the per-run artifacts: the HTML reminder sheet,
// the ICS calendar feed, and the open-in-default-app convenience helper.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"strings"

	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
)

//go:embed reminders.html.tmpl
var remindersTemplate string

// sheetData is what the reminder sheet template renders.
type sheetData struct {
	Date   string
	Groups []model.ContactGroup
}

var sheetTmpl = template.Must(template.New("reminders").Funcs(template.FuncMap{
	// Reminder messages contain newlines that must survive into the
	// table cell. Escape first, then substitute breaks.
	"nl2br": func(s string) template.HTML {
		escaped := template.HTMLEscapeString(s)
		return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
	},
}).Parse(remindersTemplate))

// RenderHTML renders the reminder sheet for the given groups.
func RenderHTML(rc model.RunContext, groups []model.ContactGroup) ([]byte, error) {
	var buf bytes.Buffer
	err := sheetTmpl.Execute(&buf, sheetData{
		Date:   rc.DateStamp(),
		Groups: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("report: render reminder sheet: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders and writes the reminder sheet artifact, returning
// its path.
func WriteHTML(rc model.RunContext, groups []model.ContactGroup, path string) error {
	data, err := RenderHTML(rc, groups)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write reminder sheet: %w", err)
	}
	applog.Info("reminder sheet written", "path", path, "groups", len(groups))
	return nil
}
