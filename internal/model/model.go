package model

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentRow is a single data row of the portal's raw export after the
// header has been resolved. Fields holds the original cells in export
// order; the named fields are the resolved logical columns. A row is not
// mutated after parsing.
type AppointmentRow struct {
	Fields []string

	Reference  string
	ClientName string
	Phone      string // raw phone as exported; often empty
	Date       string // scheduled date as exported (e.g. "2024-05-10")
	TimeSlot   string // e.g. "09:00"
	Service    string
	Status     string
}

// ConsolidatedRow is an AppointmentRow whose phone field has been filled
// from the consolidated CSV's appended PhoneNumber column. The phone may
// still be empty or the "Not Found" sentinel; it is never absent.
type ConsolidatedRow struct {
	AppointmentRow
	PhoneNumber string
}

// ContactGroup is the grouping unit of the reminder sheet: all
// appointments sharing one normalized phone number, represented by the
// chronologically earliest slot.
type ContactGroup struct {
	// Key is the canonical national phone number (digits only, country
	// calling code stripped), or a per-reference sentinel when the phone
	// is unknown and the policy keeps unknowns separate.
	Key string

	DisplayName string
	FirstName   string
	Date        string
	TimeSlot    string
	Services    []string // distinct, first-seen order

	Rows []ConsolidatedRow

	// Message is the composed reminder text; WhatsAppURL is the
	// web.whatsapp.com deep link carrying it.
	Message     string
	WhatsAppURL string
}

// RunContext identifies one pipeline run. It is created at the start of a
// run and passed explicitly into every component; no component reads
// process-wide mutable state.
type RunContext struct {
	ID          string
	TargetDate  time.Time
	ArtifactDir string
	StartedAt   time.Time
}

// NewRunContext creates a RunContext for the given target date.
func NewRunContext(targetDate time.Time, artifactDir string) RunContext {
	return RunContext{
		ID:          uuid.NewString(),
		TargetDate:  targetDate,
		ArtifactDir: artifactDir,
		StartedAt:   time.Now(),
	}
}

// DateStamp returns the target date in the form used in artifact file
// names (Appointments_2024-05-10.csv etc.).
func (rc RunContext) DateStamp() string {
	return rc.TargetDate.Format("2006-01-02")
}
