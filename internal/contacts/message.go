package contacts

import (
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"apptsheet/internal/config"
	"apptsheet/internal/model"
)

// messageData is the parameter set exposed to the message template.
type messageData struct {
	FirstName string
	Date      string
	Time      string
	Services  string
}

// Composer renders the reminder message and the messaging deep link for
// a contact group. The template is parsed once per run.
type Composer struct {
	tmpl        *template.Template
	countryCode string
}

// NewComposer parses the configured message template.
func NewComposer(mcfg config.MessageConfig) (*Composer, error) {
	tmpl, err := template.New("reminder").Parse(mcfg.Template)
	if err != nil {
		return nil, fmt.Errorf("contacts: parse message template: %w", err)
	}
	return &Composer{
		tmpl:        tmpl,
		countryCode: mcfg.LinkCountryCode,
	}, nil
}

// Compose renders the reminder text for one group.
func (c *Composer) Compose(g *model.ContactGroup) string {
	data := messageData{
		FirstName: g.FirstName,
		Date:      displayDate(g.Date),
		Time:      g.TimeSlot,
		Services:  strings.Join(g.Services, ", "),
	}
	var b strings.Builder
	if err := c.tmpl.Execute(&b, data); err != nil {
		// Template fields are fixed and the template parsed; execution
		// cannot realistically fail, but a row must never vanish over
		// formatting. Fall back to an unstyled one-liner.
		return fmt.Sprintf("Olá %s, lembrete: %s às %s (%s)", data.FirstName, data.Date, data.Time, data.Services)
	}
	return b.String()
}

// DeepLink builds the web messaging URL carrying the composed message.
// Groups without a usable phone number get no link; a link with an empty
// number would open the client on an arbitrary chat.
func (c *Composer) DeepLink(g *model.ContactGroup) string {
	if g.Key == "" || strings.HasPrefix(g.Key, "ref:") {
		return ""
	}
	return fmt.Sprintf("https://web.whatsapp.com/send?phone=%s%s&text=%s",
		c.countryCode, g.Key, url.QueryEscape(g.Message))
}
