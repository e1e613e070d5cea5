package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"apptsheet/internal/model"
)

func testRunContext(t *testing.T) model.RunContext {
	t.Helper()
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	return model.NewRunContext(date, t.TempDir())
}

func testGroups() []model.ContactGroup {
	return []model.ContactGroup{
		{
			Key:         "912345678",
			DisplayName: "Maria Silva",
			FirstName:   "Maria",
			Date:        "2024-05-10",
			TimeSlot:    "09:00",
			Services:    []string{"Corte", "Coloração"},
			Message:     "Olá Maria 🤍\nLembrete: amanhã às 09:00.",
			WhatsAppURL: "https://web.whatsapp.com/send?phone=351912345678&text=Ol%C3%A1",
		},
		{
			Key:         "ref:R9",
			DisplayName: "Cliente Sem Número",
			FirstName:   "Cliente",
			Date:        "2024-05-10",
			TimeSlot:    "11:00",
			Services:    []string{"Manicure"},
			Message:     "Olá Cliente 🤍",
			WhatsAppURL: "",
		},
	}
}

func TestRenderHTMLSheet(t *testing.T) {
	rc := testRunContext(t)

	data, err := RenderHTML(rc, testGroups())
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	require.NoError(t, err)

	// Header row plus one row per group.
	require.Equal(t, 3, doc.Find("table tr").Length())
	require.Contains(t, doc.Find("h2").Text(), "2024-05-10")

	rows := doc.Find("table tr").Slice(1, 3)
	first := rows.First()
	require.Equal(t, "Maria Silva", first.Find("td").First().Text())
	require.Contains(t, first.Text(), "912345678")

	// Only the group with a deep link gets a send button.
	links := doc.Find("a[data-wa='true']")
	require.Equal(t, 1, links.Length())
	href, _ := links.Attr("href")
	require.Contains(t, href, "phone=351912345678")
}

func TestRenderHTMLEscapesAndBreaksMessage(t *testing.T) {
	rc := testRunContext(t)
	groups := []model.ContactGroup{{
		Key:         "912345678",
		DisplayName: "Maria <b>Silva</b>",
		Message:     "linha um\nlinha <dois>",
	}}

	data, err := RenderHTML(rc, groups)
	require.NoError(t, err)

	html := string(data)
	require.Contains(t, html, "linha um<br>linha &lt;dois&gt;")
	require.NotContains(t, html, "<b>Silva</b>")
}

func TestRenderHTMLEmptyGroups(t *testing.T) {
	rc := testRunContext(t)

	data, err := RenderHTML(rc, nil)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("table tr").Length())
}

func TestWriteHTML(t *testing.T) {
	rc := testRunContext(t)
	path := filepath.Join(rc.ArtifactDir, "Reminders_"+rc.DateStamp()+".html")

	require.NoError(t, WriteHTML(rc, testGroups(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Maria Silva")
}
