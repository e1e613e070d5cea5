package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"apptsheet/internal/browser"
	"apptsheet/internal/browser/browsertest"
	"apptsheet/internal/config"
	"apptsheet/internal/model"
	"apptsheet/internal/portal"
)

const rawExport = "Referência,Cliente,Data agendada,Horário,Serviço,Situação\n" +
	"R1,Maria Silva,2024-05-10,09:00,Corte,Confirmado\n" +
	"R2,Maria Silva,2024-05-10,10:00,Coloração,Confirmado\n" +
	"R3,João Pires,2024-05-10,11:00,Barba,Cancelado\n"

const detailHTML = `<html><body>` +
	`<button data-qa="customer-contact-number">351912345678</button>` +
	`</body></html>`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SessionFile = filepath.Join(t.TempDir(), "session.json")
	return cfg
}

// savedSession writes a session blob so the auth flow restores it instead
// of logging in; the pipeline then never needs credentials.
func savedSession(t *testing.T, path string) {
	t.Helper()
	err := browser.SaveSession(path, &browser.Session{
		SavedAt:      time.Now(),
		LocalStorage: map[string]string{"auth": "token"},
	})
	require.NoError(t, err)
}

func exportReadyFake() *browsertest.Fake {
	return &browsertest.Fake{
		Visible: map[string]bool{
			`//button[contains(., 'Exportar')]`: true,
			`//li[contains(., 'CSV')]`:          true,
			`//*[text()="R1"]`:                  true,
			`//*[text()="R2"]`:                  true,
			`//*[text()="R3"]`:                  true,
		},
		Downloads:   [][]byte{[]byte(rawExport)},
		DefaultHTML: detailHTML,
	}
}

func TestRunWithBrowserEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	savedSession(t, cfg.SessionFile)
	fake := exportReadyFake()

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	rc := model.NewRunContext(date, t.TempDir())

	arts, err := RunWithBrowser(context.Background(), cfg, rc, Options{}, fake, fake, fake.Release())
	require.NoError(t, err)
	require.True(t, fake.Released)

	// One group: both of Maria's appointments share the phone recovered
	// from the detail views, and the cancelled row never surfaces.
	require.Equal(t, 1, arts.Groups)

	csvData, err := os.ReadFile(arts.ConsolidatedCSV)
	require.NoError(t, err)
	csvText := string(csvData)
	require.Contains(t, csvText, "PhoneNumber")
	require.Contains(t, csvText, "351912345678")
	require.Equal(t, filepath.Join(rc.ArtifactDir, "Appointments_2024-05-10.csv"), arts.ConsolidatedCSV)

	htmlData, err := os.ReadFile(arts.ReminderSheet)
	require.NoError(t, err)
	htmlText := string(htmlData)
	require.Contains(t, htmlText, "Maria Silva")
	require.Contains(t, htmlText, "912345678")
	require.Contains(t, htmlText, "web.whatsapp.com/send?phone=351912345678")
	require.NotContains(t, htmlText, "João")

	icsData, err := os.ReadFile(arts.CalendarFeed)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(icsData), "BEGIN:VEVENT"))
}

func TestRunWithBrowserDumpRaw(t *testing.T) {
	cfg := testConfig(t)
	savedSession(t, cfg.SessionFile)
	fake := exportReadyFake()

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	rc := model.NewRunContext(date, t.TempDir())

	_, err := RunWithBrowser(context.Background(), cfg, rc, Options{DumpRaw: true}, fake, fake, fake.Release())
	require.NoError(t, err)

	dump, err := os.ReadFile(filepath.Join(rc.ArtifactDir, "RawExport_2024-05-10.csv"))
	require.NoError(t, err)
	require.Equal(t, rawExport, string(dump))
}

func TestRunWithBrowserAuthFailureReleases(t *testing.T) {
	t.Setenv(config.EnvEmail, "")
	t.Setenv(config.EnvPassword, "")

	cfg := testConfig(t)
	fake := &browsertest.Fake{
		// No stored session and the list page bounces to sign-in, so the
		// flow needs credentials that are not set.
		OnNavigate: func(url string) string {
			if strings.Contains(url, "appointments-list") {
				return cfg.SignInURL()
			}
			return url
		},
	}

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	rc := model.NewRunContext(date, t.TempDir())

	arts, err := RunWithBrowser(context.Background(), cfg, rc, Options{}, fake, fake, fake.Release())
	require.ErrorIs(t, err, portal.ErrAuthentication)
	require.Nil(t, arts)
	require.True(t, fake.Released)
}

func TestRunWithBrowserExportFailureReleases(t *testing.T) {
	cfg := testConfig(t)
	savedSession(t, cfg.SessionFile)
	fake := &browsertest.Fake{} // no export UI, no download

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	rc := model.NewRunContext(date, t.TempDir())

	arts, err := RunWithBrowser(context.Background(), cfg, rc, Options{}, fake, fake, fake.Release())
	require.ErrorIs(t, err, portal.ErrExport)
	require.Nil(t, arts)
	require.True(t, fake.Released)
}
