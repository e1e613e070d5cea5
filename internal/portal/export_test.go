package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"apptsheet/internal/browser/browsertest"
	"apptsheet/internal/config"
)

func TestExportReportDownloadsCSV(t *testing.T) {
	cfg := config.DefaultConfig()
	raw := []byte("Referência,Cliente\nR1,Ana Silva\n")

	fake := &browsertest.Fake{
		Visible: map[string]bool{
			`//button[contains(., 'Exportar')]`: true,
			`//li[contains(., 'CSV')]`:          true,
		},
		Downloads: [][]byte{raw},
	}

	date := mustDate(t, "2024-05-10")
	data, err := ExportReport(context.Background(), fake, cfg, date)
	require.NoError(t, err)
	require.Equal(t, raw, data)

	// The report view was opened date-scoped.
	require.Equal(t, "navigate", fake.Calls[0].Op)
	require.Contains(t, fake.Calls[0].Arg, "report-date-from=2024-05-10")
	require.Contains(t, fake.Calls[0].Arg, "report-date-to=2024-05-10")
}

func TestExportReportLocaleFallbackTrigger(t *testing.T) {
	cfg := config.DefaultConfig()

	fake := &browsertest.Fake{
		Visible: map[string]bool{
			`//button[contains(., 'Export')]`:           true,
			`//*[@role='menuitem'][contains(., 'CSV')]`: true,
		},
		Downloads: [][]byte{[]byte("Ref,Client\n")},
	}

	_, err := ExportReport(context.Background(), fake, cfg, mustDate(t, "2024-05-10"))
	require.NoError(t, err)
}

func TestExportReportMissingTriggerIsFatal(t *testing.T) {
	cfg := config.DefaultConfig()
	fake := &browsertest.Fake{}

	_, err := ExportReport(context.Background(), fake, cfg, mustDate(t, "2024-05-10"))
	require.ErrorIs(t, err, ErrExport)
}

func TestExportReportMissingDownloadIsFatal(t *testing.T) {
	cfg := config.DefaultConfig()
	fake := &browsertest.Fake{
		Visible: map[string]bool{
			`//button[contains(., 'Exportar')]`: true,
			`//li[contains(., 'CSV')]`:          true,
		},
	}

	_, err := ExportReport(context.Background(), fake, cfg, mustDate(t, "2024-05-10"))
	require.ErrorIs(t, err, ErrExport)
}
