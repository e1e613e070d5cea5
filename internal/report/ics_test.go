package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"apptsheet/internal/model"
)

func consolidated(ref, client, date, slot, service, phone string) model.ConsolidatedRow {
	return model.ConsolidatedRow{
		AppointmentRow: model.AppointmentRow{
			Reference:  ref,
			ClientName: client,
			Date:       date,
			TimeSlot:   slot,
			Service:    service,
		},
		PhoneNumber: phone,
	}
}

func TestRenderICS(t *testing.T) {
	rc := testRunContext(t)
	rows := []model.ConsolidatedRow{
		consolidated("R1", "Maria Silva", "2024-05-10", "09:00", "Corte", "351912345678"),
		consolidated("R2", "Ana Costa", "10/05/2024", "10:30", "Manicure", "351911111111"),
		consolidated("R3", "João Pires", "2024-05-10", "soon", "Barba", "351922222222"),
	}

	data, count := RenderICS(rc, rows)
	require.Equal(t, 2, count)

	feed := string(data)
	require.Contains(t, feed, "BEGIN:VCALENDAR")
	require.Equal(t, 2, strings.Count(feed, "BEGIN:VEVENT"))
	require.Contains(t, feed, "UID:R1@apptsheet")
	require.Contains(t, feed, "Corte: Maria Silva")
	require.NotContains(t, feed, "João")
}

func TestSlotStart(t *testing.T) {
	start, ok := slotStart("2024-05-10", "09:00")
	require.True(t, ok)
	require.Equal(t, 9, start.Hour())
	require.Equal(t, 10, start.Day())

	start, ok = slotStart("10/05/2024", "9:05 AM")
	require.True(t, ok)
	require.Equal(t, 9, start.Hour())
	require.Equal(t, 5, start.Minute())

	_, ok = slotStart("tomorrow", "09:00")
	require.False(t, ok)

	_, ok = slotStart("2024-05-10", "")
	require.False(t, ok)
}

func TestWriteICS(t *testing.T) {
	rc := testRunContext(t)
	path := filepath.Join(rc.ArtifactDir, "Appointments_"+rc.DateStamp()+".ics")
	rows := []model.ConsolidatedRow{
		consolidated("R1", "Maria Silva", "2024-05-10", "09:00", "Corte", "351912345678"),
	}

	require.NoError(t, WriteICS(rc, rows, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "END:VCALENDAR")
}
