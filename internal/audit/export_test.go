package audit

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"firmament/internal/model"
)

type fakeSource struct {
	appts  []model.Appointment
	blocks []model.BlockedPeriod
	err    error
}

func (f *fakeSource) Appointments(context.Context, model.Status) ([]model.Appointment, error) {
	return f.appts, f.err
}

func (f *fakeSource) BlockedPeriods(context.Context, string, string) ([]model.BlockedPeriod, error) {
	return f.blocks, nil
}

func sampleSource() *fakeSource {
	apptID := int64(2)
	return &fakeSource{
		appts: []model.Appointment{
			{ID: 2, FirstName: "Youssef", LastName: "Alami", Status: model.StatusConfirmed, Amount: 900, Currency: model.CurrencyMAD,
				Duration: model.Duration60, AppointmentDate: model.Timestamp{Time: time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)}},
			{ID: 1, FirstName: "Amina", LastName: "Benali", Status: model.StatusPending, Amount: 50, Currency: model.CurrencyCAD,
				Duration: model.Duration30, AppointmentDate: model.Timestamp{Time: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)}},
		},
		blocks: []model.BlockedPeriod{
			{ID: 10, Date: "2025-07-01", FullDay: true, Reason: model.ReasonVacation},
			{ID: 11, Date: "2025-07-02", FullDay: true, Reason: model.ReasonVacation},
			{ID: 12, Date: "2025-06-12", StartTime: "09:00", EndTime: "10:00", Reason: model.ReasonOther, AppointmentID: &apptID},
		},
	}
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	e := NewExporter(sampleSource(), time.UTC, nil)
	require.NoError(t, e.Export(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Appointments", "Blocked periods", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Appointments")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, appointmentColumns, rows[0])
	assert.Equal(t, "1", rows[1][0], "sorted by date")
	assert.Equal(t, "2025-06-10", rows[1][1])
	assert.Equal(t, "14:00", rows[1][2])
	assert.Equal(t, "Amina Benali", rows[1][4])

	rows, err = f.GetRows("Blocked periods")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2025-06-12", "2025-06-12", "09:00-10:00", "Other", "", "2"}, rows[1])
	assert.Equal(t, []string{"2025-07-01", "2025-07-02", "full day", "Vacation"}, rows[2])

	rows, err = f.GetRows("Summary")
	require.NoError(t, err)
	assert.Contains(t, rows, []string{"Confirmed", "1"})
	assert.Contains(t, rows, []string{"Revenue MAD", "900 MAD"})
	assert.Contains(t, rows, []string{"Revenue CAD", "0 CAD"})
}

func TestExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "appointments_2025-06-10.xlsx", filepath.Base(path))

	e := NewExporter(sampleSource(), time.UTC, nil)
	require.NoError(t, e.ExportToFile(context.Background(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	f.Close()

	failing := NewExporter(&fakeSource{err: errors.New("down")}, time.UTC, nil)
	bad := filepath.Join(t.TempDir(), "bad.xlsx")
	assert.Error(t, failing.ExportToFile(context.Background(), bad))
	assert.NoFileExists(t, bad)
}

func TestSheetNameTruncated(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()
	require.NoError(t, w.AddSheet("An extremely long sheet name that Excel rejects"))
	require.NoError(t, w.WriteHeader([]string{"a"}))
	assert.ErrorIs(t, (&ExcelizeWriter{}).WriteRow([]any{1}), errNoSheet)
}
