package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmament/internal/availability"
	"firmament/internal/booking"
	"firmament/internal/events"
	"firmament/internal/model"
)

type fakeSource struct{}

func (fakeSource) MonthAvailability(_ context.Context, _, month int, _ string) (model.MonthAvailability, error) {
	if month == 6 {
		return model.MonthAvailability{10: true, 11: true}, nil
	}
	return nil, errors.New("no data")
}

func (fakeSource) DayAvailability(_ context.Context, date, _ string) (*model.DayAvailability, error) {
	return &model.DayAvailability{Date: date, Slots: []model.Slot{
		{StartTime: "09:00", Available30: true},
		{StartTime: "10:00", Available30: true, Available60: true},
		{StartTime: "11:00", Available30: true},
	}}, nil
}

func newSession(t *testing.T, input string) (*Console, *booking.Wizard, *bytes.Buffer) {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	bus := events.NewBus()
	notices := events.NewCollector(bus)
	cache := availability.NewCache(fakeSource{}, loc, nil)
	w := booking.NewWizard(nil, cache, bus, booking.Options{
		Location: loc,
		Now:      func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, loc) },
	}, nil)
	var out bytes.Buffer
	return New(strings.NewReader(input), &out, booking.NewHandler(nil), w, notices, nil), w, &out
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReadAttachmentSniffsType(t *testing.T) {
	pdf := writeFile(t, "passport.pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"))
	a, err := ReadAttachment(pdf)
	require.NoError(t, err)
	assert.Equal(t, "passport.pdf", a.Name)
	assert.Equal(t, "application/pdf", a.ContentType)
	assert.EqualValues(t, len(a.Data), a.Size)

	txt := writeFile(t, "renamed.pdf", []byte("plain words"))
	a, err = ReadAttachment(txt)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", a.ContentType, "content wins over extension")

	_, err = ReadAttachment(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadAttachmentRejectsLargeFileBeforeReading(t *testing.T) {
	path := writeFile(t, "scan.pdf", nil)
	require.NoError(t, os.Truncate(path, booking.MaxDocumentSize+1))

	_, err := ReadAttachment(path)
	require.ErrorIs(t, err, booking.ErrFileTooLarge)
	assert.Contains(t, err.Error(), "scan.pdf exceeds the maximum size of 10MB")
}

func TestRunSession(t *testing.T) {
	pdf := writeFile(t, "id.pdf", []byte("%PDF-1.4\n%%EOF\n"))
	txt := writeFile(t, "notes.txt", []byte("hello"))

	// Options are numbered in order: month arrows, selectable days, then times.
	input := strings.Join([]string{
		"3",
		"6",
		"/attach " + pdf + " " + txt,
		"/help",
		"/quit",
	}, "\n")
	c, w, out := newSession(t, input)
	require.NoError(t, c.Run(context.Background()))

	st := w.State()
	assert.Equal(t, "2025-06-10", model.FormatDate(st.SelectedDate))
	assert.Equal(t, "10:00", st.SelectedTime)
	require.Len(t, st.Draft.Documents, 1)
	assert.Equal(t, "id.pdf", st.Draft.Documents[0].Name)

	text := out.String()
	assert.Contains(t, text, "Step 1/6: Date and time")
	assert.Contains(t, text, "[1] «")
	assert.Contains(t, text, "Attached 1 file(s).")
	assert.Contains(t, text, "✖ unsupported file type: notes.txt")
	assert.Contains(t, text, "/attach PATH")
}

func TestRunStopsAtEOF(t *testing.T) {
	c, w, _ := newSession(t, "date:2025-06-11\n")
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, "2025-06-11", model.FormatDate(w.State().SelectedDate))
}

func TestResolveIgnoresOutOfRange(t *testing.T) {
	c := &Console{options: []booking.Option{{Data: "time:09:00"}}}
	assert.Equal(t, "time:09:00", c.resolve("1"))
	assert.Equal(t, "2", c.resolve("2"))
	assert.Equal(t, "60", c.resolve("60"))
}
