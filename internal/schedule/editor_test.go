package schedule

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firmament/internal/crmapi"
	"firmament/internal/events"
	"firmament/internal/model"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) MonthAvailability(ctx context.Context, year, month int, tz string) (model.MonthAvailability, error) {
	args := m.Called(ctx, year, month, tz)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.MonthAvailability), args.Error(1)
}
func (m *mockAPI) DayAvailability(ctx context.Context, date, tz string) (*model.DayAvailability, error) {
	args := m.Called(ctx, date, tz)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DayAvailability), args.Error(1)
}
func (m *mockAPI) BlockedPeriods(ctx context.Context, s, e string) ([]model.BlockedPeriod, error) {
	args := m.Called(ctx, s, e)
	return args.Get(0).([]model.BlockedPeriod), args.Error(1)
}
func (m *mockAPI) Block(ctx context.Context, req crmapi.BlockRequest) error { return m.Called(ctx, req).Error(0) }
func (m *mockAPI) Unblock(ctx context.Context, id int64) error { return m.Called(ctx, id).Error(0) }
func (m *mockAPI) UpcomingAppointments(ctx context.Context) ([]model.Appointment, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Appointment), args.Error(1)
}
func (m *mockAPI) Appointments(ctx context.Context, s model.Status) ([]model.Appointment, error) {
	args := m.Called(ctx, s)
	return args.Get(0).([]model.Appointment), args.Error(1)
}
func (m *mockAPI) Appointment(ctx context.Context, id int64) (*model.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Appointment), args.Error(1)
}
func (m *mockAPI) UpdateAppointment(ctx context.Context, id int64, req crmapi.UpdateAppointmentRequest) (*model.Appointment, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Appointment), args.Error(1)
}
func (m *mockAPI) CancelAppointment(ctx context.Context, id int64) error { return m.Called(ctx, id).Error(0) }
func (m *mockAPI) Documents(ctx context.Context, id int64) ([]model.Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]model.Document), args.Error(1)
}
func (m *mockAPI) DownloadDocument(ctx context.Context, id int64, w io.Writer) (int64, error) {
	args := m.Called(ctx, id, w)
	n, _ := io.WriteString(w, args.String(0))
	return int64(n), args.Error(1)
}
func (m *mockAPI) DeleteDocument(ctx context.Context, id int64) error { return m.Called(ctx, id).Error(0) }
func (m *mockAPI) UploadDocuments(ctx context.Context, id int64, files []model.Attachment) error {
	return m.Called(ctx, id, files).Error(0)
}

func newEditor(t *testing.T) (*Editor, *mockAPI, *events.Collector) {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	api := &mockAPI{}
	bus := events.NewBus()
	notices := events.NewCollector(bus)
	e := NewEditor(api, bus, loc, nil)
	e.now = func() time.Time { return time.Date(2025, 6, 10, 10, 30, 0, 0, loc) }
	return e, api, notices
}

func messages(c *events.Collector) []string {
	var out []string
	for _, n := range c.Drain() {
		out = append(out, n.Message)
	}
	return out
}

func TestEditorBlock(t *testing.T) {
	ctx := context.Background()
	e, api, notices := newEditor(t)

	api.On("Block", ctx, crmapi.BlockRequest{
		Date: "2025-06-12", StartTime: "09:00", EndTime: "11:00",
		Reason: model.ReasonMeeting, Timezone: "America/Toronto",
	}).Return(nil).Once()

	require.NoError(t, e.Block(ctx, BlockForm{Date: "2025-06-12", StartTime: "9:00", EndTime: "11:00", Reason: model.ReasonMeeting}))
	assert.Equal(t, []string{MsgBlocked}, messages(notices))

	err := e.Block(ctx, BlockForm{Date: "2025-06-09"})
	assert.ErrorIs(t, err, ErrDateInPast)
	assert.Equal(t, []string{ErrDateInPast.Error()}, messages(notices))

	api.On("Block", ctx, mock.Anything).Return(errors.New("boom")).Once()
	assert.Error(t, e.Block(ctx, BlockForm{Date: "2025-06-13"}))
	assert.Equal(t, []string{MsgBlockFailed}, messages(notices))
	api.AssertExpectations(t)
}

func TestEditorUnblockRange(t *testing.T) {
	ctx := context.Background()
	changed := 0

	t.Run("all removed", func(t *testing.T) {
		e, api, notices := newEditor(t)
		e.bus.Subscribe(events.TypeBlocksChanged, func(events.Event) { changed++ })
		groups := GroupBlockedPeriods([]model.BlockedPeriod{vacation(1, "2025-06-10"), vacation(2, "2025-06-11")})
		api.On("Unblock", ctx, int64(1)).Return(nil).Once()
		api.On("Unblock", ctx, int64(2)).Return(nil).Once()

		res := e.Unblock(ctx, groups[0])
		assert.NoError(t, res.Err())
		assert.Equal(t, []int64{1, 2}, res.Removed)
		assert.Equal(t, []string{MsgUnblocked}, messages(notices))
		assert.Equal(t, 1, changed)
		api.AssertExpectations(t)
	})

	t.Run("partial failure is reported", func(t *testing.T) {
		e, api, notices := newEditor(t)
		groups := GroupBlockedPeriods([]model.BlockedPeriod{vacation(1, "2025-06-10"), vacation(2, "2025-06-11"), vacation(3, "2025-06-12")})
		api.On("Unblock", ctx, int64(1)).Return(nil).Once()
		api.On("Unblock", ctx, int64(2)).Return(errors.New("boom")).Once()
		api.On("Unblock", ctx, int64(3)).Return(nil).Once()

		res := e.Unblock(ctx, groups[0])
		assert.True(t, res.Partial())
		assert.Equal(t, []int64{1, 3}, res.Removed)
		assert.Contains(t, res.Failed, int64(2))
		assert.ErrorContains(t, res.Err(), "block 2")
		assert.Equal(t, []string{"Unblocked 2 of 3 days; 1 failed"}, messages(notices))
		api.AssertExpectations(t)
	})

	t.Run("all failed", func(t *testing.T) {
		e, api, notices := newEditor(t)
		groups := GroupBlockedPeriods([]model.BlockedPeriod{vacation(1, "2025-06-10")})
		api.On("Unblock", ctx, int64(1)).Return(errors.New("boom")).Once()

		res := e.Unblock(ctx, groups[0])
		assert.False(t, res.Partial())
		assert.Error(t, res.Err())
		assert.Equal(t, []string{MsgUnblockFailed}, messages(notices))
	})

	t.Run("linked block refused", func(t *testing.T) {
		e, api, notices := newEditor(t)
		id := int64(9)
		b := vacation(4, "2025-06-10")
		b.AppointmentID = &id
		groups := GroupBlockedPeriods([]model.BlockedPeriod{b})

		res := e.Unblock(ctx, groups[0])
		assert.ErrorIs(t, res.Err(), ErrLinkedBlock)
		assert.Empty(t, res.Removed)
		assert.Equal(t, []string{MsgLinkedBlock}, messages(notices))
		api.AssertNotCalled(t, "Unblock", mock.Anything, mock.Anything)
	})
}

func TestComputeStats(t *testing.T) {
	appts := []model.Appointment{
		{Status: model.StatusPending, Amount: 50, Currency: model.CurrencyCAD},
		{Status: model.StatusConfirmed, Amount: 90, Currency: model.CurrencyCAD},
		{Status: model.StatusConfirmed, Amount: 130, Currency: model.CurrencyCAD},
		{Status: model.StatusConfirmed, Amount: 900, Currency: model.CurrencyMAD},
		{Status: model.StatusCancelled, Amount: 500, Currency: model.CurrencyMAD},
	}
	s := ComputeStats(appts)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 3, s.Confirmed)
	assert.Equal(t, map[model.Currency]float64{model.CurrencyCAD: 220, model.CurrencyMAD: 900}, s.Revenue)
}

func TestEditFormRequest(t *testing.T) {
	e, _, _ := newEditor(t)
	stored := &model.Appointment{
		ID: 3, FirstName: "Amina", LastName: "Benali", Email: "a@example.com", Phone: "+1 514 000",
		ConsultationType: "Autre", Duration: model.Duration60, Status: model.StatusPending,
		Amount: 90, Currency: model.CurrencyCAD,
		AppointmentDate: model.Timestamp{Time: time.Date(2025, 6, 12, 14, 0, 0, 0, time.UTC)},
	}

	f := EditFormFrom(stored, e.Location())
	assert.Equal(t, "2025-06-12", f.Date)
	assert.Equal(t, "10:00", f.Time)

	f.ChangeDate("2025-06-12")
	assert.Equal(t, "10:00", f.Time)
	f.ChangeDate("2025-12-01")
	assert.Empty(t, f.Time)
	assert.ErrorIs(t, f.Validate(), ErrRequiredFields)

	f.Time = "9:30"
	req, err := f.Request(e.Location())
	require.NoError(t, err)
	assert.Equal(t, "2025-12-01T09:30:00-05:00", *req.AppointmentDate)
	assert.Equal(t, model.Duration60, *req.Duration)
	assert.Equal(t, 90.0, *req.Amount)
	assert.Equal(t, model.StatusPending, *req.Status)
}

func TestEditorSaveReportsValidation(t *testing.T) {
	ctx := context.Background()
	e, api, notices := newEditor(t)
	f := EditForm{FirstName: "A", LastName: "B", Email: "bad", Phone: "1", ConsultationType: "Autre", Date: "2025-06-12", Time: "10:00"}

	api.On("UpdateAppointment", ctx, int64(3), mock.Anything).Return(nil, &crmapi.APIError{
		Status: 400, ValidationErrors: map[string]string{"email": "must be a valid email"},
	}).Once()
	_, err := e.Save(ctx, 3, f)
	assert.ErrorIs(t, err, crmapi.ErrValidation)
	assert.Equal(t, []string{"must be a valid email"}, messages(notices))

	_, err = e.Save(ctx, 3, EditForm{})
	assert.ErrorIs(t, err, ErrRequiredFields)
	assert.Equal(t, []string{ErrRequiredFields.Error()}, messages(notices))
}

func TestEditorStatusAndCancel(t *testing.T) {
	ctx := context.Background()
	e, api, notices := newEditor(t)
	confirmed := model.StatusConfirmed

	api.On("UpdateAppointment", ctx, int64(3), crmapi.UpdateAppointmentRequest{Status: &confirmed}).
		Return(&model.Appointment{ID: 3, Status: confirmed}, nil).Once()
	a, err := e.SetStatus(ctx, 3, confirmed)
	require.NoError(t, err)
	assert.Equal(t, confirmed, a.Status)

	_, err = e.SetStatus(ctx, 3, "DONE")
	assert.Error(t, err)

	api.On("CancelAppointment", ctx, int64(3)).Return(nil).Once()
	require.NoError(t, e.Cancel(ctx, 3))
	api.On("CancelAppointment", ctx, int64(4)).Return(crmapi.ErrNotFound).Once()
	assert.ErrorIs(t, e.Cancel(ctx, 4), crmapi.ErrNotFound)

	assert.Equal(t, []string{MsgUpdated, `invalid status "DONE"`, MsgCancelled, MsgCancelFailed}, messages(notices))
	api.AssertExpectations(t)
}

func TestEditorAvailableTimes(t *testing.T) {
	ctx := context.Background()
	e, api, _ := newEditor(t)
	day := &model.DayAvailability{Date: "2025-06-10", Slots: []model.Slot{
		{StartTime: "09:00", Available30: true},
		{StartTime: "10:30"},
		{StartTime: "11:00"},
	}}
	api.On("DayAvailability", ctx, "2025-06-10", "America/Toronto").Return(day, nil)
	api.On("DayAvailability", ctx, "2025-06-11", "America/Toronto").Return(nil, errors.New("down"))

	assert.Equal(t, []string{"11:00"}, e.AvailableTimes(ctx, "2025-06-10"))
	assert.Empty(t, e.AvailableTimes(ctx, "2025-06-11"))
	assert.Empty(t, e.AvailableTimes(ctx, "not-a-date"))
}

func TestEditorDocuments(t *testing.T) {
	ctx := context.Background()
	e, api, notices := newEditor(t)

	var buf bytes.Buffer
	api.On("DownloadDocument", ctx, int64(5), &buf).Return("%PDF", nil).Once()
	n, err := e.Download(ctx, 5, &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, "%PDF", buf.String())

	api.On("DeleteDocument", ctx, int64(5)).Return(nil).Once()
	api.On("DeleteDocument", ctx, int64(6)).Return(errors.New("boom")).Once()
	require.NoError(t, e.DeleteDocument(ctx, 5))
	assert.Error(t, e.DeleteDocument(ctx, 6))

	good := model.Attachment{Name: "id.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	bad := model.Attachment{Name: "notes.txt", ContentType: "text/plain", Data: []byte("x")}
	api.On("UploadDocuments", ctx, int64(3), []model.Attachment{good}).Return(nil).Once()
	rejected, err := e.UploadDocuments(ctx, 3, []model.Attachment{good, bad})
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	assert.Equal(t, []string{MsgDocDeleted, MsgDocDeleteFail, "unsupported file type: notes.txt", MsgDocsUploaded}, messages(notices))
	api.AssertExpectations(t)
}
