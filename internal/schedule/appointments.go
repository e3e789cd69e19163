package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"firmament/internal/availability"
	"firmament/internal/crmapi"
	"firmament/internal/events"
	"firmament/internal/model"
)

// ErrRequiredFields rejects an edit with a blank required field.
var ErrRequiredFields = errors.New("Please fill in all required fields")

// Stats summarizes a list of appointments for the dashboard.
type Stats struct {
	Total     int
	Pending   int
	Confirmed int
	Revenue   map[model.Currency]float64
}

// ComputeStats counts appointments by status and sums revenue of
// confirmed ones per currency.
func ComputeStats(appts []model.Appointment) Stats {
	s := Stats{Total: len(appts), Revenue: make(map[model.Currency]float64)}
	for i := range appts {
		switch appts[i].Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusConfirmed:
			s.Confirmed++
			s.Revenue[appts[i].Currency] += appts[i].Amount
		}
	}
	return s
}

// Dashboard loads upcoming appointments with their stats.
func (e *Editor) Dashboard(ctx context.Context) ([]model.Appointment, Stats, error) {
	appts, err := e.api.UpcomingAppointments(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("load upcoming appointments: %w", err)
	}
	return appts, ComputeStats(appts), nil
}

// Appointments lists appointments filtered by status, all when empty.
func (e *Editor) Appointments(ctx context.Context, status model.Status) ([]model.Appointment, error) {
	return e.api.Appointments(ctx, status)
}

// Appointment fetches one appointment. Callers treat crmapi.ErrNotFound as
// a redirect to the list.
func (e *Editor) Appointment(ctx context.Context, id int64) (*model.Appointment, error) {
	return e.api.Appointment(ctx, id)
}

// EditForm is the admin's editable view of an appointment.
type EditForm struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	ConsultationType string
	Duration         model.Duration
	Date             string // YYYY-MM-DD
	Time             string // HH:mm
	Status           model.Status
	Amount           float64
	Currency         model.Currency
	AdminNotes       string
}

// EditFormFrom fills a form from a stored appointment in loc.
func EditFormFrom(a *model.Appointment, loc *time.Location) EditForm {
	at := a.AppointmentDate.In(loc)
	f := EditForm{
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Email:            a.Email,
		Phone:            a.Phone,
		ConsultationType: a.ConsultationType,
		Duration:         a.Duration,
		Status:           a.Status,
		Amount:           a.Amount,
		Currency:         a.Currency,
		AdminNotes:       a.AdminNotes,
	}
	if !a.AppointmentDate.IsZero() {
		f.Date = model.FormatDate(at)
		f.Time = at.Format("15:04")
	}
	return f
}

// ChangeDate sets a new date and clears the time.
func (f *EditForm) ChangeDate(date string) {
	if date != f.Date {
		f.Time = ""
	}
	f.Date = date
}

// Validate checks that every required field is set.
func (f *EditForm) Validate() error {
	for _, v := range []string{f.FirstName, f.LastName, f.Email, f.Phone, f.ConsultationType, f.Date, f.Time} {
		if strings.TrimSpace(v) == "" {
			return ErrRequiredFields
		}
	}
	return nil
}

// Request builds the PATCH body. The timestamp carries loc's offset.
func (f *EditForm) Request(loc *time.Location) (crmapi.UpdateAppointmentRequest, error) {
	if err := f.Validate(); err != nil {
		return crmapi.UpdateAppointmentRequest{}, err
	}
	date, err := model.ParseDate(f.Date, loc)
	if err != nil {
		return crmapi.UpdateAppointmentRequest{}, err
	}
	at, err := model.At(date, f.Time, loc)
	if err != nil {
		return crmapi.UpdateAppointmentRequest{}, err
	}
	ts := at.Format(model.OffsetLayout)
	first := strings.TrimSpace(f.FirstName)
	last := strings.TrimSpace(f.LastName)
	email := strings.TrimSpace(f.Email)
	phone := strings.TrimSpace(f.Phone)
	req := crmapi.UpdateAppointmentRequest{
		FirstName:        &first,
		LastName:         &last,
		Email:            &email,
		Phone:            &phone,
		ConsultationType: &f.ConsultationType,
		AppointmentDate:  &ts,
		AdminNotes:       &f.AdminNotes,
		Amount:           &f.Amount,
	}
	if f.Duration.Valid() {
		req.Duration = &f.Duration
	}
	if f.Status.Valid() {
		req.Status = &f.Status
	}
	if f.Currency.Valid() {
		req.Currency = &f.Currency
	}
	return req, nil
}

// Save validates the form and updates the appointment.
func (e *Editor) Save(ctx context.Context, id int64, f EditForm) (*model.Appointment, error) {
	req, err := f.Request(e.loc)
	if err != nil {
		e.bus.Error(err.Error())
		return nil, err
	}
	return e.update(ctx, id, req)
}

// SetStatus changes only the status.
func (e *Editor) SetStatus(ctx context.Context, id int64, status model.Status) (*model.Appointment, error) {
	if !status.Valid() {
		err := fmt.Errorf("invalid status %q", status)
		e.bus.Error(err.Error())
		return nil, err
	}
	return e.update(ctx, id, crmapi.UpdateAppointmentRequest{Status: &status})
}

// SetNotes replaces the admin notes.
func (e *Editor) SetNotes(ctx context.Context, id int64, notes string) (*model.Appointment, error) {
	return e.update(ctx, id, crmapi.UpdateAppointmentRequest{AdminNotes: &notes})
}

func (e *Editor) update(ctx context.Context, id int64, req crmapi.UpdateAppointmentRequest) (*model.Appointment, error) {
	a, err := e.api.UpdateAppointment(ctx, id, req)
	if err != nil {
		e.logger.Error().Err(err).Int64("appointment_id", id).Msg("update appointment failed")
		var apiErr *crmapi.APIError
		if errors.As(err, &apiErr) && len(apiErr.ValidationErrors) > 0 {
			e.bus.Error(apiErr.JoinedValidation())
		} else {
			e.bus.Error(MsgUpdateFailed)
		}
		return nil, err
	}
	e.bus.Success(MsgUpdated)
	return a, nil
}

// Cancel cancels an appointment, which also frees its linked block.
func (e *Editor) Cancel(ctx context.Context, id int64) error {
	if err := e.api.CancelAppointment(ctx, id); err != nil {
		e.logger.Error().Err(err).Int64("appointment_id", id).Msg("cancel appointment failed")
		e.bus.Error(MsgCancelFailed)
		return err
	}
	e.bus.Success(MsgCancelled)
	e.bus.Publish(events.Event{Type: events.TypeBlocksChanged, AppointmentID: id})
	return nil
}

// AvailableTimes lists slot start times for date, dropping past ones when
// date is today. Load failures yield an empty list.
func (e *Editor) AvailableTimes(ctx context.Context, date string) []string {
	d, err := model.ParseDate(date, e.loc)
	if err != nil {
		return nil
	}
	day, err := e.api.DayAvailability(ctx, date, e.loc.String())
	if err != nil {
		e.logger.Warn().Err(err).Str("date", date).Msg("load day availability failed")
		return nil
	}
	return availability.FutureStartTimes(day, d, e.now().In(e.loc))
}
