package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"firmament/internal/availability"
	"firmament/internal/crmapi"
	"firmament/internal/events"
	"firmament/internal/metrics"
	"firmament/internal/model"
	"firmament/internal/pricing"
)

var (
	ErrWrongStep            = errors.New("action not available at this step")
	ErrDateUnavailable      = errors.New("date is not available")
	ErrNoDate               = errors.New("select a date first")
	ErrTimeUnavailable      = errors.New("time is not available")
	ErrNoTime               = errors.New("select a time first")
	ErrDurationIncompatible = errors.New("duration is not available at the selected time")
	ErrInvalidDuration      = errors.New("duration must be 30, 60 or 90 minutes")
	ErrInvalidCurrency      = errors.New("currency must be CAD or MAD")
	ErrUnknownType          = errors.New("unknown consultation type")
	ErrPresentationTooLong  = errors.New("presentation exceeds 1000 characters")
	ErrIncomplete           = errors.New("booking is incomplete")
	ErrLocked               = errors.New("appointment already created")
)

// API is the part of the REST client used by the wizard.
type API interface {
	CreateAppointment(ctx context.Context, req crmapi.CreateAppointmentRequest) (*model.Appointment, error)
	UploadDocuments(ctx context.Context, appointmentID int64, files []model.Attachment) error
	CreatePaymentIntent(ctx context.Context, appointmentID int64) (string, error)
	ConfirmPayment(ctx context.Context, appointmentID int64, paymentIntentID string) error
}

// Options configures a wizard.
type Options struct {
	// Location is the user's zone. It defines "today" and the offset of the
	// submitted timestamp.
	Location          *time.Location
	Prices            pricing.Table
	ConsultationTypes []string
	DefaultCurrency   model.Currency
	Now               func() time.Time
}

// State is a snapshot of the wizard.
type State struct {
	Step            Step
	SelectedDate    time.Time
	SelectedTime    string
	Duration        model.Duration
	Currency        model.Currency
	Draft           model.AppointmentDraft
	AppointmentID   int64
	PaymentSecret   string
	PaymentIntentID string
}

// HasDate reports whether a date is selected.
func (s State) HasDate() bool { return !s.SelectedDate.IsZero() }

// Wizard drives one booking. It is not safe for concurrent use; front ends
// serialize input per user.
type Wizard struct {
	api    API
	cache  *availability.Cache
	bus    *events.Bus
	logger *zerolog.Logger
	opts   Options

	state     State
	viewYear  int
	viewMonth time.Month
}

// NewWizard creates a wizard on the date and time step, displaying the
// current month.
func NewWizard(api API, cache *availability.Cache, bus *events.Bus, opts Options, logger *zerolog.Logger) *Wizard {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Prices == nil {
		opts.Prices = pricing.Default()
	}
	if len(opts.ConsultationTypes) == 0 {
		opts.ConsultationTypes = model.DefaultConsultationTypes
	}
	if !opts.DefaultCurrency.Valid() {
		opts.DefaultCurrency = model.CurrencyCAD
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	w := &Wizard{api: api, cache: cache, bus: bus, logger: logger, opts: opts}
	w.reset()
	return w
}

func (w *Wizard) reset() {
	today := w.today()
	w.state = State{Step: StepDateTime, Currency: w.opts.DefaultCurrency}
	w.viewYear, w.viewMonth = today.Year(), today.Month()
	if w.cache != nil {
		w.cache.ClearDay()
	}
}

// Reset discards all selections and returns to the first step.
func (w *Wizard) Reset() { w.reset() }

// State returns a copy of the wizard state.
func (w *Wizard) State() State {
	s := w.state
	s.Draft.Documents = append([]model.Attachment(nil), w.state.Draft.Documents...)
	return s
}

// Step returns the current step.
func (w *Wizard) Step() Step { return w.state.Step }

// ConsultationTypes returns the offered consultation types.
func (w *Wizard) ConsultationTypes() []string { return w.opts.ConsultationTypes }

// Location returns the user's zone.
func (w *Wizard) Location() *time.Location { return w.opts.Location }

func (w *Wizard) now() time.Time { return w.opts.Now().In(w.opts.Location) }

func (w *Wizard) today() time.Time { return model.DateOnly(w.now()) }

// Start loads availability for the displayed month.
func (w *Wizard) Start(ctx context.Context) model.MonthAvailability {
	return w.cache.LoadMonth(ctx, w.viewYear, w.viewMonth)
}

// ViewMonth returns the displayed month.
func (w *Wizard) ViewMonth() (int, time.Month) { return w.viewYear, w.viewMonth }

// ShowMonth moves the calendar by delta months and reloads availability.
func (w *Wizard) ShowMonth(ctx context.Context, delta int) model.MonthAvailability {
	w.viewYear, w.viewMonth = availability.ShiftMonth(w.viewYear, w.viewMonth, delta)
	return w.cache.LoadMonth(ctx, w.viewYear, w.viewMonth)
}

// Calendar returns the grid of the displayed month.
func (w *Wizard) Calendar() []availability.CalendarDay {
	avail := w.monthAvailability()
	return availability.CalendarDays(w.viewYear, w.viewMonth, avail, w.today())
}

func (w *Wizard) monthAvailability() model.MonthAvailability {
	y, m, avail := w.cache.Month()
	if y != w.viewYear || m != w.viewMonth {
		return model.MonthAvailability{}
	}
	return avail
}

// Day returns the availability of the selected date, or nil.
func (w *Wizard) Day() *model.DayAvailability {
	if !w.state.HasDate() {
		return nil
	}
	day := w.cache.Day()
	if day == nil || day.Date != model.FormatDate(w.state.SelectedDate) {
		return nil
	}
	return day
}

// SelectDate picks a calendar date and loads its slots. Dates outside the
// displayed month switch the calendar to their month first.
func (w *Wizard) SelectDate(ctx context.Context, date time.Time) error {
	if w.state.Step != StepDateTime {
		return ErrWrongStep
	}
	y, m, d := date.Date()
	date = time.Date(y, m, d, 0, 0, 0, 0, w.opts.Location)
	if y != w.viewYear || m != w.viewMonth {
		w.viewYear, w.viewMonth = y, m
		w.cache.LoadMonth(ctx, y, m)
	}
	if !availability.IsDateAvailable(date, w.monthAvailability(), w.today()) {
		return fmt.Errorf("%w: %s", ErrDateUnavailable, model.FormatDate(date))
	}
	w.state.SelectedDate = date
	w.state.SelectedTime = ""
	w.cache.LoadDay(ctx, date)
	return nil
}

// SelectableTimes lists the slots the user may pick on the selected date.
func (w *Wizard) SelectableTimes() []model.Slot {
	if !w.state.HasDate() {
		return nil
	}
	return availability.SelectableTimes(w.Day(), w.state.SelectedDate, w.now())
}

// SelectTime picks a start time. A previously chosen duration that does not
// fit the new time is cleared.
func (w *Wizard) SelectTime(clock string) error {
	if w.state.Step != StepDateTime {
		return ErrWrongStep
	}
	if !w.state.HasDate() {
		return ErrNoDate
	}
	norm, err := model.NormalizeClock(clock)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTimeUnavailable, err)
	}
	found := false
	for _, s := range w.SelectableTimes() {
		if s.StartTime == norm {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTimeUnavailable, norm)
	}
	w.state.SelectedTime = norm
	if w.state.Duration != 0 && !availability.Contains(availability.TimesFor(w.Day(), w.state.Duration), norm) {
		w.state.Duration = 0
	}
	return nil
}

// DurationOption is a duration button: its price and whether the selected
// time supports it.
type DurationOption struct {
	Duration model.Duration
	Price    float64
	Enabled  bool
	Selected bool
}

// DurationOptions pre-computes, for each duration, whether the selected
// time belongs to that duration's available times.
func (w *Wizard) DurationOptions() []DurationOption {
	day := w.Day()
	out := make([]DurationOption, 0, len(model.Durations))
	for _, d := range model.Durations {
		out = append(out, DurationOption{
			Duration: d,
			Price:    w.opts.Prices.Price(w.state.Currency, d),
			Enabled:  w.state.SelectedTime != "" && availability.Contains(availability.TimesFor(day, d), w.state.SelectedTime),
			Selected: w.state.Duration == d,
		})
	}
	return out
}

// SelectDuration picks a duration. It is rejected unless the selected time
// supports it.
func (w *Wizard) SelectDuration(d model.Duration) error {
	if w.state.Step != StepDuration {
		return ErrWrongStep
	}
	if !d.Valid() {
		return ErrInvalidDuration
	}
	if w.state.SelectedTime == "" {
		return ErrNoTime
	}
	if !availability.Contains(availability.TimesFor(w.Day(), d), w.state.SelectedTime) {
		return fmt.Errorf("%w: %d minutes at %s", ErrDurationIncompatible, int(d), w.state.SelectedTime)
	}
	w.state.Duration = d
	return nil
}

// SelectCurrency changes the billing currency until the appointment exists.
func (w *Wizard) SelectCurrency(c model.Currency) error {
	if !c.Valid() {
		return ErrInvalidCurrency
	}
	if w.state.AppointmentID != 0 || w.state.Step > StepConfirm {
		return ErrLocked
	}
	w.state.Currency = c
	return nil
}

// Total is the price of the selected currency and duration, 0 without a
// duration.
func (w *Wizard) Total() float64 {
	return w.opts.Prices.Price(w.state.Currency, w.state.Duration)
}

// Preselect sets the consultation type when it belongs to the catalog.
func (w *Wizard) Preselect(consultationType string) bool {
	if !w.knownType(consultationType) {
		return false
	}
	w.state.Draft.ConsultationType = consultationType
	return true
}

func (w *Wizard) knownType(t string) bool {
	for _, ct := range w.opts.ConsultationTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// SetField assigns an intake form field on the info step.
func (w *Wizard) SetField(f model.Field, value string) error {
	if w.state.Step != StepInfo {
		return ErrWrongStep
	}
	switch f {
	case model.FieldConsultationType:
		if value != "" && !w.knownType(value) {
			return fmt.Errorf("%w: %q", ErrUnknownType, value)
		}
	case model.FieldClientPresentation:
		if utf8.RuneCountInString(value) > model.MaxPresentationLength {
			return ErrPresentationTooLong
		}
	}
	if !w.state.Draft.Set(f, value) {
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}

// MsgDocumentsLocked is notified when files arrive after the appointment
// was created.
const MsgDocumentsLocked = "Documents can no longer be changed for this booking"

// DocumentsLocked reports whether the document list is frozen. Files are
// uploaded once, when the appointment is created.
func (w *Wizard) DocumentsLocked() bool {
	return w.state.AppointmentID != 0 || w.state.Step > StepConfirm
}

// AddDocuments attaches files, skipping invalid ones. Each rejection is
// returned and notified with a message distinguishing size from type.
func (w *Wizard) AddDocuments(files ...model.Attachment) []error {
	if len(files) > 0 && w.DocumentsLocked() {
		w.bus.Error(MsgDocumentsLocked)
		return []error{ErrLocked}
	}
	var errs []error
	for _, f := range files {
		if err := ValidateAttachment(f); err != nil {
			reason := "type"
			if errors.Is(err, ErrFileTooLarge) {
				reason = "size"
			}
			metrics.IncDocumentRejected(reason)
			w.bus.Error(err.Error())
			errs = append(errs, err)
			continue
		}
		if f.Size == 0 {
			f.Size = int64(len(f.Data))
		}
		w.state.Draft.Documents = append(w.state.Draft.Documents, f)
	}
	return errs
}

// RemoveDocument drops the attachment at index i.
func (w *Wizard) RemoveDocument(i int) error {
	if w.DocumentsLocked() {
		return ErrLocked
	}
	docs := w.state.Draft.Documents
	if i < 0 || i >= len(docs) {
		return fmt.Errorf("no document at position %d", i+1)
	}
	w.state.Draft.Documents = append(docs[:i:i], docs[i+1:]...)
	return nil
}

// CanProceed evaluates the guard of the current step.
func (w *Wizard) CanProceed() bool {
	switch w.state.Step {
	case StepDateTime:
		return w.state.HasDate() && w.state.SelectedTime != ""
	case StepDuration:
		return w.state.Duration != 0
	case StepInfo:
		return w.state.Draft.Complete()
	case StepConfirm:
		return true
	default:
		return false
	}
}

// Next advances from steps 1-3 when the guard holds. Confirm advances only
// through Submit.
func (w *Wizard) Next() bool {
	if w.state.Step >= StepConfirm || !w.CanProceed() {
		return false
	}
	return w.moveTo(w.state.Step + 1)
}

// Back returns to the previous step from steps 2-4, until an appointment
// has been created.
func (w *Wizard) Back() bool {
	if w.state.AppointmentID != 0 {
		return false
	}
	if w.state.Step <= StepDateTime || w.state.Step > StepConfirm {
		return false
	}
	return w.moveTo(w.state.Step - 1)
}

func (w *Wizard) moveTo(to Step) bool {
	if !CanTransition(w.state.Step, to) {
		return false
	}
	w.logger.Debug().Str("from", w.state.Step.String()).Str("to", to.String()).Msg("wizard transition")
	w.state.Step = to
	return true
}
