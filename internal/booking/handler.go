package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"firmament/internal/availability"
	"firmament/internal/model"
	"firmament/internal/payment"
	"firmament/internal/pricing"
)

// Option is a selectable choice; Data is the input token that picks it.
type Option struct {
	Label   string
	Data    string
	Enabled bool
}

// TransitionResult is the outcome of one input.
type TransitionResult struct {
	Step    Step
	Message string
	Options [][]Option
	Error   error
}

// NoopData marks options that only decorate a keyboard.
const NoopData = "noop"

// Handler turns text tokens into wizard operations so any front end can
// drive a booking. Tokens: date:YYYY-MM-DD, time:HH:MM, month:+1, dur:60,
// cur:CAD, type:N, set:field=value, doc:rm:N, pay:pm_..., /next, /back,
// /submit, /restart. Bare values are accepted where the step makes them
// unambiguous.
type Handler struct {
	payments payment.Provider
}

// NewHandler creates a handler. payments may be nil when the front end
// never reaches the payment step.
func NewHandler(payments payment.Provider) *Handler {
	return &Handler{payments: payments}
}

// HandleInput applies input to w and renders the resulting step.
func (h *Handler) HandleInput(ctx context.Context, w *Wizard, input string) TransitionResult {
	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)

	var err error
	switch {
	case lower == "" || lower == NoopData || lower == "/start":
	case lower == "/restart" || lower == "/cancel":
		w.Reset()
		w.Start(ctx)
	case lower == "/back" || lower == "back":
		if !w.Back() {
			err = errors.New("cannot go back from this step")
		}
	case lower == "/next" || lower == "next":
		err = h.next(w)
	case lower == "/submit" || lower == "/confirm":
		err = w.Submit(ctx)
	case strings.HasPrefix(lower, "month:"):
		err = h.month(ctx, w, input[len("month:"):])
	case strings.HasPrefix(lower, "date:"):
		err = h.date(ctx, w, input[len("date:"):])
	case strings.HasPrefix(lower, "time:"):
		err = w.SelectTime(input[len("time:"):])
	case strings.HasPrefix(lower, "dur:"):
		err = h.duration(w, input[len("dur:"):])
	case strings.HasPrefix(lower, "cur:"):
		err = h.currency(w, input[len("cur:"):])
	case strings.HasPrefix(lower, "type:"):
		err = h.consultationType(w, input[len("type:"):])
	case strings.HasPrefix(lower, "set:"):
		err = h.set(w, input[len("set:"):])
	case strings.HasPrefix(lower, "doc:rm:"):
		err = h.removeDocument(w, input[len("doc:rm:"):])
	case strings.HasPrefix(lower, "pay:"):
		err = h.pay(ctx, w, input[len("pay:"):])
	default:
		err = h.bare(ctx, w, input)
	}

	res := h.Prompt(w)
	if err != nil {
		res.Error = err
		res.Message = "⚠️ " + userMessage(err) + "\n\n" + res.Message
	}
	return res
}

func (h *Handler) next(w *Wizard) error {
	if w.Step() == StepConfirm {
		return errors.New("use /submit to confirm the booking")
	}
	if !w.Next() {
		return errors.New("complete this step before continuing")
	}
	return nil
}

func (h *Handler) month(ctx context.Context, w *Wizard, arg string) error {
	if w.Step() != StepDateTime {
		return ErrWrongStep
	}
	delta, err := strconv.Atoi(strings.TrimPrefix(arg, "+"))
	if err != nil {
		return fmt.Errorf("invalid month step %q", arg)
	}
	w.ShowMonth(ctx, delta)
	return nil
}

func (h *Handler) date(ctx context.Context, w *Wizard, arg string) error {
	date, err := parseDate(arg, w.Location())
	if err != nil {
		return err
	}
	return w.SelectDate(ctx, date)
}

func (h *Handler) duration(w *Wizard, arg string) error {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(arg), "m"))
	if err != nil {
		return ErrInvalidDuration
	}
	return w.SelectDuration(model.Duration(n))
}

func (h *Handler) currency(w *Wizard, arg string) error {
	c, err := model.ParseCurrency(arg)
	if err != nil {
		return ErrInvalidCurrency
	}
	return w.SelectCurrency(c)
}

func (h *Handler) consultationType(w *Wizard, arg string) error {
	types := w.ConsultationTypes()
	if n, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
		if n < 1 || n > len(types) {
			return ErrUnknownType
		}
		return w.SetField(model.FieldConsultationType, types[n-1])
	}
	return w.SetField(model.FieldConsultationType, strings.TrimSpace(arg))
}

func (h *Handler) set(w *Wizard, arg string) error {
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return errors.New("use set:field=value")
	}
	field := model.Field(strings.TrimSpace(name))
	if field == model.FieldConsultationType {
		return h.consultationType(w, value)
	}
	return w.SetField(field, strings.TrimSpace(value))
}

func (h *Handler) removeDocument(w *Wizard, arg string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("invalid document number %q", arg)
	}
	return w.RemoveDocument(n - 1)
}

func (h *Handler) pay(ctx context.Context, w *Wizard, method string) error {
	if h.payments == nil {
		return errors.New("payments are not configured")
	}
	return w.Pay(ctx, h.payments.Widget(strings.TrimSpace(method)))
}

// bare interprets input without a token prefix from the current step.
func (h *Handler) bare(ctx context.Context, w *Wizard, input string) error {
	switch w.Step() {
	case StepDateTime:
		if _, _, err := model.ParseClock(input); err == nil {
			return w.SelectTime(input)
		}
		return h.date(ctx, w, input)
	case StepDuration:
		if _, err := model.ParseCurrency(input); err == nil {
			return h.currency(w, input)
		}
		return h.duration(w, input)
	case StepInfo:
		s := w.State()
		field := s.Draft.NextMissing()
		if field == "" {
			return errors.New("all fields are filled; use set:field=value to change one or /next")
		}
		if field == model.FieldConsultationType {
			return h.consultationType(w, input)
		}
		return w.SetField(field, input)
	case StepPayment:
		return h.pay(ctx, w, input)
	default:
		return fmt.Errorf("unrecognized input %q", input)
	}
}

// Prompt renders the current step.
func (h *Handler) Prompt(w *Wizard) TransitionResult {
	res := TransitionResult{Step: w.Step()}
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d/6: %s\n", int(w.Step()), w.Step().Title())

	switch w.Step() {
	case StepDateTime:
		h.promptDateTime(w, &b, &res)
	case StepDuration:
		h.promptDuration(w, &b, &res)
	case StepInfo:
		h.promptInfo(w, &b, &res)
	case StepConfirm:
		b.WriteString(Summary(w))
		b.WriteString("\nSend /submit to book and continue to payment.")
		res.Options = [][]Option{{{Label: "⬅️ Back", Data: "/back", Enabled: w.State().AppointmentID == 0}, {Label: "✅ Confirm", Data: "/submit", Enabled: true}}}
	case StepPayment:
		s := w.State()
		fmt.Fprintf(&b, "Appointment #%d\nTotal due: %s\n", s.AppointmentID, pricing.Format(w.Total(), s.Currency))
		b.WriteString("Enter a payment method ID (for example pm_card_visa).")
	case StepSuccess:
		s := w.State()
		fmt.Fprintf(&b, "Your appointment #%d is booked and paid.\n", s.AppointmentID)
		b.WriteString(Summary(w))
		res.Options = [][]Option{{{Label: "New booking", Data: "/restart", Enabled: true}}}
	}
	res.Message = strings.TrimRight(b.String(), "\n")
	return res
}

func (h *Handler) promptDateTime(w *Wizard, b *strings.Builder, res *TransitionResult) {
	year, month := w.ViewMonth()
	res.Options = append(res.Options, []Option{
		{Label: "«", Data: "month:-1", Enabled: true},
		{Label: fmt.Sprintf("%s %d", month, year), Data: NoopData},
		{Label: "»", Data: "month:+1", Enabled: true},
	})
	for _, week := range availability.Weeks(w.Calendar()) {
		row := make([]Option, 0, 7)
		for _, d := range week {
			switch {
			case d.Blank():
				row = append(row, Option{Label: " ", Data: NoopData})
			case d.Selectable:
				row = append(row, Option{Label: strconv.Itoa(d.Day), Data: "date:" + model.FormatDate(d.Date), Enabled: true})
			default:
				row = append(row, Option{Label: "·", Data: NoopData})
			}
		}
		res.Options = append(res.Options, row)
	}

	s := w.State()
	if !s.HasDate() {
		b.WriteString("Choose a date.")
		return
	}
	fmt.Fprintf(b, "Date: %s\n", FormatLongDate(s.SelectedDate))
	day := w.Day()
	switch {
	case day == nil || day.NoData:
		b.WriteString("No availability data for this date.")
		return
	case day.FullyBooked:
		b.WriteString("No slots available for this date.")
		return
	}
	times := w.SelectableTimes()
	if len(times) == 0 {
		b.WriteString("No slots available for this date.")
		return
	}
	var row []Option
	for _, t := range times {
		label := t.StartTime
		if t.StartTime == s.SelectedTime {
			label = "✓ " + label
		}
		row = append(row, Option{Label: label, Data: "time:" + t.StartTime, Enabled: true})
		if len(row) == 4 {
			res.Options = append(res.Options, row)
			row = nil
		}
	}
	if len(row) > 0 {
		res.Options = append(res.Options, row)
	}
	if s.SelectedTime == "" {
		b.WriteString("Choose a time.")
		return
	}
	fmt.Fprintf(b, "Time: %s\nSend /next to continue.", s.SelectedTime)
}

func (h *Handler) promptDuration(w *Wizard, b *strings.Builder, res *TransitionResult) {
	s := w.State()
	fmt.Fprintf(b, "%s at %s\n", FormatLongDate(s.SelectedDate), s.SelectedTime)

	var currencies []Option
	for _, c := range model.Currencies {
		label := string(c)
		if c == s.Currency {
			label = "✓ " + label
		}
		currencies = append(currencies, Option{Label: label, Data: "cur:" + string(c), Enabled: true})
	}
	res.Options = append(res.Options, currencies)

	for _, opt := range w.DurationOptions() {
		label := fmt.Sprintf("%s - %s", opt.Duration, pricing.Format(opt.Price, s.Currency))
		if opt.Selected {
			label = "✓ " + label
		}
		data := fmt.Sprintf("dur:%d", int(opt.Duration))
		if !opt.Enabled {
			label = "⛔ " + label
			data = NoopData
		}
		res.Options = append(res.Options, []Option{{Label: label, Data: data, Enabled: opt.Enabled}})
	}
	if s.Duration == 0 {
		b.WriteString("Choose a duration.")
		return
	}
	fmt.Fprintf(b, "Total: %s\nSend /next to continue.", pricing.Format(w.Total(), s.Currency))
}

func (h *Handler) promptInfo(w *Wizard, b *strings.Builder, res *TransitionResult) {
	s := w.State()
	for i, d := range s.Draft.Documents {
		fmt.Fprintf(b, "📎 %d. %s (%d KB) - doc:rm:%d to remove\n", i+1, d.Name, (d.Size+1023)/1024, i+1)
	}
	field := s.Draft.NextMissing()
	switch field {
	case "":
		b.WriteString("All information provided. Send /next to review, or set:field=value to change a field.")
	case model.FieldConsultationType:
		b.WriteString("Choose a consultation type.")
		for i, t := range w.ConsultationTypes() {
			res.Options = append(res.Options, []Option{{Label: t, Data: fmt.Sprintf("type:%d", i+1), Enabled: true}})
		}
	default:
		fmt.Fprintf(b, "%s:", field.Label())
	}
}

// Summary renders the booking details shown before and after payment.
func Summary(w *Wizard) string {
	s := w.State()
	var b strings.Builder
	fmt.Fprintf(&b, "Consultation: %s\n", s.Draft.ConsultationType)
	fmt.Fprintf(&b, "Date: %s at %s (%s)\n", FormatLongDate(s.SelectedDate), s.SelectedTime, w.Location())
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration)
	fmt.Fprintf(&b, "Name: %s %s\n", s.Draft.FirstName, s.Draft.LastName)
	fmt.Fprintf(&b, "Email: %s\nPhone: %s\nCountry: %s\n", s.Draft.Email, s.Draft.Phone, s.Draft.Country)
	if n := len(s.Draft.Documents); n > 0 {
		fmt.Fprintf(&b, "Documents: %d\n", n)
	}
	fmt.Fprintf(&b, "Total: %s\n", pricing.Format(w.Total(), s.Currency))
	return b.String()
}

// FormatLongDate renders a date as "Tuesday, June 10, 2025".
func FormatLongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Monday, January 2, 2006")
}

func userMessage(err error) string {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrConfirmationFailed):
		return MsgConfirmFailed
	case errors.Is(err, ErrWrongStep):
		return ErrWrongStep.Error()
	}
	return err.Error()
}

func parseDate(input string, loc *time.Location) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"02.01.2006",
		"02/01/2006",
	}
	input = strings.TrimSpace(input)
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, input, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", input)
}
