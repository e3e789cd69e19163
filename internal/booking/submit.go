package booking

import (
	"context"
	"errors"
	"fmt"

	"firmament/internal/crmapi"
	"firmament/internal/events"
	"firmament/internal/metrics"
	"firmament/internal/payment"
)

// User-facing submission messages.
const (
	MsgDateInPast         = "The appointment date must be in the future."
	MsgCreateFailed       = "Could not create the appointment."
	MsgUploadFailed       = "Your documents could not be uploaded. Please try again later."
	MsgPaymentSetupFailed = "Could not start the payment. Please try again."
	MsgPaymentSucceeded   = "Payment successful!"
	MsgConfirmFailed      = "Payment received but confirmation failed. Please contact us."
)

// ErrConfirmationFailed means the charge succeeded but the server was not
// told about it.
var ErrConfirmationFailed = errors.New("payment confirmation failed")

// SubmitError is a rejected appointment creation.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// SubmissionMessage maps a creation failure to the message shown to the
// user: a past-date message for appointmentDate validation, the joined
// field messages for other validation errors, else the server message or a
// default.
func SubmissionMessage(err error) string {
	var apiErr *crmapi.APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.ValidationErrors) > 0 {
			if apiErr.HasField("appointmentDate") {
				return MsgDateInPast
			}
			return "Validation errors: " + apiErr.JoinedValidation()
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return MsgCreateFailed
}

// Request builds the creation request from the wizard state.
func (w *Wizard) Request() (crmapi.CreateAppointmentRequest, error) {
	s := &w.state
	if !s.HasDate() || s.SelectedTime == "" || s.Duration == 0 || !s.Draft.Complete() {
		return crmapi.CreateAppointmentRequest{}, ErrIncomplete
	}
	ts, err := EncodeTimestamp(s.SelectedDate, s.SelectedTime, w.opts.Location)
	if err != nil {
		return crmapi.CreateAppointmentRequest{}, err
	}
	d := s.Draft
	return crmapi.CreateAppointmentRequest{
		FirstName:          d.FirstName,
		LastName:           d.LastName,
		Email:              d.Email,
		Phone:              d.Phone,
		Country:            d.Country,
		AppointmentDate:    ts,
		Duration:           s.Duration,
		ConsultationType:   d.ConsultationType,
		ClientPresentation: d.ClientPresentation,
		Currency:           s.Currency,
		UserTimezone:       w.opts.Location.String(),
	}, nil
}

// Submit creates the appointment, uploads attachments best-effort and
// opens the payment session, then moves to Payment. When the appointment
// already exists from an earlier attempt only the payment session is
// retried.
func (w *Wizard) Submit(ctx context.Context) error {
	if w.state.Step != StepConfirm {
		return ErrWrongStep
	}

	if w.state.AppointmentID == 0 {
		req, err := w.Request()
		if err != nil {
			return err
		}
		appt, err := w.api.CreateAppointment(ctx, req)
		if err != nil {
			msg := SubmissionMessage(err)
			metrics.IncSubmission("rejected")
			w.logger.Error().Err(err).Str("appointment_date", req.AppointmentDate).Msg("appointment creation failed")
			w.bus.Error(msg)
			return &SubmitError{Message: msg, Err: err}
		}
		w.state.AppointmentID = appt.ID
		metrics.IncSubmission("created")
		w.logger.Info().Int64("appointment_id", appt.ID).Msg("appointment created")
		w.bus.Publish(events.Event{Type: events.TypeAppointmentCreated, AppointmentID: appt.ID})

		if docs := w.state.Draft.Documents; len(docs) > 0 {
			if err := w.api.UploadDocuments(ctx, appt.ID, docs); err != nil {
				w.logger.Warn().Err(err).Int64("appointment_id", appt.ID).Int("documents", len(docs)).Msg("document upload failed")
				w.bus.Error(MsgUploadFailed)
				w.bus.Publish(events.Event{Type: events.TypeDocumentsFailed, AppointmentID: appt.ID})
			}
		}
	}

	secret, err := w.api.CreatePaymentIntent(ctx, w.state.AppointmentID)
	if err != nil {
		metrics.IncSubmission("payment_setup_failed")
		w.logger.Error().Err(err).Int64("appointment_id", w.state.AppointmentID).Msg("payment session creation failed")
		w.bus.Error(MsgPaymentSetupFailed)
		return fmt.Errorf("create payment session: %w", err)
	}
	w.state.PaymentSecret = secret
	w.moveTo(StepPayment)
	return nil
}

// Pay runs widget against the stored payment session and, on success,
// confirms the payment with the server. After a successful charge whose
// server confirmation failed, a retry only repeats the confirmation.
func (w *Wizard) Pay(ctx context.Context, widget payment.Widget) error {
	if w.state.Step != StepPayment {
		return ErrWrongStep
	}

	if w.state.PaymentIntentID == "" {
		res, err := widget.Confirm(ctx, w.state.PaymentSecret)
		if err != nil {
			metrics.IncPayment("failed")
			w.logger.Warn().Err(err).Int64("appointment_id", w.state.AppointmentID).Msg("payment failed")
			w.bus.Error("Payment error: " + err.Error())
			w.bus.Publish(events.Event{Type: events.TypePaymentFailed, AppointmentID: w.state.AppointmentID})
			return fmt.Errorf("payment: %w", err)
		}
		w.state.PaymentIntentID = res.PaymentIntentID
	}

	if err := w.api.ConfirmPayment(ctx, w.state.AppointmentID, w.state.PaymentIntentID); err != nil {
		metrics.IncPayment("unconfirmed")
		w.logger.Error().Err(err).Int64("appointment_id", w.state.AppointmentID).
			Str("payment_intent_id", w.state.PaymentIntentID).Msg("payment confirmation failed")
		w.bus.Error(MsgConfirmFailed)
		return fmt.Errorf("%w: %w", ErrConfirmationFailed, err)
	}

	metrics.IncPayment("succeeded")
	w.moveTo(StepSuccess)
	w.bus.Success(MsgPaymentSucceeded)
	w.bus.Publish(events.Event{Type: events.TypePaymentSucceeded, AppointmentID: w.state.AppointmentID})
	return nil
}
