package crmapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"firmament/internal/model"
)

// CreateAppointmentRequest is the body of POST /appointments.
type CreateAppointmentRequest struct {
	FirstName          string         `json:"firstName"`
	LastName           string         `json:"lastName"`
	Email              string         `json:"email"`
	Phone              string         `json:"phone"`
	Country            string         `json:"country"`
	AppointmentDate    string         `json:"appointmentDate"`
	Duration           model.Duration `json:"duration"`
	ConsultationType   string         `json:"consultationType"`
	ClientPresentation string         `json:"clientPresentation"`
	Currency           model.Currency `json:"currency"`
	UserTimezone       string         `json:"userTimezone"`
}

// UpdateAppointmentRequest is the body of PATCH /appointments/{id}. Nil
// fields are left unchanged.
type UpdateAppointmentRequest struct {
	FirstName          *string         `json:"firstName,omitempty"`
	LastName           *string         `json:"lastName,omitempty"`
	Email              *string         `json:"email,omitempty"`
	Phone              *string         `json:"phone,omitempty"`
	Country            *string         `json:"country,omitempty"`
	AppointmentDate    *string         `json:"appointmentDate,omitempty"`
	Duration           *model.Duration `json:"duration,omitempty"`
	ConsultationType   *string         `json:"consultationType,omitempty"`
	ClientPresentation *string         `json:"clientPresentation,omitempty"`
	Status             *model.Status   `json:"status,omitempty"`
	AdminNotes         *string         `json:"adminNotes,omitempty"`
	Amount             *float64        `json:"amount,omitempty"`
	Currency           *model.Currency `json:"currency,omitempty"`
	UserTimezone       *string         `json:"userTimezone,omitempty"`
}

// CreateAppointment creates an appointment.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*model.Appointment, error) {
	var out model.Appointment
	if err := c.doJSON(ctx, http.MethodPost, "/appointments", req, &out); err != nil {
		return nil, err
	}
	c.invalidateAvailability(ctx)
	return &out, nil
}

// Appointment fetches one appointment.
func (c *Client) Appointment(ctx context.Context, id int64) (*model.Appointment, error) {
	var out model.Appointment
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/appointments/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpcomingAppointments lists upcoming appointments.
func (c *Client) UpcomingAppointments(ctx context.Context) ([]model.Appointment, error) {
	var out []model.Appointment
	if err := c.doJSON(ctx, http.MethodGet, "/appointments/upcoming", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Appointments lists appointments, filtered by status when non-empty.
func (c *Client) Appointments(ctx context.Context, status model.Status) ([]model.Appointment, error) {
	path := "/appointments"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out []model.Appointment
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAppointment patches an appointment.
func (c *Client) UpdateAppointment(ctx context.Context, id int64, req UpdateAppointmentRequest) (*model.Appointment, error) {
	var out model.Appointment
	if err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/appointments/%d", id), req, &out); err != nil {
		return nil, err
	}
	c.invalidateAvailability(ctx)
	return &out, nil
}

// CancelAppointment deletes an appointment.
func (c *Client) CancelAppointment(ctx context.Context, id int64) error {
	if err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/appointments/%d", id), nil, nil); err != nil {
		return err
	}
	c.invalidateAvailability(ctx)
	return nil
}

// ConfirmPayment tells the server the payment intent succeeded.
func (c *Client) ConfirmPayment(ctx context.Context, appointmentID int64, paymentIntentID string) error {
	path := fmt.Sprintf("/appointments/%d/confirm-payment?paymentIntentId=%s", appointmentID, url.QueryEscape(paymentIntentID))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

type intentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreatePaymentIntent opens a payment session and returns its client secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, appointmentID int64) (string, error) {
	var out intentResponse
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/payments/create-intent/%d", appointmentID), nil, &out); err != nil {
		return "", err
	}
	if out.ClientSecret == "" {
		return "", fmt.Errorf("create intent: empty client secret")
	}
	return out.ClientSecret, nil
}
