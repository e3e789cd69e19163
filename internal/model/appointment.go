package model

import (
	"strings"
	"time"
)

// MaxPresentationLength bounds the client presentation, in characters.
const MaxPresentationLength = 1000

// Appointment is a server-side appointment record.
type Appointment struct {
	ID                 int64     `json:"id"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Country            string    `json:"country,omitempty"`
	ConsultationType   string    `json:"consultationType"`
	ClientPresentation string    `json:"clientPresentation,omitempty"`
	AppointmentDate    Timestamp `json:"appointmentDate"`
	Duration           Duration  `json:"duration"`
	Amount             float64   `json:"amount"`
	Currency           Currency  `json:"currency"`
	Status             Status    `json:"status"`
	AdminNotes         string    `json:"adminNotes,omitempty"`
	UserTimezone       string    `json:"userTimezone,omitempty"`
	PaymentIntentID    string    `json:"paymentIntentId,omitempty"`
}

// FullName joins the first and last name.
func (a *Appointment) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// End returns the end instant of the appointment.
func (a *Appointment) End() time.Time {
	return a.AppointmentDate.Add(a.Duration.Span())
}

// Attachment is a file chosen by the client during booking. Contents stay
// in memory only.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// AppointmentDraft is the intake form collected by the wizard.
type AppointmentDraft struct {
	ConsultationType   string
	FirstName          string
	LastName           string
	Phone              string
	Email              string
	Country            string
	ClientPresentation string
	Documents          []Attachment
}

// Field names an intake form field.
type Field string

const (
	FieldConsultationType   Field = "consultationType"
	FieldFirstName          Field = "firstName"
	FieldLastName           Field = "lastName"
	FieldPhone              Field = "phone"
	FieldEmail              Field = "email"
	FieldCountry            Field = "country"
	FieldClientPresentation Field = "clientPresentation"
)

// RequiredFields lists the fields that must be filled, in form order.
var RequiredFields = []Field{
	FieldConsultationType,
	FieldFirstName,
	FieldLastName,
	FieldPhone,
	FieldEmail,
	FieldCountry,
	FieldClientPresentation,
}

// Label returns the prompt label of a field.
func (f Field) Label() string {
	switch f {
	case FieldConsultationType:
		return "Consultation type"
	case FieldFirstName:
		return "First name"
	case FieldLastName:
		return "Last name"
	case FieldPhone:
		return "Phone"
	case FieldEmail:
		return "Email"
	case FieldCountry:
		return "Country of residence"
	case FieldClientPresentation:
		return "Describe your situation (max 1000 characters)"
	default:
		return string(f)
	}
}

// Get returns the value of f.
func (d *AppointmentDraft) Get(f Field) string {
	switch f {
	case FieldConsultationType:
		return d.ConsultationType
	case FieldFirstName:
		return d.FirstName
	case FieldLastName:
		return d.LastName
	case FieldPhone:
		return d.Phone
	case FieldEmail:
		return d.Email
	case FieldCountry:
		return d.Country
	case FieldClientPresentation:
		return d.ClientPresentation
	default:
		return ""
	}
}

// Set assigns v to f. It reports false for an unknown field.
func (d *AppointmentDraft) Set(f Field, v string) bool {
	switch f {
	case FieldConsultationType:
		d.ConsultationType = v
	case FieldFirstName:
		d.FirstName = v
	case FieldLastName:
		d.LastName = v
	case FieldPhone:
		d.Phone = v
	case FieldEmail:
		d.Email = v
	case FieldCountry:
		d.Country = v
	case FieldClientPresentation:
		d.ClientPresentation = v
	default:
		return false
	}
	return true
}

// Complete reports whether every required field is non-empty.
func (d *AppointmentDraft) Complete() bool {
	return d.NextMissing() == ""
}

// NextMissing returns the first empty required field, or "".
func (d *AppointmentDraft) NextMissing() Field {
	for _, f := range RequiredFields {
		if d.Get(f) == "" {
			return f
		}
	}
	return ""
}

// Document is a file stored on the server for an appointment.
type Document struct {
	ID            int64     `json:"id"`
	FileName      string    `json:"fileName"`
	ContentType   string    `json:"contentType,omitempty"`
	Size          int64     `json:"fileSize,omitempty"`
	AppointmentID int64     `json:"appointmentId,omitempty"`
	UploadedAt    Timestamp `json:"uploadedAt,omitempty"`
}
