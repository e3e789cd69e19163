// Package model holds the booking domain types shared by the client packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Currency is a billing currency accepted by the booking flow.
type Currency string

const (
	CurrencyCAD Currency = "CAD"
	CurrencyMAD Currency = "MAD"
)

// Currencies lists supported currencies in display order.
var Currencies = []Currency{CurrencyCAD, CurrencyMAD}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyCAD, CurrencyMAD:
		return true
	}
	return false
}

// ParseCurrency parses a case-insensitive currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// Duration is a consultation length in minutes.
type Duration int

const (
	Duration30 Duration = 30
	Duration60 Duration = 60
	Duration90 Duration = 90
)

// Durations lists bookable durations in ascending order.
var Durations = []Duration{Duration30, Duration60, Duration90}

// Valid reports whether d is one of the bookable durations.
func (d Duration) Valid() bool {
	switch d {
	case Duration30, Duration60, Duration90:
		return true
	}
	return false
}

// Span converts the duration to a time.Duration.
func (d Duration) Span() time.Duration {
	return time.Duration(d) * time.Minute
}

func (d Duration) String() string {
	return fmt.Sprintf("%d minutes", int(d))
}

// Status is the server-side lifecycle status of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Statuses lists all known statuses.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Symbol returns the short marker front ends print next to a status.
func (s Status) Symbol() string {
	switch s {
	case StatusConfirmed:
		return "✅"
	case StatusPending:
		return "⏳"
	case StatusCancelled:
		return "❌"
	case StatusCompleted:
		return "☑️"
	default:
		return "❔"
	}
}

// ParseStatus parses a case-insensitive status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Reason classifies an admin-declared blocked period.
type Reason string

const (
	ReasonVacation Reason = "VACATION"
	ReasonMeeting  Reason = "MEETING"
	ReasonPersonal Reason = "PERSONAL"
	ReasonOther    Reason = "OTHER"
)

// Reasons lists block reasons in form order.
var Reasons = []Reason{ReasonVacation, ReasonMeeting, ReasonPersonal, ReasonOther}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonVacation, ReasonMeeting, ReasonPersonal, ReasonOther:
		return true
	}
	return false
}

// Label returns the human label for a reason.
func (r Reason) Label() string {
	switch r {
	case ReasonVacation:
		return "Vacation"
	case ReasonMeeting:
		return "Meeting"
	case ReasonPersonal:
		return "Personal"
	case ReasonOther:
		return "Other"
	default:
		return string(r)
	}
}

// ParseReason parses a case-insensitive reason name.
func ParseReason(s string) (Reason, error) {
	r := Reason(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown reason %q", s)
	}
	return r, nil
}
