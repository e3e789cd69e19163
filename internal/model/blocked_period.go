package model

import "time"

// BlockedPeriod is an admin-declared unavailable interval stored by the server.
type BlockedPeriod struct {
	ID            int64  `json:"id"`
	Date          string `json:"date"`
	EndDate       string `json:"endDate,omitempty"`
	StartTime     string `json:"startTime,omitempty"`
	EndTime       string `json:"endTime,omitempty"`
	FullDay       bool   `json:"fullDay"`
	Reason        Reason `json:"reason"`
	Notes         string `json:"notes,omitempty"`
	AppointmentID *int64 `json:"appointmentId,omitempty"`
}

// Linked reports whether the block was created by a booking. Linked blocks
// are removed with their appointment, never on their own.
func (b *BlockedPeriod) Linked() bool {
	return b.AppointmentID != nil
}

// IsFullDay reports whether the block covers the whole day.
func (b *BlockedPeriod) IsFullDay() bool {
	return b.FullDay || (b.StartTime == "" && b.EndTime == "")
}

// Day parses the block's date in loc.
func (b *BlockedPeriod) Day(loc *time.Location) (time.Time, error) {
	return ParseDate(b.Date, loc)
}
