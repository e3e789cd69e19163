package model

// Slot is a bookable start time with one feasibility flag per duration.
type Slot struct {
	StartTime   string // "HH:MM"
	Available30 bool
	Available60 bool
	Available90 bool
}

// AvailableFor reports the server-computed flag for d.
func (s Slot) AvailableFor(d Duration) bool {
	switch d {
	case Duration30:
		return s.Available30
	case Duration60:
		return s.Available60
	case Duration90:
		return s.Available90
	default:
		return false
	}
}

// Any reports whether the slot supports at least one duration.
func (s Slot) Any() bool {
	return s.Available30 || s.Available60 || s.Available90
}

// DayAvailability is the slot list for one calendar day.
type DayAvailability struct {
	Date        string
	FullyBooked bool
	Slots       []Slot
	// NoData is set when the day could not be fetched.
	NoData bool
}

// MonthAvailability maps day-of-month to "has any availability".
type MonthAvailability map[int]bool

// Available reports whether day has availability.
func (m MonthAvailability) Available(day int) bool {
	return m[day]
}
