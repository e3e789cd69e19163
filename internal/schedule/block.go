package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"firmament/internal/crmapi"
	"firmament/internal/model"
)

var (
	ErrDateRequired   = errors.New("date is required")
	ErrDateInPast     = errors.New("date cannot be in the past")
	ErrEndBeforeStart = errors.New("end date cannot be before the start date")
	ErrInvalidReason  = errors.New("reason must be VACATION, MEETING, PERSONAL or OTHER")
	ErrTimesRequired  = errors.New("start and end times are required for a partial block")
	ErrTimeOrder      = errors.New("end time must be after start time")
)

// BlockForm is the admin input for a new blocked period. Leaving both
// times empty blocks the whole day.
type BlockForm struct {
	Date      string
	EndDate   string
	StartTime string
	EndTime   string
	FullDay   bool
	Reason    model.Reason
	Notes     string
}

// Normalize trims input, upper-cases the reason and infers FullDay.
func (f BlockForm) Normalize() BlockForm {
	f.Date = strings.TrimSpace(f.Date)
	f.EndDate = strings.TrimSpace(f.EndDate)
	f.StartTime = strings.TrimSpace(f.StartTime)
	f.EndTime = strings.TrimSpace(f.EndTime)
	f.Notes = strings.TrimSpace(f.Notes)
	f.Reason = model.Reason(strings.ToUpper(string(f.Reason)))
	if f.Reason == "" {
		f.Reason = model.ReasonVacation
	}
	if f.StartTime == "" && f.EndTime == "" {
		f.FullDay = true
	}
	if f.FullDay {
		f.StartTime, f.EndTime = "", ""
	}
	return f
}

// Validate checks the normalized form against today, a date in the
// admin's zone.
func (f BlockForm) Validate(today time.Time) error {
	if f.Date == "" {
		return ErrDateRequired
	}
	loc := today.Location()
	date, err := model.ParseDate(f.Date, loc)
	if err != nil {
		return err
	}
	if date.Before(model.DateOnly(today)) {
		return ErrDateInPast
	}
	if f.EndDate != "" {
		end, err := model.ParseDate(f.EndDate, loc)
		if err != nil {
			return err
		}
		if end.Before(date) {
			return ErrEndBeforeStart
		}
	}
	if !f.Reason.Valid() {
		return ErrInvalidReason
	}
	if f.FullDay {
		return nil
	}
	if f.StartTime == "" || f.EndTime == "" {
		return ErrTimesRequired
	}
	sh, sm, err := model.ParseClock(f.StartTime)
	if err != nil {
		return err
	}
	eh, em, err := model.ParseClock(f.EndTime)
	if err != nil {
		return err
	}
	if eh*60+em <= sh*60+sm {
		return ErrTimeOrder
	}
	return nil
}

// Request converts the form to the API body with the admin's zone.
func (f BlockForm) Request(timezone string) (crmapi.BlockRequest, error) {
	req := crmapi.BlockRequest{
		Date:     f.Date,
		EndDate:  f.EndDate,
		FullDay:  f.FullDay,
		Reason:   f.Reason,
		Notes:    f.Notes,
		Timezone: timezone,
	}
	if !f.FullDay {
		start, err := model.NormalizeClock(f.StartTime)
		if err != nil {
			return req, fmt.Errorf("start time: %w", err)
		}
		end, err := model.NormalizeClock(f.EndTime)
		if err != nil {
			return req, fmt.Errorf("end time: %w", err)
		}
		req.StartTime, req.EndTime = start, end
	}
	return req, nil
}

// ParseBlockArgs reads "DATE [END_DATE] [HH:MM-HH:MM] [REASON] [notes...]".
func ParseBlockArgs(args []string) (BlockForm, error) {
	var f BlockForm
	if len(args) == 0 {
		return f, ErrDateRequired
	}
	f.Date = args[0]
	rest := args[1:]

	if len(rest) > 0 && isDate(rest[0]) {
		f.EndDate, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 && strings.Contains(rest[0], "-") && strings.Contains(rest[0], ":") {
		start, end, ok := strings.Cut(rest[0], "-")
		if !ok || start == "" || end == "" {
			return f, fmt.Errorf("invalid time range %q", rest[0])
		}
		f.StartTime, f.EndTime, rest = start, end, rest[1:]
	}
	if len(rest) > 0 {
		if r, err := model.ParseReason(rest[0]); err == nil {
			f.Reason, rest = r, rest[1:]
		}
	}
	f.Notes = strings.Join(rest, " ")
	return f.Normalize(), nil
}

func isDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}
