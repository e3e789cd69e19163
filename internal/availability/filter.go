package availability

import (
	"time"

	"firmament/internal/model"
)

// TimesFor returns the start times whose flag for d is set, in server order.
func TimesFor(day *model.DayAvailability, d model.Duration) []string {
	if day == nil {
		return nil
	}
	out := make([]string, 0, len(day.Slots))
	for _, s := range day.Slots {
		if s.AvailableFor(d) {
			out = append(out, s.StartTime)
		}
	}
	return out
}

// Contains reports whether clock is one of times.
func Contains(times []string, clock string) bool {
	for _, t := range times {
		if t == clock {
			return true
		}
	}
	return false
}

// SelectableTimes returns the slots a user may pick on date: slots with at
// least one duration flag, minus those not after now when date is today.
// date and now are compared in now's location.
func SelectableTimes(day *model.DayAvailability, date, now time.Time) []model.Slot {
	if day == nil {
		return nil
	}
	isToday := model.SameDay(date.In(now.Location()), now)
	out := make([]model.Slot, 0, len(day.Slots))
	for _, s := range day.Slots {
		if !s.Any() {
			continue
		}
		if isToday {
			start, err := model.At(date.In(now.Location()), s.StartTime, now.Location())
			if err != nil || !start.After(now) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// FutureStartTimes returns every slot start on date, minus past ones when
// date is today. Used by the admin editor, which ignores duration flags.
func FutureStartTimes(day *model.DayAvailability, date, now time.Time) []string {
	if day == nil {
		return nil
	}
	isToday := model.SameDay(date.In(now.Location()), now)
	out := make([]string, 0, len(day.Slots))
	for _, s := range day.Slots {
		if isToday {
			start, err := model.At(date.In(now.Location()), s.StartTime, now.Location())
			if err != nil || !start.After(now) {
				continue
			}
		}
		out = append(out, s.StartTime)
	}
	return out
}
