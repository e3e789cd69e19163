package availability

import (
	"time"

	"firmament/internal/model"
)

// CalendarDay is one cell of a month grid. Blank cells pad the first week
// and have Day == 0.
type CalendarDay struct {
	Day        int
	Date       time.Time
	Today      bool
	Selectable bool
}

// Blank reports whether the cell is padding.
func (d CalendarDay) Blank() bool { return d.Day == 0 }

// IsDateAvailable reports whether date may be chosen: its day must be
// flagged in avail and it must not be strictly before today. Both are
// compared as calendar dates, each read in its own zone.
func IsDateAvailable(date time.Time, avail model.MonthAvailability, today time.Time) bool {
	if civil(date).Before(civil(today)) {
		return false
	}
	return avail.Available(date.Day())
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalendarDays builds the grid of a month with weeks starting on Sunday.
// avail must describe the same month.
func CalendarDays(year int, month time.Month, avail model.MonthAvailability, today time.Time) []CalendarDay {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := int(first.Weekday())
	n := DaysIn(month, year)

	days := make([]CalendarDay, 0, offset+n)
	for i := 0; i < offset; i++ {
		days = append(days, CalendarDay{})
	}
	for d := 1; d <= n; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, loc)
		days = append(days, CalendarDay{
			Day:        d,
			Date:       date,
			Today:      model.SameDay(date, today),
			Selectable: IsDateAvailable(date, avail, today),
		})
	}
	return days
}

// Weeks splits a grid into rows of seven, padding the last row.
func Weeks(days []CalendarDay) [][]CalendarDay {
	var rows [][]CalendarDay
	for i := 0; i < len(days); i += 7 {
		end := i + 7
		row := make([]CalendarDay, 7)
		if end > len(days) {
			end = len(days)
		}
		copy(row, days[i:end])
		rows = append(rows, row)
	}
	return rows
}

// DaysIn returns the number of days in a month.
func DaysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// ShiftMonth moves (year, month) by delta months.
func ShiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Year(), t.Month()
}
