package booking

import (
	"time"

	"firmament/internal/model"
)

// EncodeTimestamp combines the calendar day of date with clock ("HH:MM")
// in loc and renders it with an explicit numeric offset, e.g.
// "2025-06-10T10:00:00-04:00". UTC renders as "+00:00", never "Z".
func EncodeTimestamp(date time.Time, clock string, loc *time.Location) (string, error) {
	at, err := model.At(date, clock, loc)
	if err != nil {
		return "", err
	}
	return at.Format(model.OffsetLayout), nil
}
