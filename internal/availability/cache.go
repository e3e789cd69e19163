// Package availability holds the month and day availability views used by
// the booking wizard and the admin editor.
package availability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"firmament/internal/metrics"
	"firmament/internal/model"
)

// Source fetches availability from the server.
type Source interface {
	MonthAvailability(ctx context.Context, year, month int, timezone string) (model.MonthAvailability, error)
	DayAvailability(ctx context.Context, date, timezone string) (*model.DayAvailability, error)
}

// Cache holds the currently displayed month and the selected day. Each load
// takes a sequence number; a response whose number is no longer the latest
// for its view is discarded.
type Cache struct {
	src    Source
	loc    *time.Location
	logger *zerolog.Logger

	mu sync.Mutex

	monthSeq     uint64
	monthYear    int
	monthMonth   time.Month
	month        model.MonthAvailability
	monthLoading bool

	daySeq     uint64
	day        *model.DayAvailability
	dayLoading bool
}

// NewCache creates a cache querying src with the zone name of loc.
func NewCache(src Source, loc *time.Location, logger *zerolog.Logger) *Cache {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Cache{src: src, loc: loc, logger: logger, month: model.MonthAvailability{}}
}

// Location returns the zone used for queries.
func (c *Cache) Location() *time.Location { return c.loc }

// LoadMonth fetches month availability. It never fails: on error the
// result is an empty map and every day is unavailable.
func (c *Cache) LoadMonth(ctx context.Context, year int, month time.Month) model.MonthAvailability {
	c.mu.Lock()
	c.monthSeq++
	seq := c.monthSeq
	c.monthLoading = true
	c.mu.Unlock()

	avail, err := c.src.MonthAvailability(ctx, year, int(month), c.loc.String())
	if err != nil {
		c.logger.Warn().Err(err).Int("year", year).Int("month", int(month)).Msg("month availability unavailable")
		avail = model.MonthAvailability{}
	}
	if avail == nil {
		avail = model.MonthAvailability{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.monthSeq {
		metrics.IncStaleResponse("month")
		c.logger.Debug().Uint64("seq", seq).Uint64("current", c.monthSeq).Msg("discarding stale month availability")
		return avail
	}
	c.monthYear, c.monthMonth, c.month = year, month, avail
	c.monthLoading = false
	return avail
}

// LoadDay fetches the slots of date. On error the result has no slots and
// NoData set.
func (c *Cache) LoadDay(ctx context.Context, date time.Time) *model.DayAvailability {
	dateStr := model.FormatDate(date)

	c.mu.Lock()
	c.daySeq++
	seq := c.daySeq
	c.dayLoading = true
	c.mu.Unlock()

	day, err := c.src.DayAvailability(ctx, dateStr, c.loc.String())
	if err != nil || day == nil {
		if err != nil {
			c.logger.Warn().Err(err).Str("date", dateStr).Msg("day availability unavailable")
		}
		day = &model.DayAvailability{Date: dateStr, NoData: true}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.daySeq {
		metrics.IncStaleResponse("day")
		c.logger.Debug().Uint64("seq", seq).Uint64("current", c.daySeq).Str("date", dateStr).Msg("discarding stale day availability")
		return day
	}
	c.day = day
	c.dayLoading = false
	return day
}

// ClearDay forgets the selected day and supersedes any in-flight day load.
func (c *Cache) ClearDay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.daySeq++
	c.day = nil
	c.dayLoading = false
}

// Month returns the displayed month and its availability.
func (c *Cache) Month() (int, time.Month, model.MonthAvailability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monthYear, c.monthMonth, c.month
}

// Day returns the current day view, or nil when no day is selected.
func (c *Cache) Day() *model.DayAvailability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

// MonthLoading reports whether the latest month load is in flight.
func (c *Cache) MonthLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monthLoading
}

// DayLoading reports whether the latest day load is in flight.
func (c *Cache) DayLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dayLoading
}
