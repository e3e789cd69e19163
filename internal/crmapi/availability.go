package crmapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"firmament/internal/model"
)

const cachePrefix = "availability:"

type monthResponse struct {
	DayAvailability map[string]bool `json:"dayAvailability"`
}

type slotResponse struct {
	StartTime      string `json:"startTime"`
	Available30Min bool   `json:"available30Min"`
	Available60Min bool   `json:"available60Min"`
	Available90Min bool   `json:"available90Min"`
}

type dayResponse struct {
	Date           string         `json:"date"`
	FullyBooked    bool           `json:"fullyBooked"`
	AvailableSlots []slotResponse `json:"availableSlots"`
}

// MonthAvailability fetches per-day availability for a month (1-12).
func (c *Client) MonthAvailability(ctx context.Context, year, month int, timezone string) (model.MonthAvailability, error) {
	path := fmt.Sprintf("/availability/month/%d/%d?timezone=%s", year, month, url.QueryEscape(timezone))
	cacheKey := fmt.Sprintf("%smonth:%d:%d:%s", cachePrefix, year, month, timezone)

	var resp monthResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	out := make(model.MonthAvailability, len(resp.DayAvailability))
	for k, v := range resp.DayAvailability {
		day, err := strconv.Atoi(k)
		if err != nil || day < 1 || day > 31 {
			return nil, fmt.Errorf("month availability: invalid day %q", k)
		}
		out[day] = v
	}
	return out, nil
}

// DayAvailability fetches the slots of date (YYYY-MM-DD). Start times are
// normalized to "HH:MM" and server order is preserved.
func (c *Client) DayAvailability(ctx context.Context, date, timezone string) (*model.DayAvailability, error) {
	path := fmt.Sprintf("/availability/day/%s?timezone=%s", url.PathEscape(date), url.QueryEscape(timezone))
	cacheKey := fmt.Sprintf("%sday:%s:%s", cachePrefix, date, timezone)

	var resp dayResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	day := &model.DayAvailability{
		Date:        date,
		FullyBooked: resp.FullyBooked,
		Slots:       make([]model.Slot, 0, len(resp.AvailableSlots)),
	}
	for _, s := range resp.AvailableSlots {
		start, err := model.NormalizeClock(s.StartTime)
		if err != nil {
			return nil, fmt.Errorf("day availability: %w", err)
		}
		day.Slots = append(day.Slots, model.Slot{
			StartTime:   start,
			Available30: s.Available30Min,
			Available60: s.Available60Min,
			Available90: s.Available90Min,
		})
	}
	return day, nil
}

// BlockRequest is the body of POST /availability/block.
type BlockRequest struct {
	Date      string       `json:"date"`
	EndDate   string       `json:"endDate,omitempty"`
	StartTime string       `json:"startTime,omitempty"`
	EndTime   string       `json:"endTime,omitempty"`
	FullDay   bool         `json:"fullDay"`
	Reason    model.Reason `json:"reason"`
	Notes     string       `json:"notes"`
	Timezone  string       `json:"timezone"`
}

// Block creates a blocked period.
func (c *Client) Block(ctx context.Context, req BlockRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, "/availability/block", req, nil); err != nil {
		return err
	}
	c.invalidateAvailability(ctx)
	return nil
}

// Unblock removes a single stored block.
func (c *Client) Unblock(ctx context.Context, id int64) error {
	if err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/availability/block/%d", id), nil, nil); err != nil {
		return err
	}
	c.invalidateAvailability(ctx)
	return nil
}

// BlockedPeriods lists blocks between startDate and endDate. Empty bounds
// are omitted.
func (c *Client) BlockedPeriods(ctx context.Context, startDate, endDate string) ([]model.BlockedPeriod, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("startDate", startDate)
	}
	if endDate != "" {
		q.Set("endDate", endDate)
	}
	path := "/availability/blocked-periods"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []model.BlockedPeriod
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
