// Package schedule implements the admin side of the calendar: blocking and
// unblocking time, grouping stored blocks for display, and appointment
// maintenance.
package schedule

import (
	"sort"
	"time"

	"firmament/internal/model"
)

// BlockGroup is a display range of one or more stored blocks.
type BlockGroup struct {
	Start     string // first date, YYYY-MM-DD
	End       string // last date, equal to Start for single days
	FullDay   bool
	StartTime string
	EndTime   string
	Reason    model.Reason
	Notes     string
	Blocks    []model.BlockedPeriod
}

// IsRange reports whether the group spans more than one day.
func (g *BlockGroup) IsRange() bool { return g.Start != g.End }

// Linked reports whether the group is an appointment's block.
func (g *BlockGroup) Linked() bool {
	for i := range g.Blocks {
		if g.Blocks[i].Linked() {
			return true
		}
	}
	return false
}

// Removable reports whether an admin may unblock the group.
func (g *BlockGroup) Removable() bool { return !g.Linked() }

// IDs lists the stored block IDs in date order.
func (g *BlockGroup) IDs() []int64 {
	ids := make([]int64, 0, len(g.Blocks))
	for i := range g.Blocks {
		ids = append(ids, g.Blocks[i].ID)
	}
	return ids
}

type groupKey struct {
	reason  model.Reason
	notes   string
	fullDay bool
}

type span struct {
	block      model.BlockedPeriod
	start, end time.Time
}

// GroupBlockedPeriods partitions blocks by (reason, notes, full-day), sorts
// each partition by date and merges runs of dates exactly one calendar day
// apart. Blocks linked to an appointment are never merged. Blocks with an
// unparseable date are returned as single entries. The result is ordered
// by start date.
func GroupBlockedPeriods(blocks []model.BlockedPeriod) []BlockGroup {
	partitions := make(map[groupKey][]span)
	var keys []groupKey
	var out []BlockGroup

	for _, b := range blocks {
		start, err := model.ParseDate(b.Date, time.UTC)
		if err != nil || b.Linked() {
			out = append(out, single(b))
			continue
		}
		end := start
		if b.EndDate != "" {
			if e, err := model.ParseDate(b.EndDate, time.UTC); err == nil && !e.Before(start) {
				end = e
			}
		}
		k := groupKey{reason: b.Reason, notes: b.Notes, fullDay: b.IsFullDay()}
		if _, ok := partitions[k]; !ok {
			keys = append(keys, k)
		}
		partitions[k] = append(partitions[k], span{block: b, start: start, end: end})
	}

	for _, k := range keys {
		spans := partitions[k]
		sort.SliceStable(spans, func(i, j int) bool {
			if spans[i].start.Equal(spans[j].start) {
				return spans[i].block.ID < spans[j].block.ID
			}
			return spans[i].start.Before(spans[j].start)
		})

		cur := newGroup(spans[0])
		last := spans[0].end
		for _, s := range spans[1:] {
			if s.start.Equal(last.AddDate(0, 0, 1)) {
				cur.Blocks = append(cur.Blocks, s.block)
				cur.End = model.FormatDate(s.end)
				last = s.end
				continue
			}
			out = append(out, cur)
			cur = newGroup(s)
			last = s.end
		}
		out = append(out, cur)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func newGroup(s span) BlockGroup {
	g := single(s.block)
	g.Start = model.FormatDate(s.start)
	g.End = model.FormatDate(s.end)
	return g
}

func single(b model.BlockedPeriod) BlockGroup {
	end := b.Date
	if b.EndDate != "" && b.EndDate > b.Date {
		end = b.EndDate
	}
	return BlockGroup{
		Start:     b.Date,
		End:       end,
		FullDay:   b.IsFullDay(),
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Reason:    b.Reason,
		Notes:     b.Notes,
		Blocks:    []model.BlockedPeriod{b},
	}
}
