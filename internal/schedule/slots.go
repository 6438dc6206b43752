// Package schedule detects calendar conflicts and generates bookable slots
// for a single master.
package schedule

import (
	"iter"
	"sort"
	"time"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/pricing"
)

const (
	Granularity = 30 * time.Minute
	MinLead     = 15 * time.Minute
)

// Window is a working window expressed as offsets from local midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Price     int64     `json:"price"`
	UrgentFee *int64    `json:"urgent_fee,omitempty"`
	IsUrgent  bool      `json:"is_urgent"`
}

// SlotQuery describes one day of a master's calendar.
type SlotQuery struct {
	Date      time.Time
	Location  *time.Location
	Duration  time.Duration
	Occupied  []Interval
	BasePrice int64
	Now       time.Time
}

// Slots yields the free slots of a single working window in ascending start
// order. The sequence is computed lazily on every range and has no side
// effects, so it can be iterated any number of times.
func Slots(q SlotQuery, w Window) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if q.Duration <= 0 || w.End <= w.Start {
			return
		}

		windowStart := q.wallClock(w.Start)
		windowEnd := q.wallClock(w.End)
		cutoff := q.Now.Add(MinLead)

		for start := windowStart; !start.Add(q.Duration).After(windowEnd); start = start.Add(Granularity) {
			if start.Before(cutoff) {
				continue
			}
			candidate := Interval{Start: start, End: start.Add(q.Duration)}
			if !Admissible(candidate, q.Occupied, "") {
				continue
			}
			if !yield(q.price(candidate)) {
				return
			}
		}
	}
}

// DaySlots merges the slots of several windows of the same day. Windows are
// walked in start order and a start time is never emitted twice, even when
// windows overlap.
func DaySlots(q SlotQuery, windows []Window) iter.Seq[Slot] {
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	return func(yield func(Slot) bool) {
		var last time.Time
		for _, w := range sorted {
			for slot := range Slots(q, w) {
				if !last.IsZero() && !slot.Start.After(last) {
					continue
				}
				last = slot.Start
				if !yield(slot) {
					return
				}
			}
		}
	}
}

func (q SlotQuery) location() *time.Location {
	if q.Location == nil {
		return time.UTC
	}
	return q.Location
}

// wallClock resolves an offset from midnight on the query date into an
// instant, using the calendar fields so DST days keep their wall-clock hours.
func (q SlotQuery) wallClock(offset time.Duration) time.Time {
	loc := q.location()
	y, m, d := q.Date.In(loc).Date()
	minutes := int(offset / time.Minute)
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, loc)
}

func (q SlotQuery) price(i Interval) Slot {
	urgent := pricing.IsUrgent(i.Start, q.Now)
	slot := Slot{
		Start:     i.Start,
		End:       i.End,
		Available: true,
		Price:     pricing.TotalAmount(q.BasePrice, urgent),
		IsUrgent:  urgent,
	}
	if urgent {
		fee := pricing.UrgentFee(q.BasePrice)
		slot.UrgentFee = &fee
	}
	return slot
}
