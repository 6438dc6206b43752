package schedule

import "time"

// Interval is a half-open time range [Start, End) occupied on a master's
// calendar. ID is the booking holding it, if any.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

// FirstConflict returns the first occupied interval overlapping req. Entries
// whose ID equals excludeID are ignored so a booking never conflicts with
// itself while being rescheduled.
func FirstConflict(req Interval, occupied []Interval, excludeID string) (Interval, bool) {
	for _, o := range occupied {
		if excludeID != "" && o.ID == excludeID {
			continue
		}
		if req.Overlaps(o) {
			return o, true
		}
	}
	return Interval{}, false
}

// Admissible reports whether req overlaps none of the occupied intervals.
func Admissible(req Interval, occupied []Interval, excludeID string) bool {
	_, found := FirstConflict(req, occupied, excludeID)
	return !found
}
