package availability

import (
	"sort"
	"time"
)

// MinBookingDays is the minimum length (in inclusive days) a gap must have to
// be reported as bookable. It governs reported gaps only; IsAvailable does
// not apply it.
const MinBookingDays = 2

// Period is an inclusive date range [Start, End].
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the inclusive length of the period in days.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// Window is a listing's availability window. A nil bound means the listing is
// not bookable.
type Window struct {
	From *time.Time
	To   *time.Time
}

// Defined reports whether both bounds are present.
func (w Window) Defined() bool {
	return w.From != nil && w.To != nil
}

// Date normalizes a time to UTC midnight so day arithmetic is exact.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Overlaps is the inclusive interval overlap test:
// a.start <= b.end AND a.end >= b.start.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// ComputePeriods returns the ordered, disjoint gaps inside the window that are
// not covered by any reservation and are at least MinBookingDays long.
// An undefined window yields no periods.
func ComputePeriods(w Window, reserved []Period) []Period {
	if !w.Defined() {
		return nil
	}
	from := Date(*w.From)
	to := Date(*w.To)
	if from.After(to) {
		return nil
	}

	sorted := make([]Period, len(reserved))
	for i, r := range reserved {
		sorted[i] = Period{Start: Date(r.Start), End: Date(r.End)}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var periods []Period
	cursor := from
	for _, r := range sorted {
		if cursor.Before(r.Start) {
			gap := Period{Start: cursor, End: r.Start.AddDate(0, 0, -1)}
			if gap.End.After(to) {
				gap.End = to
			}
			if gap.Days() >= MinBookingDays {
				periods = append(periods, gap)
			}
		}
		next := r.End.AddDate(0, 0, 1)
		if next.After(cursor) {
			cursor = next
		}
	}
	if !cursor.After(to) {
		gap := Period{Start: cursor, End: to}
		if gap.Days() >= MinBookingDays {
			periods = append(periods, gap)
		}
	}
	return periods
}

// IsAvailable reports whether [start, end] lies inside the window and
// overlaps no existing reservation. The MinBookingDays threshold is
// intentionally not applied here.
func IsAvailable(w Window, reserved []Period, start, end time.Time) bool {
	if !w.Defined() {
		return false
	}
	start, end = Date(start), Date(end)
	if start.Before(Date(*w.From)) || end.After(Date(*w.To)) {
		return false
	}
	for _, r := range reserved {
		if Overlaps(start, end, Date(r.Start), Date(r.End)) {
			return false
		}
	}
	return true
}

// IsReserved reports whether the listing has no bookable gap left.
func IsReserved(w Window, reserved []Period) bool {
	return len(ComputePeriods(w, reserved)) == 0
}
