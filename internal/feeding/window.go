package feeding

import "time"

// Day is the fixed length of a consumption window.
const Day = 24 * time.Hour

// Window returns the half-open consumption window [from, to) containing ref.
// from is the latest instant at or before ref whose local time-of-day is the
// start of day; to is always from + 24h, even across DST changes.
func Window(ref time.Time, sod StartOfDay) (from, to time.Time) {
	loc := sod.Loc
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := ref.In(loc).Date()
	from = time.Date(y, m, d, sod.Hour, sod.Minute, 0, 0, loc)
	if from.After(ref) {
		from = time.Date(y, m, d-1, sod.Hour, sod.Minute, 0, 0, loc)
	}
	to = from.Add(Day)
	// On a 25h local day the fixed window can end before ref; keep ref inside.
	for !ref.Before(to) {
		from = to
		to = from.Add(Day)
	}
	return from, to
}
