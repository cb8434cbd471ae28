package billing

import "time"

const day = 24 * time.Hour

// CalendarDay strips the time of day from t, keeping the calendar date as seen
// in t's own location, and returns it as a UTC midnight.
// All window arithmetic runs on UTC midnights so DST never shifts a day count.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayInMonth returns the UTC midnight of the given day in year/month.
// month may be out of range (13 is January of the next year). A day past the
// end of the month is clamped to its last day: 31 in April is April 30,
// and 30 in February is the 28th or 29th. time.Date overflow is never used
// to move a day into the following month.
func DayInMonth(year int, month time.Month, dayOfMonth int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := LastDayOfMonth(first.Year(), first.Month())
	if dayOfMonth > last {
		dayOfMonth = last
	}
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}
	return time.Date(first.Year(), first.Month(), dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the number of days in year/month.
// day=0 of month+1 is the last day of month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns ceil((to - from) / 24h). Negative spans stay negative.
func DaysBetween(from, to time.Time) int {
	span := to.Sub(from)
	days := int(span / day)
	if span%day > 0 {
		days++
	}
	return days
}
