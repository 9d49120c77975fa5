package coordinator

import "time"

const dateLayout = "2006-01-02"

// addMonths shifts t by whole calendar months, clamping the day to the last
// day of the target month. Three months before Jan 31 is Oct 31; one month
// after Jan 31 is Feb 28 (or 29), never a normalized Mar 2.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()

	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
