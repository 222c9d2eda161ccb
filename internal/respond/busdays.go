package respond

import "time"

// BusinessDaysBetween counts the calendar days after from up to and including
// to that fall on a weekday. A Thursday submission evaluated the following
// Monday yields 2 (Friday and Monday); weekends never count.
func BusinessDaysBetween(from, to time.Time) int {
	if !from.Before(to) {
		return 0
	}
	to = to.In(from.Location())
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, from.Location())
	n := 0
	for day = day.AddDate(0, 0, 1); !day.After(end); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
