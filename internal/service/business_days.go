package service

import "time"

const dateLayout = "2006-01-02"

// BusinessDaysBetween counts Monday through Friday dates in the inclusive
// range. Weekends inside the range do not consume vacation days.
func BusinessDaysBetween(start, end time.Time) int {
	start = truncateToDate(start)
	end = truncateToDate(end)
	if end.Before(start) {
		return 0
	}
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days++
		}
	}
	return days
}

// CalendarDaysBetween counts every date in the inclusive range.
func CalendarDaysBetween(start, end time.Time) int {
	start = truncateToDate(start)
	end = truncateToDate(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}
