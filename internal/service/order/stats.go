package order

import (
	"strings"
	"time"
)

// Range selects the window the dashboard chart covers.
type Range string

const (
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

// ParseRange maps a query value to a Range; anything unknown means a year.
func ParseRange(s string) Range {
	switch Range(strings.ToLower(strings.TrimSpace(s))) {
	case RangeWeek:
		return RangeWeek
	case RangeMonth:
		return RangeMonth
	default:
		return RangeYear
	}
}

// Stats is the chart series: one label per non-empty bucket with its count.
type Stats struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

// Window returns the inclusive bounds of the calendar period of r containing
// now, evaluated in now's location. Weeks start on Monday.
func Window(r Range, now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	loc := now.Location()

	switch r {
	case RangeWeek:
		offset := (int(now.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 7)
	case RangeMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(1, 0, 0)
	}
	return start, end.Add(-time.Nanosecond)
}

func dayLabel(day string) string {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return day
	}
	return t.Format("02 Jan")
}
