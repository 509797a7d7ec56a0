package analytics

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// PeriodRange resolves a named period relative to now. Days start at
// midnight in now's location and End is exclusive.
func PeriodRange(period string, now time.Time) (*DateRange, error) {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	var start, end time.Time
	switch period {
	case "today", "":
		start, end = today, tomorrow
	case "yesterday":
		start, end = today.AddDate(0, 0, -1), today
	case "last_7_days":
		start, end = today.AddDate(0, 0, -6), tomorrow
	case "last_30_days":
		start, end = today.AddDate(0, 0, -29), tomorrow
	case "this_month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = tomorrow
	case "last_month":
		end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start = end.AddDate(0, -1, 0)
	default:
		return nil, fmt.Errorf("unknown period %q", period)
	}
	return &DateRange{Start: start, End: end}, nil
}

// CustomRange checks an explicit [start, end) range
func CustomRange(start, end time.Time, maxDays int) (*DateRange, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("start must be before end")
	}
	if maxDays > 0 && end.Sub(start) > time.Duration(maxDays)*24*time.Hour {
		return nil, fmt.Errorf("range longer than %d days", maxDays)
	}
	return &DateRange{Start: start, End: end}, nil
}

// DayLabels lists every calendar day the range touches
func DayLabels(r DateRange) []string {
	labels := []string{}
	for day := startOfDay(r.Start); day.Before(r.End); day = day.AddDate(0, 0, 1) {
		labels = append(labels, day.Format(dayLayout))
	}
	return labels
}

// DayLabel is the bucket label of t in loc
func DayLabel(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
