package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// ClockMinutes converts a zero-padded HH:MM to minutes since midnight.
func ClockMinutes(s string) (int, error) {
	if len(s) != len(ClockLayout) {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func CombineDateClock(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ClockMinutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	// Wall-clock construction, so DST transition days resolve to the local reading.
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location()), nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// SplitInstant returns the date and the HH:MM of t.
func SplitInstant(t time.Time) DateClock {
	return DateClock{Date: FormatDate(t), Clock: FormatClock(t)}
}
