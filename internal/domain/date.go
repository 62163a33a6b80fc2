package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical textual form of a calendar date.
const DateLayout = "2006-01-02"

// Calendar counts and advances working days.
type Calendar interface {
	// Between returns the number of working days in (from, to], negative
	// when to precedes from.
	Between(from, to time.Time) int
	// Advance returns the days-th working day after from.
	Advance(from time.Time, days int) time.Time
}

// Clock supplies the current calendar date.
type Clock interface {
	Today() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Today() time.Time { return Day(f()) }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always reports the same day.
func FixedClock(t time.Time) Clock {
	day := Day(t)
	return ClockFunc(func() time.Time { return day })
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from from to to.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Round(time.Hour).Hours() / 24)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
