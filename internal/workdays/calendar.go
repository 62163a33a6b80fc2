// Package workdays counts working days: Monday to Friday minus holidays.
package workdays

import (
	"time"

	"github.com/inforequest/inforequest/internal/domain"
)

type Option func(*Calendar)

// WithHolidays marks additional non-working days.
func WithHolidays(days ...time.Time) Option {
	return func(c *Calendar) {
		for _, d := range days {
			c.holidays[domain.Day(d)] = true
		}
	}
}

// WithCzechHolidays adds the Czech public holidays of every year.
func WithCzechHolidays() Option {
	return func(c *Calendar) { c.czech = true }
}

type Calendar struct {
	holidays map[time.Time]bool
	czech    bool
}

var _ domain.Calendar = (*Calendar)(nil)

func New(opts ...Option) *Calendar {
	c := &Calendar{holidays: make(map[time.Time]bool)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calendar) IsWorkday(t time.Time) bool {
	d := domain.Day(t)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c.holidays[d] {
		return false
	}
	if c.czech && isCzechHoliday(d) {
		return false
	}
	return true
}

func (c *Calendar) Between(from, to time.Time) int {
	from, to = domain.Day(from), domain.Day(to)
	sign := 1
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsWorkday(d) {
			n++
		}
	}
	return sign * n
}

// Advance moves days working days forward, or backward when negative.
func (c *Calendar) Advance(from time.Time, days int) time.Time {
	d := domain.Day(from)
	step := 1
	if days < 0 {
		step, days = -1, -days
	}
	for days > 0 {
		d = d.AddDate(0, 0, step)
		if c.IsWorkday(d) {
			days--
		}
	}
	return d
}
