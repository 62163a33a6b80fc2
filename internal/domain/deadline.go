package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoDeadline is returned by every derived query on a deadline that has no
// magnitude.
var ErrNoDeadline = errors.New("no deadline applies")

type DeadlineKind int

const (
	DeadlineObligee   DeadlineKind = 1
	DeadlineApplicant DeadlineKind = 2
)

func (k DeadlineKind) String() string {
	switch k {
	case DeadlineObligee:
		return "obligee"
	case DeadlineApplicant:
		return "applicant"
	}
	return fmt.Sprintf("DeadlineKind(%d)", int(k))
}

type DeadlineUnit int

const (
	UnitCalendarDays DeadlineUnit = 1
	UnitWorkdays     DeadlineUnit = 2
)

func (u DeadlineUnit) String() string {
	switch u {
	case UnitCalendarDays:
		return "calendar_days"
	case UnitWorkdays:
		return "workdays"
	}
	return fmt.Sprintf("DeadlineUnit(%d)", int(u))
}

func ParseDeadlineUnit(s string) (DeadlineUnit, error) {
	switch s {
	case "calendar_days", "calendar", "cd":
		return UnitCalendarDays, nil
	case "workdays", "working_days", "wd":
		return UnitWorkdays, nil
	}
	return 0, fmt.Errorf("unknown deadline unit %q", s)
}

// Deadline is an immutable statutory deadline counted from a base date. The
// applicant extension is always expressed in calendar days and is added on top
// of the deadline date.
type Deadline struct {
	Kind               DeadlineKind
	Unit               DeadlineUnit
	Base               time.Time
	Value              *int
	ApplicantExtension int

	cal   Calendar
	clock Clock

	once sync.Once
	date time.Time
}

// NewDeadline returns a deadline; a nil value means no deadline applies.
// A nil clock falls back to SystemClock.
func NewDeadline(kind DeadlineKind, unit DeadlineUnit, base time.Time, value *int, applicantExtension int, cal Calendar, clock Clock) *Deadline {
	if clock == nil {
		clock = SystemClock
	}
	return &Deadline{
		Kind:               kind,
		Unit:               unit,
		Base:               Day(base),
		Value:              value,
		ApplicantExtension: applicantExtension,
		cal:                cal,
		clock:              clock,
	}
}

func (d *Deadline) Applies() bool { return d.Value != nil }

// Date is the day the deadline falls on.
func (d *Deadline) Date() (time.Time, error) {
	if d.Value == nil {
		return time.Time{}, ErrNoDeadline
	}
	d.once.Do(func() {
		if d.Unit == UnitWorkdays {
			d.date = Day(d.cal.Advance(d.Base, *d.Value))
		} else {
			d.date = d.Base.AddDate(0, 0, *d.Value)
		}
	})
	return d.date, nil
}

// ExtendedDate is the deadline date pushed by the applicant extension.
func (d *Deadline) ExtendedDate() (time.Time, error) {
	date, err := d.Date()
	if err != nil {
		return time.Time{}, err
	}
	return date.AddDate(0, 0, d.ApplicantExtension), nil
}

func (d *Deadline) RemainingAt(unit DeadlineUnit, at time.Time) (int, error) {
	date, err := d.Date()
	if err != nil {
		return 0, err
	}
	return d.count(unit, Day(at), date), nil
}

func (d *Deadline) ExtendedRemainingAt(unit DeadlineUnit, at time.Time) (int, error) {
	date, err := d.ExtendedDate()
	if err != nil {
		return 0, err
	}
	return d.count(unit, Day(at), date), nil
}

// PassedAt counts the days elapsed from the base date to at.
func (d *Deadline) PassedAt(unit DeadlineUnit, at time.Time) (int, error) {
	if d.Value == nil {
		return 0, ErrNoDeadline
	}
	return d.count(unit, d.Base, Day(at)), nil
}

// IsMissedAt reports whether at lies strictly after the deadline date.
func (d *Deadline) IsMissedAt(at time.Time) (bool, error) {
	date, err := d.Date()
	if err != nil {
		return false, err
	}
	return date.Before(Day(at)), nil
}

func (d *Deadline) IsExtendedMissedAt(at time.Time) (bool, error) {
	date, err := d.ExtendedDate()
	if err != nil {
		return false, err
	}
	return date.Before(Day(at)), nil
}

func (d *Deadline) Remaining(unit DeadlineUnit) (int, error) {
	return d.RemainingAt(unit, d.clock.Today())
}

func (d *Deadline) ExtendedRemaining(unit DeadlineUnit) (int, error) {
	return d.ExtendedRemainingAt(unit, d.clock.Today())
}

func (d *Deadline) Passed(unit DeadlineUnit) (int, error) {
	return d.PassedAt(unit, d.clock.Today())
}

func (d *Deadline) IsMissed() (bool, error) {
	return d.IsMissedAt(d.clock.Today())
}

func (d *Deadline) IsExtendedMissed() (bool, error) {
	return d.IsExtendedMissedAt(d.clock.Today())
}

func (d *Deadline) count(unit DeadlineUnit, from, to time.Time) int {
	if unit == UnitWorkdays {
		return d.cal.Between(from, to)
	}
	return DaysBetween(from, to)
}
