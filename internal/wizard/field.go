package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/en"
)

// Field is one input of a step. Clean turns the raw submitted value into its
// typed form; a nil raw value or an empty string means the field is absent.
type Field interface {
	Name() string
	Clean(raw any) (any, error)
}

// ValidationError is a user-facing message explaining a rejected value.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	ErrRequired ValidationError = "This field is required."
	ErrInvalid  ValidationError = "Enter a valid value."

	ErrInvalidDate ValidationError = "Enter a valid date."
)

// Meta carries the attributes shared by every field type.
type Meta struct {
	Key      string
	Label    string
	Required bool
	Initial  any
}

func (s Meta) Name() string { return s.Key }

func (s Meta) absent() (any, error) {
	if s.Required {
		return nil, ErrRequired
	}
	return nil, nil
}

// Option is one selectable value of a choice field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Choice struct {
	Meta
	Options []Option
}

func (f Choice) Clean(raw any) (any, error) {
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	for _, o := range f.Options {
		if o.Value == s {
			return s, nil
		}
	}
	return nil, ValidationError(fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", s))
}

// Boolean is a yes/no question. Accepted spellings are 1/0, yes/no and
// true/false.
type Boolean struct {
	Meta
}

func (f Boolean) Clean(raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	switch strings.ToLower(s) {
	case "1", "yes", "true":
		return true, nil
	case "0", "no", "false":
		return false, nil
	}
	return nil, ErrInvalid
}

type Integer struct {
	Meta
	Min, Max int
}

func (f Integer) Clean(raw any) (any, error) {
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, ValidationError("Enter a whole number.")
	}
	if n < f.Min {
		return nil, ValidationError(fmt.Sprintf("Ensure this value is greater than or equal to %d.", f.Min))
	}
	if f.Max != 0 && n > f.Max {
		return nil, ValidationError(fmt.Sprintf("Ensure this value is less than or equal to %d.", f.Max))
	}
	return n, nil
}

type Text struct {
	Meta
	MaxLength int
}

func (f Text) Clean(raw any) (any, error) {
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	if f.MaxLength > 0 && len([]rune(s)) > f.MaxLength {
		return nil, ValidationError(fmt.Sprintf("Ensure this value has at most %d characters.", f.MaxLength))
	}
	return s, nil
}

var dateLayouts = []string{domain.DateLayout, "2.1.2006", "02.01.2006", "2006/01/02"}

// Only day-resolving rules; time-of-day rules match inside arbitrary text.
var naturalDates = func() *when.Parser {
	w := when.New(nil)
	w.Add(
		en.Weekday(rules.Override),
		en.CasualDate(rules.Override),
		en.Deadline(rules.Override),
		en.PastTime(rules.Override),
		en.ExactMonthDate(rules.Override),
	)
	return w
}()

// numericDate matches input shaped like a layout date. Such input is never
// handed to the phrase parser.
var numericDate = regexp.MustCompile(`^\d+([-./]\d+)+\.?$`)

// Date accepts ISO and dotted dates, or a natural phrase such as "yesterday"
// resolved against Today.
type Date struct {
	Meta
	Today func() time.Time
}

func (f Date) Clean(raw any) (any, error) {
	if t, ok := raw.(time.Time); ok {
		return domain.Day(t), nil
	}
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), nil
		}
	}
	if numericDate.MatchString(s) {
		return nil, ErrInvalidDate
	}
	if _, month := en.MONTH_OFFSET[strings.ToLower(s)]; month {
		return nil, ErrInvalidDate
	}
	base := time.Now()
	if f.Today != nil {
		base = f.Today()
	}
	r, err := naturalDates.Parse(s, base)
	if err != nil || r == nil {
		return nil, ErrInvalidDate
	}
	// The phrase must be the whole input, not a match somewhere inside it.
	if r.Index != 0 || len(strings.TrimSpace(r.Text)) != len(s) {
		return nil, ErrInvalidDate
	}
	return domain.Day(r.Time), nil
}

// Enum is a choice between integer-coded values such as disclosure levels.
type Enum[T ~int] struct {
	Meta
	Options []T
}

func (f Enum[T]) Clean(raw any) (any, error) {
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	return f.parse(s)
}

func (f Enum[T]) parse(s string) (T, error) {
	n, err := strconv.Atoi(s)
	if err == nil {
		for _, o := range f.Options {
			if int(o) == n {
				return o, nil
			}
		}
	}
	return 0, ValidationError(fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", s))
}

// MultiEnum selects any number of integer-coded values.
type MultiEnum[T ~int] struct {
	Meta
	Options []T
}

func (f MultiEnum[T]) Clean(raw any) (any, error) {
	items := rawList(raw)
	if len(items) == 0 {
		return f.absent()
	}
	one := Enum[T]{Options: f.Options}
	out := make([]T, 0, len(items))
	for _, s := range items {
		v, err := one.parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// List is a sequence of opaque identifiers, each accepted by Allowed.
type List struct {
	Meta
	Allowed func(string) bool
}

func (f List) Clean(raw any) (any, error) {
	items := rawList(raw)
	if len(items) == 0 {
		if f.Required {
			return nil, ErrRequired
		}
		return []string{}, nil
	}
	for _, s := range items {
		if f.Allowed != nil && !f.Allowed(s) {
			return nil, ValidationError(fmt.Sprintf("Unknown item %s.", s))
		}
	}
	return items, nil
}

// Lookup resolves a raw identifier into a domain value.
type Lookup[T any] struct {
	Meta
	Options []Option
	Resolve func(string) (T, bool)
}

func (f Lookup[T]) Clean(raw any) (any, error) {
	s, ok := rawString(raw)
	if !ok {
		return f.absent()
	}
	v, found := f.Resolve(s)
	if !found {
		return nil, ValidationError(fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", s))
	}
	return v, nil
}

// LookupList resolves each of several raw identifiers.
type LookupList[T any] struct {
	Meta
	Resolve func(string) (T, bool)
}

func (f LookupList[T]) Clean(raw any) (any, error) {
	items := rawList(raw)
	if len(items) == 0 {
		return f.absent()
	}
	out := make([]T, 0, len(items))
	for _, s := range items {
		v, found := f.Resolve(s)
		if !found {
			return nil, ValidationError(fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", s))
		}
		out = append(out, v)
	}
	return out, nil
}

func rawString(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	case []any:
		if len(v) == 0 {
			return "", false
		}
		return rawString(v[0])
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return rawString(v[0])
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func rawList(raw any) []string {
	var out []string
	switch v := raw.(type) {
	case nil:
	case []any:
		for _, item := range v {
			if s, ok := rawString(item); ok {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s, ok := rawString(item); ok {
				out = append(out, s)
			}
		}
	case string:
		for _, item := range strings.Split(v, ",") {
			if s, ok := rawString(item); ok {
				out = append(out, s)
			}
		}
	default:
		if s, ok := rawString(v); ok {
			out = append(out, s)
		}
	}
	return out
}
