package wizard

import (
	"sort"
	"time"
)

// Values is an immutable accumulator of named values. With returns a new
// accumulator; the receiver is never modified.
type Values struct {
	m map[string]any
}

func NewValues(m map[string]any) Values {
	return Values{}.With(m)
}

func (v Values) With(updates map[string]any) Values {
	if len(updates) == 0 {
		return v
	}
	m := make(map[string]any, len(v.m)+len(updates))
	for k, val := range v.m {
		m[k] = val
	}
	for k, val := range updates {
		m[k] = val
	}
	return Values{m: m}
}

func (v Values) Get(name string) (any, bool) {
	val, ok := v.m[name]
	return val, ok
}

// Has reports whether name is set to a non-nil value.
func (v Values) Has(name string) bool {
	return v.m[name] != nil
}

func (v Values) String(name string) string {
	s, _ := v.m[name].(string)
	return s
}

func (v Values) Bool(name string) bool {
	b, _ := v.m[name].(bool)
	return b
}

func (v Values) Int(name string) int {
	n, _ := v.m[name].(int)
	return n
}

func (v Values) Time(name string) time.Time {
	t, _ := v.m[name].(time.Time)
	return t
}

func (v Values) Len() int { return len(v.m) }

func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the accumulated values.
func (v Values) Map() map[string]any {
	m := make(map[string]any, len(v.m))
	for k, val := range v.m {
		m[k] = val
	}
	return m
}

// Get is a typed read of an accumulated value.
func Get[T any](v Values, name string) (T, bool) {
	val, ok := v.m[name].(T)
	return val, ok
}
