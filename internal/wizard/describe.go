package wizard

import (
	"fmt"
	"strconv"
)

// FieldInfo is the transport-facing description of a field.
type FieldInfo struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Label    string   `json:"label,omitempty"`
	Required bool     `json:"required,omitempty"`
	Initial  any      `json:"initial,omitempty"`
	Options  []Option `json:"options,omitempty"`
	Min      *int     `json:"min,omitempty"`
	Max      *int     `json:"max,omitempty"`
}

type describer interface {
	Info() FieldInfo
}

// Describe returns the description of any field; fields outside this
// package are reported with type "custom".
func Describe(f Field) FieldInfo {
	if d, ok := f.(describer); ok {
		return d.Info()
	}
	return FieldInfo{Name: f.Name(), Type: "custom"}
}

func (s Meta) info(typ string) FieldInfo {
	return FieldInfo{Name: s.Key, Type: typ, Label: s.Label, Required: s.Required, Initial: s.Initial}
}

func (f Choice) Info() FieldInfo {
	i := f.info("choice")
	i.Options = f.Options
	return i
}

func (f Boolean) Info() FieldInfo { return f.info("boolean") }

func (f Integer) Info() FieldInfo {
	i := f.info("integer")
	i.Min = &f.Min
	if f.Max != 0 {
		i.Max = &f.Max
	}
	return i
}

func (f Text) Info() FieldInfo {
	i := f.info("text")
	if f.MaxLength > 0 {
		i.Max = &f.MaxLength
	}
	return i
}

func (f Date) Info() FieldInfo { return f.info("date") }

func (f Enum[T]) Info() FieldInfo {
	i := f.info("choice")
	i.Options = enumOptions(f.Options)
	return i
}

func (f MultiEnum[T]) Info() FieldInfo {
	i := f.info("multichoice")
	i.Options = enumOptions(f.Options)
	return i
}

func (f List) Info() FieldInfo { return f.info("list") }

func (f Lookup[T]) Info() FieldInfo {
	i := f.info("choice")
	i.Options = f.Options
	return i
}

func (f LookupList[T]) Info() FieldInfo { return f.info("list") }

func enumOptions[T ~int](values []T) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		out = append(out, Option{Value: strconv.Itoa(int(v)), Label: fmt.Sprint(v)})
	}
	return out
}
