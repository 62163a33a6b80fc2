package wizard

import (
	"time"

	"github.com/inforequest/inforequest/internal/domain"
)

// StepData reads the raw values of a step from a draft: the step's own scope
// plus each of its global fields from the shared scope. The same function
// feeds initial values and replay binding.
func StepData(d *domain.Draft, id StepID, globals []string) map[string]any {
	out := make(map[string]any)
	for k, v := range d.Scope(string(id)) {
		out[k] = v
	}
	shared := d.Scope(domain.GlobalScope)
	for _, name := range globals {
		out[name] = shared[name]
	}
	return out
}

// Commit writes the raw values of a realized step into the draft, global
// fields into the shared scope and the rest under the step's id.
func Commit(d *domain.Draft, r *Realized) {
	for _, f := range r.Fields {
		name := f.Name()
		scope := string(r.ID)
		for _, g := range r.Globals {
			if g == name {
				scope = domain.GlobalScope
				break
			}
		}
		d.Set(scope, name, normalizeRaw(r.Data[name]))
	}
	d.Step = string(r.ID)
}

func normalizeRaw(raw any) any {
	switch v := raw.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case int64:
		return float64(v)
	case time.Time:
		return v.Format(domain.DateLayout)
	}
	return raw
}
