package wizard

import "fmt"

// StepID names a step within a graph. Its string form is the draft scope
// the step's local values are stored under.
type StepID string

// Done is the terminal sentinel: a successor of Done ends the path.
const Done StepID = "done"

type Kind int

const (
	// Structural steps only compute a successor from context and
	// accumulated values. They are never shown and never counted.
	Structural Kind = iota + 1
	// Question steps collect input and count toward the visible numbering.
	Question
	// Deadend steps explain why the wizard cannot continue. They are shown
	// but never counted and never validate.
	Deadend
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Question:
		return "question"
	case Deadend:
		return "deadend"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Context is what a step sees while the engine walks the graph: the
// wizard-specific environment, the values accumulated by earlier steps, and
// the steps realized so far.
type Context[E any] struct {
	Env     E
	Globals Values
	Path    []*Realized
}

// Realized returns the earlier realized step with the given id, or nil.
func (c *Context[E]) Realized(id StepID) *Realized {
	for _, r := range c.Path {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Route is a transition decision: the successor and the global values it
// publishes.
type Route struct {
	Next    StepID
	Globals map[string]any
}

func To(next StepID) Route { return Route{Next: next} }

// Step describes one node of a wizard graph.
//
// Structural steps set Route. Question and Deadend steps declare Fields; the
// names listed in Globals are stored in the shared scope and, once the step
// validates, published to the accumulator. Then picks the successor of a
// valid step (defaulting to Next) and Recovery the successor of an invalid
// or unreachable one (defaulting to Next). Derive runs after a successful
// Clean; its values are published as globals and its error invalidates the
// step.
type Step[E any] struct {
	ID       StepID
	Kind     Kind
	Title    string
	Globals  []string
	Fields   func(c *Context[E]) []Field
	Clean    func(c *Context[E], v Values) FieldErrors
	Route    func(c *Context[E]) Route
	Derive   func(c *Context[E], v Values) (map[string]any, error)
	Then     func(c *Context[E], v Values) Route
	Next     StepID
	Recovery StepID
	Describe func(c *Context[E]) map[string]any
}

func (s *Step[E]) isGlobal(name string) bool {
	for _, g := range s.Globals {
		if g == name {
			return true
		}
	}
	return false
}

func (s *Step[E]) recovery() StepID {
	if s.Recovery != "" {
		return s.Recovery
	}
	return s.Next
}

// Outcome is the result of a step's post-transition: Valid or Invalid.
type Outcome interface {
	Successor() StepID
	isOutcome()
}

type Valid struct {
	Next    StepID
	Locals  map[string]any
	Globals map[string]any
}

func (o Valid) Successor() StepID { return o.Next }
func (Valid) isOutcome()          {}

type Invalid struct {
	Recovery StepID
	Errors   FieldErrors
}

func (o Invalid) Successor() StepID { return o.Recovery }
func (Invalid) isOutcome()          {}

// NonFieldErrors is the FieldErrors key for errors not tied to one field.
const NonFieldErrors = "__all__"

// FieldErrors maps field names to their validation messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) FieldErrors {
	if e == nil {
		e = make(FieldErrors)
	}
	e[field] = append(e[field], msg)
	return e
}

func (e FieldErrors) Empty() bool { return len(e) == 0 }

// Realized is a step instantiated at a position of the current path.
type Realized struct {
	ID    StepID
	Kind  Kind
	Title string
	Index int
	// Number is the visible 1-based step number; uncounted steps share the
	// number of the preceding counted step.
	Number        int
	Counted       bool
	Accessible    bool
	EntryComputed bool
	Bound         bool
	IsValid       bool
	Fields        []Field
	Globals       []string
	Initial       map[string]any
	Data          map[string]any
	Errors        FieldErrors
	Locals        Values
	Outcome       Outcome
	Extra         map[string]any
}

// Raw returns the raw value bound to a field, falling back to the initial
// value stored in the draft.
func (r *Realized) Raw(field string) any {
	if r.Bound {
		return r.Data[field]
	}
	return r.Initial[field]
}
