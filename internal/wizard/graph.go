package wizard

import "github.com/inforequest/inforequest/internal/domain"

// Graph is a registry of step descriptors keyed by id.
type Graph[E any] struct {
	Name  string
	Entry StepID
	steps map[StepID]*Step[E]
	order []StepID
}

// NewGraph registers steps and rejects every configuration error that can be
// detected without walking the graph.
func NewGraph[E any](name string, entry StepID, steps ...*Step[E]) (*Graph[E], error) {
	if len(steps) == 0 {
		return nil, configErrorf(name, "no steps defined")
	}
	g := &Graph[E]{Name: name, Entry: entry, steps: make(map[StepID]*Step[E], len(steps))}
	for _, s := range steps {
		if err := g.register(s); err != nil {
			return nil, err
		}
	}
	if entry == "" {
		return nil, configErrorf(name, "no entry step defined")
	}
	if _, ok := g.steps[entry]; !ok {
		return nil, configErrorf(name, "entry step %q not found", entry)
	}
	for _, id := range g.order {
		s := g.steps[id]
		for _, next := range []StepID{s.Next, s.Recovery} {
			if next == "" || next == Done {
				continue
			}
			if _, ok := g.steps[next]; !ok {
				return nil, configErrorf(name, "step %q routes to unknown step %q", id, next)
			}
		}
	}
	return g, nil
}

// MustGraph is NewGraph for graphs declared at package level.
func MustGraph[E any](name string, entry StepID, steps ...*Step[E]) *Graph[E] {
	g, err := NewGraph(name, entry, steps...)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph[E]) register(s *Step[E]) error {
	switch {
	case s == nil:
		return configErrorf(g.Name, "nil step")
	case s.ID == "":
		return configErrorf(g.Name, "step without id")
	case string(s.ID) == domain.GlobalScope || s.ID == Done:
		return configErrorf(g.Name, "step id %q is reserved", s.ID)
	}
	if _, dup := g.steps[s.ID]; dup {
		return configErrorf(g.Name, "duplicate step %q", s.ID)
	}
	switch s.Kind {
	case Structural:
		if s.Route == nil {
			return configErrorf(g.Name, "structural step %q has no route", s.ID)
		}
	case Question, Deadend:
		if s.Next == "" && s.Then == nil {
			return configErrorf(g.Name, "step %q has no successor", s.ID)
		}
	default:
		return configErrorf(g.Name, "step %q has unknown kind %d", s.ID, int(s.Kind))
	}
	for _, name := range s.Globals {
		if name == domain.GlobalScope {
			return configErrorf(g.Name, "step %q declares reserved global %q", s.ID, name)
		}
	}
	g.steps[s.ID] = s
	g.order = append(g.order, s.ID)
	return nil
}

func (g *Graph[E]) Step(id StepID) (*Step[E], bool) {
	s, ok := g.steps[id]
	return s, ok
}

// Steps returns the descriptors in registration order.
func (g *Graph[E]) Steps() []*Step[E] {
	out := make([]*Step[E], 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.steps[id])
	}
	return out
}
