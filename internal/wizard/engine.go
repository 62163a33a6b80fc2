package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
)

type State int

const (
	AwaitingInput State = iota + 1
	NavigationCorrected
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case NavigationCorrected:
		return "navigation_corrected"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Request addresses one wizard instance of one owner. Index is the raw
// requested step index as it arrived; Data holds the submitted raw values
// and is nil when nothing is being submitted.
type Request[E any] struct {
	Owner    string
	Instance string
	Index    string
	Data     map[string]any
	Env      E
}

// Result is the outcome of replaying a wizard instance.
type Result struct {
	State     State
	Instance  string
	Steps     []*Realized
	Current   *Realized
	Globals   Values
	Total     int
	Committed bool
	Redirect  string
	Draft     *domain.Draft
}

func (r *Result) Next() *Realized {
	if r.Current == nil || r.Current.Index+1 >= len(r.Steps) {
		return nil
	}
	return r.Steps[r.Current.Index+1]
}

func (r *Result) Prev() *Realized {
	if r.Current == nil || r.Current.Index == 0 {
		return nil
	}
	return r.Steps[r.Current.Index-1]
}

func (r *Result) IsLast() bool { return r.Next() == nil }

// Completion is handed to the finish callback once the last step validates.
type Completion[E any] struct {
	Instance string
	Owner    string
	Env      E
	Globals  Values
	Steps    []*Realized
	Draft    *domain.Draft
}

// FinishFunc applies a completed wizard and returns where to go next.
// Returning a *RejectedError keeps the wizard open on its last step.
type FinishFunc[E any] func(ctx context.Context, c Completion[E]) (string, error)

type Engine[E any] struct {
	graph    *Graph[E]
	drafts   ports.DraftStore
	finish   FinishFunc[E]
	status   StatusHandler
	now      func() time.Time
	maxSteps int
}

func New[E any](graph *Graph[E], drafts ports.DraftStore, finish FinishFunc[E]) *Engine[E] {
	return &Engine[E]{
		graph:    graph,
		drafts:   drafts,
		finish:   finish,
		status:   noopStatus{},
		now:      time.Now,
		maxSteps: 1000,
	}
}

func (e *Engine[E]) Graph() *Graph[E] { return e.graph }

func (e *Engine[E]) SetStatusHandler(h StatusHandler) {
	e.status = h
}

func (e *Engine[E]) SetMaxSteps(n int) {
	e.maxSteps = n
}

func (e *Engine[E]) SetNow(now func() time.Time) {
	e.now = now
}

// Replay rebuilds the path of an instance from its draft without changing
// anything. Submitted data, if any, is bound to the requested step.
func (e *Engine[E]) Replay(ctx context.Context, req Request[E]) (*Result, error) {
	draft, err := e.load(ctx, req)
	if err != nil {
		return nil, err
	}
	path, globals, err := e.walk(ctx, req, draft)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, configErrorf(e.graph.Name, "no steps realized")
	}

	idx, err := strconv.Atoi(req.Index)
	if err != nil {
		idx = -1
	}
	idx = max(0, min(idx, len(path)-1))
	for idx > 0 && !path[idx].Accessible {
		idx--
	}

	res := &Result{
		State:    AwaitingInput,
		Instance: req.Instance,
		Steps:    path,
		Current:  path[idx],
		Globals:  globals,
		Draft:    draft,
	}
	for _, r := range path {
		if r.Counted {
			res.Total++
		}
	}
	if strconv.Itoa(idx) != req.Index {
		res.State = NavigationCorrected
		e.status.OnNavigationCorrected(req.Instance, req.Index, res.Current)
	}
	return res, nil
}

// Submit replays with req.Data bound to the requested step. A valid step is
// committed to the draft; a valid last step also finishes the wizard and
// deletes the draft.
func (e *Engine[E]) Submit(ctx context.Context, req Request[E]) (*Result, error) {
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	res, err := e.Replay(ctx, req)
	if err != nil {
		return nil, err
	}
	cur := res.Current
	if res.State != AwaitingInput || !cur.IsValid {
		return res, nil
	}

	staged := res.Draft.Clone()
	Commit(staged, cur)
	staged.Modified = e.now()
	if err := staged.Validate(); err != nil {
		return nil, err
	}
	if err := e.drafts.SaveDraft(ctx, staged); err != nil {
		return nil, fmt.Errorf("saving draft %q: %w", staged.ID, err)
	}
	res.Draft = staged
	res.Committed = true

	if !res.IsLast() {
		return res, nil
	}

	redirect, err := e.finish(ctx, Completion[E]{
		Instance: req.Instance,
		Owner:    req.Owner,
		Env:      req.Env,
		Globals:  res.Globals,
		Steps:    res.Steps,
		Draft:    staged,
	})
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		cur.Errors = cur.Errors.Add(NonFieldErrors, rejected.Message)
		cur.IsValid = false
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finishing %q: %w", req.Instance, err)
	}

	if err := e.drafts.DeleteDraft(ctx, staged.ID, staged.Owner); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("deleting draft %q: %w", staged.ID, err)
	}
	res.State = Finished
	res.Redirect = redirect
	res.Draft = nil
	e.status.OnFinished(req.Instance, redirect)
	return res, nil
}

// Abandon discards the draft of an instance. Abandoning an instance with no
// draft is not an error.
func (e *Engine[E]) Abandon(ctx context.Context, owner, instance string) error {
	err := e.drafts.DeleteDraft(ctx, instance, owner)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("deleting draft %q: %w", instance, err)
	}
	return nil
}

func (e *Engine[E]) load(ctx context.Context, req Request[E]) (*domain.Draft, error) {
	draft, err := e.drafts.LoadDraft(ctx, req.Instance, req.Owner)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.NewDraft(req.Instance, req.Owner), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft %q: %w", req.Instance, err)
	}
	return draft, nil
}

func (e *Engine[E]) walk(ctx context.Context, req Request[E], draft *domain.Draft) ([]*Realized, Values, error) {
	target, err := strconv.Atoi(req.Index)
	if err != nil {
		target = -1
	}

	c := &Context[E]{Env: req.Env}
	accessible := true
	entryComputed := false
	seen := make(map[StepID]bool)
	number := 0
	visits := 0

	for id := e.graph.Entry; id != Done; {
		if err := ctx.Err(); err != nil {
			return nil, Values{}, fmt.Errorf("replay cancelled: %w", err)
		}
		visits++
		if visits > e.maxSteps {
			return nil, Values{}, configErrorf(e.graph.Name, "exceeded maximum step count (%d)", e.maxSteps)
		}

		step, ok := e.graph.Step(id)
		if !ok {
			return nil, Values{}, configErrorf(e.graph.Name, "step %q not found", id)
		}

		if step.Kind == Structural {
			route := step.Route(c)
			if accessible {
				c.Globals = c.Globals.With(route.Globals)
			}
			if route.Next == "" {
				return nil, Values{}, configErrorf(e.graph.Name, "structural step %q chose no successor", id)
			}
			id = route.Next
			entryComputed = true
			continue
		}

		if seen[id] {
			return nil, Values{}, configErrorf(e.graph.Name, "step %q realized twice in one path", id)
		}
		seen[id] = true

		r := &Realized{
			ID:            step.ID,
			Kind:          step.Kind,
			Title:         step.Title,
			Index:         len(c.Path),
			Counted:       step.Kind == Question,
			Accessible:    accessible,
			EntryComputed: entryComputed,
			Globals:       step.Globals,
		}
		entryComputed = false
		if r.Counted {
			number++
		}
		r.Number = number

		var cleaned, derived map[string]any
		if accessible {
			if step.Fields != nil {
				r.Fields = step.Fields(c)
			}
			r.Initial = StepData(draft, step.ID, step.Globals)
			switch {
			case r.Index < target:
				r.Data, r.Bound = r.Initial, true
			case r.Index == target && req.Data != nil:
				r.Data, r.Bound = req.Data, true
			}
			if r.Bound {
				cleaned, derived = validate(c, step, r)
			}
			if !r.IsValid {
				accessible = false
			}
		}

		if r.IsValid {
			route := Route{Next: step.Next}
			values := NewValues(cleaned)
			if step.Then != nil {
				route = step.Then(c, values)
			}
			locals, globals := make(map[string]any), make(map[string]any)
			for name, v := range cleaned {
				if step.isGlobal(name) {
					globals[name] = v
				} else {
					locals[name] = v
				}
			}
			for name, v := range derived {
				globals[name] = v
			}
			for name, v := range route.Globals {
				globals[name] = v
			}
			r.Locals = NewValues(locals)
			r.Outcome = Valid{Next: route.Next, Locals: locals, Globals: globals}
			c.Globals = c.Globals.With(globals)
		} else {
			r.Outcome = Invalid{Recovery: step.recovery(), Errors: r.Errors}
		}
		if r.Accessible && step.Describe != nil {
			r.Extra = step.Describe(c)
		}

		c.Path = append(c.Path, r)
		e.status.OnStepRealized(req.Instance, r)

		id = r.Outcome.Successor()
		if id == "" {
			return nil, Values{}, configErrorf(e.graph.Name, "step %q chose no successor", step.ID)
		}
	}
	return c.Path, c.Globals, nil
}

func validate[E any](c *Context[E], step *Step[E], r *Realized) (cleaned, derived map[string]any) {
	cleaned = make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		v, err := f.Clean(r.Data[f.Name()])
		if err != nil {
			r.Errors = r.Errors.Add(f.Name(), err.Error())
			continue
		}
		cleaned[f.Name()] = v
	}
	if step.Kind == Deadend {
		r.Errors = r.Errors.Add(NonFieldErrors, "deadend")
	}
	if r.Errors.Empty() && step.Clean != nil {
		for field, msgs := range step.Clean(c, NewValues(cleaned)) {
			for _, msg := range msgs {
				r.Errors = r.Errors.Add(field, msg)
			}
			delete(cleaned, field)
		}
	}
	if r.Errors.Empty() && step.Derive != nil {
		var err error
		if derived, err = step.Derive(c, NewValues(cleaned)); err != nil {
			r.Errors = r.Errors.Add(NonFieldErrors, err.Error())
			derived = nil
		}
	}
	r.IsValid = r.Errors.Empty()
	return cleaned, derived
}
