// Package memory keeps drafts and inforequests in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
)

type draftKey struct {
	id, owner string
}

type Store struct {
	mu           sync.Mutex
	drafts       map[draftKey]*domain.Draft
	inforequests map[int64]*domain.Inforequest
	obligees     map[int64]domain.Obligee
	nextID       int64
}

var (
	_ ports.DraftStore       = (*Store)(nil)
	_ ports.InforequestStore = (*Store)(nil)
	_ ports.ObligeeStore     = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		drafts:       make(map[draftKey]*domain.Draft),
		inforequests: make(map[int64]*domain.Inforequest),
		obligees:     make(map[int64]domain.Obligee),
	}
}

func (s *Store) LoadDraft(_ context.Context, id, owner string) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftKey{id, owner}]
	if !ok {
		return nil, fmt.Errorf("draft %q: %w", id, ports.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *Store) SaveDraft(_ context.Context, d *domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draftKey{d.ID, d.Owner}] = d.Clone()
	return nil
}

func (s *Store) DeleteDraft(_ context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := draftKey{id, owner}
	if _, ok := s.drafts[k]; !ok {
		return fmt.Errorf("draft %q: %w", id, ports.ErrNotFound)
	}
	delete(s.drafts, k)
	return nil
}

func (s *Store) ListDrafts(_ context.Context, owner string) ([]*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Draft
	for k, d := range s.drafts {
		if k.owner == owner {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// GetInforequest returns the stored inforequest itself; callers must not
// mutate it outside the store's methods.
func (s *Store) GetInforequest(_ context.Context, id int64, owner string) (*domain.Inforequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ir, ok := s.inforequests[id]
	if !ok || ir.Owner != owner {
		return nil, fmt.Errorf("inforequest %d: %w", id, ports.ErrNotFound)
	}
	return ir, nil
}

func (s *Store) CreateInforequest(_ context.Context, ir *domain.Inforequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ir.ID == 0 {
		ir.ID = s.id()
	}
	for _, b := range ir.Branches {
		if b.ID == 0 {
			b.ID = s.id()
		}
		for _, a := range b.Actions {
			if a.ID == 0 {
				a.ID = s.id()
			}
			a.BranchID = b.ID
		}
	}
	for _, e := range ir.Emails {
		if e.ID == 0 {
			e.ID = s.id()
		}
	}
	s.inforequests[ir.ID] = ir
	return nil
}

func (s *Store) CreateBranch(_ context.Context, inforequestID int64, b *domain.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ir, ok := s.inforequests[inforequestID]
	if !ok {
		return fmt.Errorf("inforequest %d: %w", inforequestID, ports.ErrNotFound)
	}
	b.ID = s.id()
	for _, a := range b.Actions {
		a.ID = s.id()
		a.BranchID = b.ID
	}
	ir.Branches = append(ir.Branches, b)
	return nil
}

func (s *Store) branch(id int64) *domain.Branch {
	for _, ir := range s.inforequests {
		if b := ir.Branch(id); b != nil {
			return b
		}
	}
	return nil
}

func (s *Store) CreateAction(_ context.Context, a *domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.branch(a.BranchID)
	if b == nil {
		return fmt.Errorf("branch %d: %w", a.BranchID, ports.ErrNotFound)
	}
	a.ID = s.id()
	b.Actions = append(b.Actions, a)
	return nil
}

func (s *Store) UpdateAction(_ context.Context, a *domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.branch(a.BranchID)
	if b == nil {
		return fmt.Errorf("branch %d: %w", a.BranchID, ports.ErrNotFound)
	}
	for i, existing := range b.Actions {
		if existing.ID == a.ID {
			b.Actions[i] = a
			return nil
		}
	}
	return fmt.Errorf("action %d: %w", a.ID, ports.ErrNotFound)
}

func (s *Store) CreateEmail(_ context.Context, inforequestID int64, e *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ir, ok := s.inforequests[inforequestID]
	if !ok {
		return fmt.Errorf("inforequest %d: %w", inforequestID, ports.ErrNotFound)
	}
	e.ID = s.id()
	ir.Emails = append(ir.Emails, e)
	return nil
}

func (s *Store) SetEmailType(_ context.Context, emailID int64, t domain.EmailType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ir := range s.inforequests {
		if e := ir.Email(emailID); e != nil {
			e.Type = t
			return nil
		}
	}
	return fmt.Errorf("email %d: %w", emailID, ports.ErrNotFound)
}

func (s *Store) CreateObligee(_ context.Context, o *domain.Obligee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.id()
	}
	s.obligees[o.ID] = *o
	return nil
}

func (s *Store) ListObligees(_ context.Context) ([]domain.Obligee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Obligee, 0, len(s.obligees))
	for _, o := range s.obligees {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
