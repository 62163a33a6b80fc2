package clarificationresponse

import (
	"context"
	"fmt"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/wizard"
)

// Finisher records the response on the branch. It does not send it.
type Finisher struct {
	store ports.InforequestStore
	now   func() time.Time
}

func NewFinisher(store ports.InforequestStore) *Finisher {
	return &Finisher{store: store, now: time.Now}
}

func (f *Finisher) SetNow(now func() time.Time) {
	f.now = now
}

func (f *Finisher) Finish(ctx context.Context, c wizard.Completion[Env]) (string, error) {
	env, g := c.Env, c.Globals
	b := env.Branch
	if b == nil {
		return "", fmt.Errorf("no branch to respond on")
	}
	if !b.CanAdd(env.Calendar, env.Today, domain.ActionClarificationResponse) {
		return "", wizard.Reject("A clarification response can no longer be added to this branch.")
	}
	content := g.String(ValContent)
	if content == "" {
		return "", fmt.Errorf("clarification response %s has no content", c.Instance)
	}

	a := &domain.Action{
		BranchID:     b.ID,
		Type:         domain.ActionClarificationResponse,
		Subject:      g.String(ValSubject),
		Content:      content,
		LegalDate:    g.Time(ValLegalDate),
		DeadlineDays: domain.DefaultDeadline(domain.ActionClarificationResponse, 0, 0),
		Created:      f.now(),
	}
	if err := f.store.CreateAction(ctx, a); err != nil {
		return "", fmt.Errorf("creating clarification response: %w", err)
	}
	return domain.ActionPath(env.Inforequest.ID, a.ID), nil
}
