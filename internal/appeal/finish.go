package appeal

import (
	"context"
	"fmt"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/wizard"
)

// Finisher records the drafted appeal on the branch.
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
		return "", fmt.Errorf("no branch to appeal")
	}
	if !b.CanAdd(env.Calendar, env.Today, domain.ActionAppeal) {
		return "", wizard.Reject("An appeal can no longer be added to this branch.")
	}
	if env.Inforequest.HasUndecidedEmails() {
		return "", wizard.Reject(msgUndecidedEmails)
	}
	content := g.String(ValContent)
	if content == "" {
		return "", fmt.Errorf("appeal %s has no content", c.Instance)
	}

	created := f.now()
	if exp := b.ExpirationIfExpired(env.Calendar, env.Today); exp != nil {
		exp.Created = created
		if err := f.store.CreateAction(ctx, exp); err != nil {
			return "", fmt.Errorf("recording expiration: %w", err)
		}
	}

	a := &domain.Action{
		BranchID:     b.ID,
		Type:         domain.ActionAppeal,
		Subject:      g.String(ValSubject),
		Content:      content,
		LegalDate:    g.Time(ValLegalDate),
		DeadlineDays: domain.DefaultDeadline(domain.ActionAppeal, 0, 0),
		Created:      created,
	}
	if err := f.store.CreateAction(ctx, a); err != nil {
		return "", fmt.Errorf("creating appeal: %w", err)
	}
	return domain.ActionPath(env.Inforequest.ID, a.ID), nil
}
