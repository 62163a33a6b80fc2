package obligeeaction

import (
	"context"
	"fmt"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/wizard"
)

// Finisher records the outcome of a completed classification.
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
	switch result := c.Globals.String(ValResult); result {
	case ResultAction:
		return f.finishAction(ctx, c)
	case ResultHelp:
		return f.finishEmail(ctx, c, domain.EmailUnknown)
	case ResultUnrelated:
		return f.finishEmail(ctx, c, domain.EmailUnrelated)
	default:
		return "", fmt.Errorf("unexpected result %q", result)
	}
}

func (f *Finisher) finishAction(ctx context.Context, c wizard.Completion[Env]) (string, error) {
	env, g := c.Env, c.Globals
	t, _ := wizard.Get[domain.ActionType](g, ValAction)
	branch, _ := wizard.Get[*domain.Branch](g, ValBranch)
	if branch == nil {
		return "", fmt.Errorf("no branch selected")
	}
	if !domain.ObligeeActions.Has(t) {
		return "", wizard.Reject("%s is not an obligee action.", t)
	}
	if env.Email != nil && !domain.ObligeeEmailActions.Has(t) {
		return "", wizard.Reject("%s cannot be delivered by email.", t)
	}
	if !branch.CanAdd(env.Calendar, env.Today, t) {
		return "", wizard.Reject("%s can no longer be added to this branch.", t)
	}

	last := branch.LastAction()
	if dd := g.Time(ValLastActionDD); !dd.IsZero() && last != nil && last.DeliveredDate.IsZero() {
		last.DeliveredDate = dd
		if err := f.store.UpdateAction(ctx, last); err != nil {
			return "", fmt.Errorf("updating last action: %w", err)
		}
	}

	level, _ := wizard.Get[domain.DisclosureLevel](g, ValDisclosureLevel)
	reasons, _ := wizard.Get[[]domain.RefusalReason](g, ValRefusalReason)
	advancedTo, _ := wizard.Get[[]domain.Obligee](g, ValAdvancedTo)
	extension := g.Int(ValExtension)

	a := &domain.Action{
		BranchID:      branch.ID,
		Type:          t,
		FileNumber:    g.String(ValFileNumber),
		DeliveredDate: g.Time(ValDeliveredDate),
		LegalDate:     g.Time(ValLegalDate),
		Created:       f.now(),
	}
	if t == domain.ActionExtension {
		a.Extension = extension
	}
	if t == domain.ActionDisclosure || t == domain.ActionReversion {
		a.DisclosureLevel = level
	}
	if t == domain.ActionRefusal || t == domain.ActionDisclosure || t == domain.ActionReversion {
		a.RefusalReasons = reasons
	}
	if t == domain.ActionAdvancement {
		for _, o := range advancedTo {
			a.AdvancedTo = append(a.AdvancedTo, o.ID)
		}
	}
	if env.Email != nil {
		a.EmailID = env.Email.ID
		a.Subject = env.Email.Subject
		a.Content = env.Email.Text
		a.Attachments = env.Email.Attachments
	} else if attachments, ok := wizard.Get[[]string](g, ValAttachments); ok {
		a.Attachments = attachments
	}
	a.DeadlineDays = domain.DefaultDeadline(t, a.DisclosureLevel, a.Extension)

	if err := f.store.CreateAction(ctx, a); err != nil {
		return "", fmt.Errorf("creating action: %w", err)
	}

	if t == domain.ActionAdvancement {
		for _, o := range advancedTo {
			sub := &domain.Branch{
				Obligee:      o,
				AdvancedByID: a.ID,
				Actions: []*domain.Action{{
					Type:         domain.ActionAdvancedRequest,
					LegalDate:    a.LegalDate,
					DeadlineDays: domain.DefaultDeadline(domain.ActionAdvancedRequest, 0, 0),
					Created:      a.Created,
				}},
			}
			if err := f.store.CreateBranch(ctx, env.Inforequest.ID, sub); err != nil {
				return "", fmt.Errorf("creating advanced branch: %w", err)
			}
		}
	}

	if env.Email != nil {
		if err := f.store.SetEmailType(ctx, env.Email.ID, domain.EmailObligeeAction); err != nil {
			return "", fmt.Errorf("classifying email: %w", err)
		}
	}
	return domain.ActionPath(env.Inforequest.ID, a.ID), nil
}

func (f *Finisher) finishEmail(ctx context.Context, c wizard.Completion[Env], t domain.EmailType) (string, error) {
	if e := c.Env.Email; e != nil {
		if err := f.store.SetEmailType(ctx, e.ID, t); err != nil {
			return "", fmt.Errorf("classifying email: %w", err)
		}
	}
	return domain.InforequestPath(c.Env.Inforequest.ID), nil
}
