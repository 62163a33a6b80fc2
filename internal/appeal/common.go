package appeal

import (
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

// Global value names shared by every appeal graph.
const (
	ValLegalDate = "legal_date"
	ValSubject   = "subject"
	ValContent   = "content"
	ValReason    = "reason"
)

const (
	Reason wizard.StepID = "Reason"
	Paper  wizard.StepID = "Paper"
	Final  wizard.StepID = "Final"
)

const (
	msgOlderThanLastAction = "May not be older than the last action."
	msgFromPast            = "May not be from the past."
	msgTooFarInFuture      = "May not be more than 5 days in the future."
	msgUndecidedEmails     = "Some emails received for this inforequest are still waiting to be decided. Decide them before sending the appeal."
)

// paperLead is how many days ahead of today an appeal may be dated.
const paperLead = 5

// section asks for one paragraph of the appeal. The step title becomes the
// paragraph heading on paper.
func section(id wizard.StepID, title, field string, next wizard.StepID) *wizard.Step[Env] {
	return &wizard.Step[Env]{
		ID:      id,
		Kind:    wizard.Question,
		Title:   title,
		Globals: []string{field},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{wizard.Text{Meta: wizard.Meta{Key: field, Required: true}}}
		},
		Next: next,
	}
}

// optionalSection is a paragraph the applicant may leave out by not ticking
// its checkbox.
func optionalSection(id wizard.StepID, title, field string, next wizard.StepID) *wizard.Step[Env] {
	check := field + "_included"
	return &wizard.Step[Env]{
		ID:      id,
		Kind:    wizard.Question,
		Title:   title,
		Globals: []string{check, field},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{
				wizard.Boolean{Meta: wizard.Meta{Key: check}},
				wizard.Text{Meta: wizard.Meta{Key: field}},
			}
		},
		Clean: func(_ *stepContext, v wizard.Values) wizard.FieldErrors {
			if v.Bool(check) && !v.Has(field) {
				return wizard.FieldErrors{}.Add(field, string(wizard.ErrRequired))
			}
			return nil
		},
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			if !v.Bool(check) {
				return wizard.Route{Next: next, Globals: map[string]any{field: nil}}
			}
			return wizard.To(next)
		},
		Next: next,
	}
}

// fork is a yes/no question choosing between two successors. An unanswered
// fork continues on the yes branch.
func fork(id wizard.StepID, title, field string, onYes, onNo wizard.StepID) *wizard.Step[Env] {
	return &wizard.Step[Env]{
		ID:    id,
		Kind:  wizard.Question,
		Title: title,
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{wizard.Boolean{Meta: wizard.Meta{Key: field, Required: true}}}
		},
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			if v.Bool(field) {
				return wizard.To(onYes)
			}
			return wizard.To(onNo)
		},
		Recovery: onYes,
	}
}

func paperStep(k Kind) *wizard.Step[Env] {
	return &wizard.Step[Env]{
		ID:      Paper,
		Kind:    wizard.Question,
		Title:   "Date the appeal",
		Globals: []string{ValLegalDate},
		Fields: func(c *stepContext) []wizard.Field {
			today := c.Env.Today
			return []wizard.Field{wizard.Date{
				Meta:  wizard.Meta{Key: ValLegalDate, Label: "Legal date", Required: true, Initial: domain.FormatDate(today)},
				Today: func() time.Time { return today },
			}}
		},
		Clean: func(c *stepContext, v wizard.Values) wizard.FieldErrors {
			if msg := checkLegalDate(c.Env, v.Time(ValLegalDate)); msg != "" {
				return wizard.FieldErrors{}.Add(ValLegalDate, msg)
			}
			return nil
		},
		Derive: func(c *stepContext, v wizard.Values) (map[string]any, error) {
			subject, content, err := compose(k, c, v.Time(ValLegalDate))
			if err != nil {
				return nil, err
			}
			return map[string]any{ValSubject: subject, ValContent: content}, nil
		},
		Next: Final,
	}
}

// checkLegalDate validates the date the appeal is signed: not before the
// appealed action, not in the past, at most paperLead days ahead.
func checkLegalDate(env Env, d time.Time) string {
	if d.IsZero() {
		return ""
	}
	today := domain.Day(env.Today)
	switch last := env.last(); {
	case last != nil && d.Before(last.LegalDate):
		return msgOlderThanLastAction
	case d.Before(today):
		return msgFromPast
	case d.After(today.AddDate(0, 0, paperLead)):
		return msgTooFarInFuture
	}
	return ""
}

func finalStep() *wizard.Step[Env] {
	return &wizard.Step[Env]{
		ID:    Final,
		Kind:  wizard.Question,
		Title: "Print and send the appeal",
		Clean: func(c *stepContext, _ wizard.Values) wizard.FieldErrors {
			if c.Env.Inforequest.HasUndecidedEmails() {
				return wizard.FieldErrors{}.Add(wizard.NonFieldErrors, msgUndecidedEmails)
			}
			return nil
		},
		Describe: describeDeadline,
		Next:     wizard.Done,
	}
}

// describeDeadline reports the applicant deadline of the appealed action both
// today and at the date the appeal is signed.
func describeDeadline(c *stepContext) map[string]any {
	last := c.Env.last()
	if last == nil || !last.HasApplicantDeadline() {
		return nil
	}
	d := last.Deadline(c.Env.Calendar, domain.FixedClock(c.Env.Today))
	out := make(map[string]any)
	if missed, err := d.IsExtendedMissed(); err == nil {
		out["deadline_missed_at_today"] = missed
	}
	if n, err := d.ExtendedRemaining(domain.UnitCalendarDays); err == nil {
		out["calendar_days_remaining_at_today"] = n
	}
	if legal := c.Globals.Time(ValLegalDate); !legal.IsZero() {
		if missed, err := d.IsExtendedMissedAt(legal); err == nil {
			out["deadline_missed_at_legal_date"] = missed
		}
		if n, err := d.ExtendedRemainingAt(domain.UnitCalendarDays, legal); err == nil {
			out["calendar_days_remaining_at_legal_date"] = n
		}
	}
	return out
}
