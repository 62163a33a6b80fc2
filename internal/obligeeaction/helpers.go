package obligeeaction

import (
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

const (
	msgOlderThanPrevious  = "May not be older than the previous action."
	msgFromFuture         = "May not be from the future."
	msgOlderThanMonth     = "May not be older than one month."
	msgNewerThanDelivered = "May not be newer than the delivered date."
	msgNewerThanLegal     = "May not be newer than the legal date."
	msgOlderThanLastLegal = "May not be older than the legal date of your last action."
	msgSameObligee        = "The request cannot be forwarded to the same obligee."
	msgDuplicateObligee   = "Each obligee may be listed only once."
)

// yesNo is a question step whose successor depends on a single yes/no answer.
func yesNo(id wizard.StepID, title, field string, onYes func(*stepContext) wizard.Route, onNo, recovery wizard.StepID) *wizard.Step[Env] {
	return &wizard.Step[Env]{
		ID:    id,
		Kind:  wizard.Question,
		Title: title,
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{wizard.Boolean{Meta: wizard.Meta{Key: field, Required: true}}}
		},
		Then: func(c *stepContext, v wizard.Values) wizard.Route {
			if v.Bool(field) {
				return onYes(c)
			}
			return wizard.To(onNo)
		},
		Recovery: recovery,
	}
}

// reasons asks for the refusal reasons backing an action of type t.
func reasons(id wizard.StepID, title string, t domain.ActionType) *wizard.Step[Env] {
	return &wizard.Step[Env]{
		ID:      id,
		Kind:    wizard.Question,
		Title:   title,
		Globals: []string{ValRefusalReason},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{wizard.MultiEnum[domain.RefusalReason]{
				Meta:    wizard.Meta{Key: ValRefusalReason, Label: "Reasons", Required: true},
				Options: domain.RefusalReasons,
			}}
		},
		Then: func(*stepContext, wizard.Values) wizard.Route { return categorize(t) },
		Next: Categorized,
	}
}

func disclosureField() wizard.Field {
	return wizard.Enum[domain.DisclosureLevel]{
		Meta:    wizard.Meta{Key: ValDisclosureLevel, Label: "Disclosure", Required: true},
		Options: []domain.DisclosureLevel{domain.DisclosureFull, domain.DisclosurePartial, domain.DisclosureNone},
	}
}

func helpRequestField(required bool) wizard.Field {
	return wizard.Text{Meta: wizard.Meta{Key: ValHelpRequest, Label: "What do you need help with?", Required: required}}
}

func dateField(c *stepContext, key, label string, required bool) wizard.Field {
	today := c.Env.Today
	return wizard.Date{
		Meta:  wizard.Meta{Key: key, Label: label, Required: required},
		Today: func() time.Time { return today },
	}
}

// checkRecentDate validates a date of the obligee's response: not before the
// last action, not in the future, at most a month old.
func checkRecentDate(c *stepContext, d time.Time) string {
	if d.IsZero() {
		return ""
	}
	today := domain.Day(c.Env.Today)
	if last := lastAction(c); last != nil && d.Before(last.LegalDate) {
		return msgOlderThanPrevious
	}
	if d.After(today) {
		return msgFromFuture
	}
	if d.Before(today.AddDate(0, -1, 0)) {
		return msgOlderThanMonth
	}
	return ""
}

func cleanAdvancement(c *stepContext, v wizard.Values) wizard.FieldErrors {
	if !v.Bool("is_advancement") {
		return nil
	}
	to, _ := wizard.Get[[]domain.Obligee](v, ValAdvancedTo)
	if len(to) == 0 {
		return wizard.FieldErrors{}.Add(ValAdvancedTo, string(wizard.ErrRequired))
	}
	b := branchOf(c)
	seen := make(map[int64]bool)
	for _, o := range to {
		if b != nil && o.ID == b.Obligee.ID {
			return wizard.FieldErrors{}.Add(ValAdvancedTo, msgSameObligee)
		}
		if seen[o.ID] {
			return wizard.FieldErrors{}.Add(ValAdvancedTo, msgDuplicateObligee)
		}
		seen[o.ID] = true
	}
	return nil
}

var lastActionDDTypes = domain.NewActionSet(domain.ActionRequest, domain.ActionClarificationResponse,
	domain.ActionAppeal, domain.ActionAdvancedRequest)

// needsLastActionDeliveredDate reports whether the categorized step should
// also backfill when the applicant's last letter reached the obligee.
func needsLastActionDeliveredDate(c *stepContext) bool {
	last := lastAction(c)
	return last != nil && last.DeliveredDate.IsZero() && lastActionDDTypes.Has(last.Type)
}

func cleanCategorized(c *stepContext, v wizard.Values) wizard.FieldErrors {
	var errs wizard.FieldErrors
	legal := v.Time(ValLegalDate)
	if !legal.IsZero() {
		delivered := c.Globals.Time(ValDeliveredDate)
		if !delivered.IsZero() && legal.After(delivered) {
			errs = errs.Add(ValLegalDate, msgNewerThanDelivered)
		} else if msg := checkRecentDate(c, legal); msg != "" {
			errs = errs.Add(ValLegalDate, msg)
		}
	}

	if dd := v.Time(ValLastActionDD); !dd.IsZero() {
		last := lastAction(c)
		switch {
		case !legal.IsZero() && dd.After(legal):
			errs = errs.Add(ValLastActionDD, msgNewerThanLegal)
		case last != nil && dd.Before(last.LegalDate):
			errs = errs.Add(ValLastActionDD, msgOlderThanLastLegal)
		case dd.After(domain.Day(c.Env.Today)):
			errs = errs.Add(ValLastActionDD, msgFromFuture)
		}
	}
	return errs
}
