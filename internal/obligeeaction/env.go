// Package obligeeaction classifies a response received from an obligee into
// one of the obligee action types, or marks it as needing help or unrelated.
package obligeeaction

import (
	"strconv"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

// WizardName prefixes instance ids: one instance per inforequest.
const WizardName = "ObligeeActionWizard"

// Env is everything the classification steps consult besides the draft.
// Email is nil when the response arrived on paper.
type Env struct {
	Inforequest *domain.Inforequest
	Email       *domain.Email
	Obligees    map[int64]domain.Obligee
	Calendar    domain.Calendar
	Today       time.Time
}

func InstanceID(inforequestID int64) string {
	return domain.InstanceID(WizardName, inforequestID)
}

// Global value names published by the steps.
const (
	ValBranch          = "branch"
	ValDeliveredDate   = "delivered_date"
	ValAttachments     = "attachments"
	ValResult          = "result"
	ValAction          = "action"
	ValDisclosureLevel = "disclosure_level"
	ValRefusalReason   = "refusal_reason"
	ValAdvancedTo      = "advanced_to"
	ValExtension       = "extension"
	ValLegalDate       = "legal_date"
	ValFileNumber      = "file_number"
	ValLastActionDD    = "last_action_dd"
	ValHelpRequest     = "help_request"
)

// Values of the result global.
const (
	ResultAction    = "action"
	ResultHelp      = "help"
	ResultUnrelated = "unrelated"
)

type stepContext = wizard.Context[Env]

func branchOf(c *stepContext) *domain.Branch {
	b, _ := wizard.Get[*domain.Branch](c.Globals, ValBranch)
	return b
}

func lastAction(c *stepContext) *domain.Action {
	if b := branchOf(c); b != nil {
		return b.LastAction()
	}
	return nil
}

// canAdd consults the eligibility table for the selected branch as of today.
func canAdd(c *stepContext, t domain.ActionType) bool {
	b := branchOf(c)
	return b != nil && b.CanAdd(c.Env.Calendar, c.Env.Today, t)
}

func categorize(t domain.ActionType) wizard.Route {
	return wizard.Route{Next: Categorized, Globals: map[string]any{ValResult: ResultAction, ValAction: t}}
}

func branchOptions(ir *domain.Inforequest) []wizard.Option {
	opts := make([]wizard.Option, 0, len(ir.Branches))
	for _, b := range ir.Branches {
		opts = append(opts, wizard.Option{Value: strconv.FormatInt(b.ID, 10), Label: b.Obligee.Name})
	}
	return opts
}

func resolveBranch(ir *domain.Inforequest) func(string) (*domain.Branch, bool) {
	return func(s string) (*domain.Branch, bool) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		b := ir.Branch(id)
		return b, b != nil
	}
}

func resolveObligee(obligees map[int64]domain.Obligee) func(string) (domain.Obligee, bool) {
	return func(s string) (domain.Obligee, bool) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return domain.Obligee{}, false
		}
		o, ok := obligees[id]
		return o, ok
	}
}
