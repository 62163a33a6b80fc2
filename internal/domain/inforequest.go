package domain

import (
	"fmt"
	"time"
)

type Obligee struct {
	ID    int64
	Name  string
	Email string
}

type EmailType int

const (
	EmailUndecided       EmailType = 0
	EmailApplicantAction EmailType = 1
	EmailObligeeAction   EmailType = 2
	EmailUnrelated       EmailType = 3
	EmailUnknown         EmailType = 4
)

// Email is an inbound message attached to an inforequest and awaiting, or
// having received, a classification.
type Email struct {
	ID          int64
	From        string
	Subject     string
	Text        string
	Processed   time.Time
	Type        EmailType
	Attachments []string
}

// Branch is the chain of actions against a single obligee. Advanced
// branches are created when the obligee forwards the request elsewhere.
type Branch struct {
	ID           int64
	Obligee      Obligee
	AdvancedByID int64
	Actions      []*Action
}

func (b *Branch) IsMain() bool { return b.AdvancedByID == 0 }

func (b *Branch) LastAction() *Action {
	if len(b.Actions) == 0 {
		return nil
	}
	return b.Actions[len(b.Actions)-1]
}

func (b *Branch) Action(id int64) *Action {
	for _, a := range b.Actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Facts evaluates the last action as of the given date. The applicant
// extension counts when judging whether the deadline was missed.
func (b *Branch) Facts(cal Calendar, asOf time.Time) Facts {
	last := b.LastAction()
	if last == nil {
		return Facts{}
	}
	missed, err := last.Deadline(cal, nil).IsExtendedMissedAt(asOf)
	if err != nil {
		missed = false
	}
	return Facts{
		Last:            last.Type,
		DisclosureLevel: last.DisclosureLevel,
		DeadlineMissed:  missed,
	}
}

func (b *Branch) Eligible(cal Calendar, asOf time.Time) ActionSet {
	return EligibleNext(b.Facts(cal, asOf))
}

func (b *Branch) CanAdd(cal Calendar, asOf time.Time, t ActionType) bool {
	return b.Eligible(cal, asOf).Has(t)
}

// CanAddAny reports whether any type of the group may be recorded next.
func (b *Branch) CanAddAny(cal Calendar, asOf time.Time, group ActionSet) bool {
	return !b.Eligible(cal, asOf).Intersect(group).Empty()
}

// ExpirationIfExpired returns the implicit expiration to record when the last
// action's obligee deadline has been missed, or nil.
func (b *Branch) ExpirationIfExpired(cal Calendar, asOf time.Time) *Action {
	last := b.LastAction()
	if last == nil || !last.HasObligeeDeadline() {
		return nil
	}
	missed, err := last.Deadline(cal, nil).IsExtendedMissedAt(asOf)
	if err != nil || !missed {
		return nil
	}
	t := ActionExpiration
	if last.Type == ActionAppeal {
		t = ActionAppealExpiration
	}
	return &Action{
		BranchID:  b.ID,
		Type:      t,
		LegalDate: Day(asOf),
	}
}

// Inforequest is the read model the wizards classify against.
type Inforequest struct {
	ID       int64
	Owner    string
	Subject  string
	Branches []*Branch
	Emails   []*Email
	Created  time.Time
}

func (ir *Inforequest) Branch(id int64) *Branch {
	for _, b := range ir.Branches {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (ir *Inforequest) MainBranch() *Branch {
	for _, b := range ir.Branches {
		if b.IsMain() {
			return b
		}
	}
	return nil
}

func (ir *Inforequest) Email(id int64) *Email {
	for _, e := range ir.Emails {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (ir *Inforequest) HasUndecidedEmails() bool {
	for _, e := range ir.Emails {
		if e.Type == EmailUndecided {
			return true
		}
	}
	return false
}

// UndecidedEmail returns the oldest email still awaiting classification.
func (ir *Inforequest) UndecidedEmail() *Email {
	for _, e := range ir.Emails {
		if e.Type == EmailUndecided {
			return e
		}
	}
	return nil
}

func InforequestPath(id int64) string {
	return fmt.Sprintf("/inforequests/%d", id)
}

func ActionPath(inforequestID, actionID int64) string {
	return fmt.Sprintf("/inforequests/%d/actions/%d", inforequestID, actionID)
}
