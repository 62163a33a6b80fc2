package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ActionType int

const (
	ActionRequest               ActionType = 1
	ActionConfirmation          ActionType = 2
	ActionExtension             ActionType = 3
	ActionAdvancement           ActionType = 4
	ActionClarificationRequest  ActionType = 5
	ActionDisclosure            ActionType = 6
	ActionRefusal               ActionType = 7
	ActionAffirmation           ActionType = 8
	ActionReversion             ActionType = 9
	ActionRemandment            ActionType = 10
	ActionAdvancedRequest       ActionType = 11
	ActionClarificationResponse ActionType = 12
	ActionAppeal                ActionType = 13
	ActionExpiration            ActionType = 14
	ActionAppealExpiration      ActionType = 15
)

var actionNames = map[ActionType]string{
	ActionRequest:               "REQUEST",
	ActionConfirmation:          "CONFIRMATION",
	ActionExtension:             "EXTENSION",
	ActionAdvancement:           "ADVANCEMENT",
	ActionClarificationRequest:  "CLARIFICATION_REQUEST",
	ActionDisclosure:            "DISCLOSURE",
	ActionRefusal:               "REFUSAL",
	ActionAffirmation:           "AFFIRMATION",
	ActionReversion:             "REVERSION",
	ActionRemandment:            "REMANDMENT",
	ActionAdvancedRequest:       "ADVANCED_REQUEST",
	ActionClarificationResponse: "CLARIFICATION_RESPONSE",
	ActionAppeal:                "APPEAL",
	ActionExpiration:            "EXPIRATION",
	ActionAppealExpiration:      "APPEAL_EXPIRATION",
}

func (t ActionType) String() string {
	if name, ok := actionNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ActionType(%d)", int(t))
}

func (t ActionType) Valid() bool {
	_, ok := actionNames[t]
	return ok
}

// ParseActionType accepts either the numeric code or the name, in any case.
func ParseActionType(s string) (ActionType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if t := ActionType(n); t.Valid() {
			return t, nil
		}
		return 0, fmt.Errorf("unknown action type %d", n)
	}
	upper := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for t, name := range actionNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown action type %q", s)
}

// ActionSet is an immutable set of action types.
type ActionSet uint32

func NewActionSet(types ...ActionType) ActionSet {
	var s ActionSet
	for _, t := range types {
		s = s.Add(t)
	}
	return s
}

func (s ActionSet) Add(t ActionType) ActionSet { return s | 1<<uint(t) }

func (s ActionSet) Has(t ActionType) bool { return t > 0 && s&(1<<uint(t)) != 0 }

func (s ActionSet) Intersect(o ActionSet) ActionSet { return s & o }

func (s ActionSet) Empty() bool { return s == 0 }

// Types lists the members in ascending code order.
func (s ActionSet) Types() []ActionType {
	var out []ActionType
	for t := ActionRequest; t <= ActionAppealExpiration; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s ActionSet) String() string {
	names := make([]string, 0)
	for _, t := range s.Types() {
		names = append(names, t.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

var (
	ApplicantActions      = NewActionSet(ActionRequest, ActionClarificationResponse, ActionAppeal)
	ApplicantEmailActions = NewActionSet(ActionRequest, ActionClarificationResponse)
	ObligeeActions        = NewActionSet(ActionConfirmation, ActionExtension, ActionAdvancement,
		ActionClarificationRequest, ActionDisclosure, ActionRefusal, ActionAffirmation,
		ActionReversion, ActionRemandment)
	ObligeeEmailActions = NewActionSet(ActionConfirmation, ActionExtension, ActionAdvancement,
		ActionClarificationRequest, ActionDisclosure, ActionRefusal)
	ImplicitActions = NewActionSet(ActionAdvancedRequest, ActionExpiration, ActionAppealExpiration)

	applicantDeadlineActions = NewActionSet(ActionClarificationRequest, ActionDisclosure, ActionRefusal)
	obligeeDeadlineActions   = NewActionSet(ActionRequest, ActionClarificationResponse, ActionAppeal,
		ActionConfirmation, ActionExtension, ActionRemandment, ActionAdvancedRequest)
)

type DisclosureLevel int

const (
	DisclosureNone    DisclosureLevel = 1
	DisclosurePartial DisclosureLevel = 2
	DisclosureFull    DisclosureLevel = 3
)

var disclosureNames = map[DisclosureLevel]string{
	DisclosureNone:    "NONE",
	DisclosurePartial: "PARTIAL",
	DisclosureFull:    "FULL",
}

func (l DisclosureLevel) String() string {
	if name, ok := disclosureNames[l]; ok {
		return name
	}
	return ""
}

type RefusalReason int

const (
	RefusalDoesNotHave    RefusalReason = 3
	RefusalDoesNotProvide RefusalReason = 4
	RefusalDoesNotCreate  RefusalReason = 5
	RefusalCopyright      RefusalReason = 6
	RefusalBusinessSecret RefusalReason = 7
	RefusalPersonal       RefusalReason = 8
	RefusalConfidential   RefusalReason = 9
	RefusalNoReason       RefusalReason = -1
	RefusalOtherReason    RefusalReason = -2
)

// RefusalReasons lists the reasons in the order they are offered.
var RefusalReasons = []RefusalReason{
	RefusalDoesNotHave, RefusalDoesNotProvide, RefusalDoesNotCreate, RefusalCopyright,
	RefusalBusinessSecret, RefusalPersonal, RefusalConfidential, RefusalNoReason, RefusalOtherReason,
}

var refusalNames = map[RefusalReason]string{
	RefusalDoesNotHave:    "DOES_NOT_HAVE",
	RefusalDoesNotProvide: "DOES_NOT_PROVIDE",
	RefusalDoesNotCreate:  "DOES_NOT_CREATE",
	RefusalCopyright:      "COPYRIGHT",
	RefusalBusinessSecret: "BUSINESS_SECRET",
	RefusalPersonal:       "PERSONAL",
	RefusalConfidential:   "CONFIDENTIAL",
	RefusalNoReason:       "NO_REASON",
	RefusalOtherReason:    "OTHER_REASON",
}

func (r RefusalReason) String() string {
	if name, ok := refusalNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RefusalReason(%d)", int(r))
}

// Action is one event in a branch's history. Dates are calendar dates; a zero
// DeliveredDate means the delivery date is unknown.
type Action struct {
	ID                 int64
	BranchID           int64
	Type               ActionType
	EmailID            int64
	Subject            string
	Content            string
	FileNumber         string
	DeliveredDate      time.Time
	LegalDate          time.Time
	DeadlineDays       *int
	Extension          int
	ApplicantExtension int
	DisclosureLevel    DisclosureLevel
	RefusalReasons     []RefusalReason
	AdvancedTo         []int64
	Attachments        []string
	Created            time.Time
}

// Days returns a pointer to n, for deadline magnitudes.
func Days(n int) *int { return &n }

// DefaultDeadline is the statutory deadline set by an action of type t.
// Extension is the obligee-granted extension carried by EXTENSION actions.
func DefaultDeadline(t ActionType, level DisclosureLevel, extension int) *int {
	switch t {
	case ActionRequest, ActionClarificationResponse, ActionConfirmation:
		return Days(8)
	case ActionAppeal:
		return Days(30)
	case ActionExtension:
		if extension > 0 {
			return Days(extension)
		}
		return Days(10)
	case ActionClarificationRequest:
		return Days(7)
	case ActionDisclosure:
		if level != DisclosureFull {
			return Days(15)
		}
		return nil
	case ActionRefusal:
		return Days(15)
	case ActionRemandment, ActionAdvancedRequest:
		return Days(13)
	}
	return nil
}

func (a *Action) HasApplicantDeadline() bool {
	return applicantDeadlineActions.Has(a.Type) && a.DeadlineDays != nil
}

func (a *Action) HasObligeeDeadline() bool {
	return obligeeDeadlineActions.Has(a.Type) && a.DeadlineDays != nil
}

// Deadline builds the deadline value object for the action. Obligee deadlines
// run in working days, applicant deadlines in calendar days, both from the
// legal date.
func (a *Action) Deadline(cal Calendar, clock Clock) *Deadline {
	kind, unit := DeadlineObligee, UnitWorkdays
	if applicantDeadlineActions.Has(a.Type) {
		kind, unit = DeadlineApplicant, UnitCalendarDays
	}
	value := a.DeadlineDays
	if !applicantDeadlineActions.Has(a.Type) && !obligeeDeadlineActions.Has(a.Type) {
		value = nil
	}
	return NewDeadline(kind, unit, a.LegalDate, value, a.ApplicantExtension, cal, clock)
}
