package domain

// Facts are the properties of a branch's last action that decide which
// action may follow it. A zero Last means the branch has no actions yet.
type Facts struct {
	Last            ActionType
	DisclosureLevel DisclosureLevel
	DeadlineMissed  bool
}

// successors is the Action Eligibility Table: last action type to the action
// types that may be recorded after it unconditionally.
var successors = map[ActionType]ActionSet{
	ActionRequest: NewActionSet(ActionConfirmation, ActionExtension, ActionAdvancement,
		ActionClarificationRequest, ActionDisclosure, ActionRefusal),
	ActionConfirmation: NewActionSet(ActionExtension, ActionAdvancement,
		ActionClarificationRequest, ActionDisclosure, ActionRefusal),
	ActionExtension:            NewActionSet(ActionDisclosure, ActionRefusal),
	ActionAdvancement:          NewActionSet(ActionAppeal),
	ActionClarificationRequest: NewActionSet(ActionClarificationResponse, ActionClarificationRequest),
	ActionDisclosure:           NewActionSet(),
	ActionRefusal:              NewActionSet(ActionAppeal),
	ActionAffirmation:          NewActionSet(),
	ActionReversion:            NewActionSet(),
	ActionRemandment:           NewActionSet(ActionExtension, ActionDisclosure, ActionRefusal),
	ActionAdvancedRequest: NewActionSet(ActionConfirmation, ActionExtension, ActionAdvancement,
		ActionClarificationRequest, ActionDisclosure, ActionRefusal),
	ActionClarificationResponse: NewActionSet(ActionExtension, ActionAdvancement,
		ActionClarificationRequest, ActionDisclosure, ActionRefusal),
	ActionAppeal:           NewActionSet(ActionAffirmation, ActionReversion, ActionRemandment),
	ActionExpiration:       NewActionSet(ActionAppeal),
	ActionAppealExpiration: NewActionSet(),
}

// appealOnMissedDeadline are the last action types after which an appeal
// becomes possible once the obligee deadline has been missed.
var appealOnMissedDeadline = NewActionSet(ActionRequest, ActionClarificationResponse,
	ActionConfirmation, ActionExtension, ActionRemandment, ActionAdvancedRequest)

// EligibleNext returns the action types that may be recorded next.
func EligibleNext(f Facts) ActionSet {
	if f.Last == 0 {
		return NewActionSet(ActionRequest)
	}
	next := successors[f.Last]
	switch {
	case f.Last == ActionDisclosure && f.DisclosureLevel != DisclosureFull:
		next = next.Add(ActionAppeal)
	case appealOnMissedDeadline.Has(f.Last) && f.DeadlineMissed:
		next = next.Add(ActionAppeal)
	}
	return next
}
