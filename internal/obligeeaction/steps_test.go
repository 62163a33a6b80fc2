package obligeeaction_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/inforequest/inforequest/internal/adapters/memory"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/obligeeaction"
	"github.com/inforequest/inforequest/internal/wizard"
	"github.com/inforequest/inforequest/internal/workdays"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = domain.Date(2024, 3, 15)

var (
	ministry = domain.Obligee{ID: 1, Name: "Ministry"}
	office   = domain.Obligee{ID: 2, Name: "Regional Office"}
)

type harness struct {
	t     *testing.T
	store *memory.Store
	eng   *wizard.Engine[obligeeaction.Env]
	ir    *domain.Inforequest
	env   obligeeaction.Env
}

func newHarness(t *testing.T, branches ...*domain.Branch) *harness {
	t.Helper()
	store := memory.NewStore()
	ir := &domain.Inforequest{Owner: "alice", Subject: "Budget 2024", Branches: branches}
	require.NoError(t, store.CreateInforequest(context.Background(), ir))

	finisher := obligeeaction.NewFinisher(store)
	finisher.SetNow(func() time.Time { return today })
	return &harness{
		t:     t,
		store: store,
		eng:   wizard.New(obligeeaction.Graph, store, finisher.Finish),
		ir:    ir,
		env: obligeeaction.Env{
			Inforequest: ir,
			Obligees:    map[int64]domain.Obligee{ministry.ID: ministry, office.ID: office},
			Calendar:    workdays.New(),
			Today:       today,
		},
	}
}

func requested(actions ...*domain.Action) *domain.Branch {
	if len(actions) == 0 {
		actions = []*domain.Action{{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 3, 11), DeadlineDays: domain.Days(8)}}
	}
	return &domain.Branch{Obligee: ministry, Actions: actions}
}

func (h *harness) request(index int, data map[string]any) wizard.Request[obligeeaction.Env] {
	return wizard.Request[obligeeaction.Env]{
		Owner:    "alice",
		Instance: obligeeaction.InstanceID(h.ir.ID),
		Index:    strconv.Itoa(index),
		Data:     data,
		Env:      h.env,
	}
}

func (h *harness) submit(index int, data map[string]any) *wizard.Result {
	h.t.Helper()
	res, err := h.eng.Submit(context.Background(), h.request(index, data))
	require.NoError(h.t, err)
	require.NotEqual(h.t, wizard.NavigationCorrected, res.State, "index %d corrected to %d", index, res.Current.Index)
	return res
}

func (h *harness) advance(index int, data map[string]any) *wizard.Result {
	h.t.Helper()
	res := h.submit(index, data)
	require.True(h.t, res.Committed, "step %s rejected: %v", res.Current.ID, res.Current.Errors)
	return res
}

func (h *harness) replay(index int) *wizard.Result {
	h.t.Helper()
	res, err := h.eng.Replay(context.Background(), h.request(index, nil))
	require.NoError(h.t, err)
	return res
}

func path(res *wizard.Result) []wizard.StepID {
	var out []wizard.StepID
	for _, s := range res.Steps {
		out = append(out, s.ID)
	}
	return out
}

func fieldNames(r *wizard.Realized) []string {
	var out []string
	for _, f := range r.Fields {
		out = append(out, f.Name())
	}
	return out
}

func TestConfirmationOnPaper(t *testing.T) {
	h := newHarness(t, requested())

	res := h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	assert.Equal(t, obligeeaction.InputBasics, res.Current.ID)
	assert.Equal(t, obligeeaction.IsItQuestion, res.Next().ID)

	h.advance(1, map[string]any{"is_question": "0"})
	res = h.advance(2, map[string]any{"is_confirmation": "1"})
	assert.Equal(t, []wizard.StepID{
		obligeeaction.InputBasics, obligeeaction.IsItQuestion, obligeeaction.IsItConfirmation, obligeeaction.Categorized,
	}, path(res))
	assert.Equal(t, obligeeaction.ResultAction, res.Globals.String(obligeeaction.ValResult))
	assert.Equal(t, domain.ActionConfirmation, res.Globals.Map()[obligeeaction.ValAction])

	res = h.submit(3, map[string]any{"legal_date": "2024-03-13", "file_number": "MF-7", "last_action_dd": "2024-03-12"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)

	branch := h.ir.Branches[0]
	created := branch.LastAction()
	assert.Equal(t, domain.ActionConfirmation, created.Type)
	assert.Equal(t, domain.ActionPath(h.ir.ID, created.ID), res.Redirect)
	assert.Equal(t, domain.Date(2024, 3, 14), created.DeliveredDate)
	assert.Equal(t, domain.Date(2024, 3, 13), created.LegalDate)
	assert.Equal(t, "MF-7", created.FileNumber)
	require.NotNil(t, created.DeadlineDays)
	assert.Equal(t, 8, *created.DeadlineDays)
	assert.Equal(t, domain.Date(2024, 3, 12), branch.Actions[0].DeliveredDate, "request delivery date is backfilled")

	_, err := h.store.LoadDraft(context.Background(), obligeeaction.InstanceID(h.ir.ID), "alice")
	assert.Error(t, err)
}

func TestEmailSkipsBasicsAndUsesProcessedDate(t *testing.T) {
	second := &domain.Branch{Obligee: office, AdvancedByID: 99, Actions: []*domain.Action{{
		Type: domain.ActionAdvancedRequest, LegalDate: domain.Date(2024, 3, 12), DeadlineDays: domain.Days(13),
	}}}
	h := newHarness(t, requested(), second)
	email := &domain.Email{Subject: "Re: Budget", Text: "Please specify.", Processed: time.Date(2024, 3, 14, 16, 30, 0, 0, time.UTC)}
	require.NoError(t, h.store.CreateEmail(context.Background(), h.ir.ID, email))
	h.env.Email = email

	res := h.replay(0)
	assert.Equal(t, obligeeaction.SelectBranch, res.Current.ID)

	res = h.advance(0, map[string]any{"branch": strconv.FormatInt(second.ID, 10)})
	assert.Equal(t, obligeeaction.IsItQuestion, res.Next().ID)
	assert.True(t, res.Next().EntryComputed)
	assert.Equal(t, domain.Date(2024, 3, 14), res.Globals.Time(obligeeaction.ValDeliveredDate))

	h.advance(1, map[string]any{"is_question": "yes"})
	res = h.submit(2, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)

	created := second.LastAction()
	assert.Equal(t, domain.ActionClarificationRequest, created.Type)
	assert.Equal(t, email.ID, created.EmailID)
	assert.Equal(t, "Please specify.", created.Content)
	assert.Equal(t, domain.EmailObligeeAction, email.Type)
}

func TestFullDisclosure(t *testing.T) {
	h := newHarness(t, requested())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_question": "0"})
	h.advance(2, map[string]any{"is_confirmation": "0"})
	res := h.advance(3, map[string]any{"is_on_topic": "1"})
	assert.Equal(t, obligeeaction.ContainsInfo, res.Next().ID)

	res = h.advance(4, map[string]any{"disclosure_level": "3"})
	assert.Equal(t, obligeeaction.Categorized, res.Next().ID)

	res = h.submit(5, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	created := h.ir.Branches[0].LastAction()
	assert.Equal(t, domain.ActionDisclosure, created.Type)
	assert.Equal(t, domain.DisclosureFull, created.DisclosureLevel)
	assert.Nil(t, created.DeadlineDays)
}

func TestRefusalRecordsReasons(t *testing.T) {
	h := newHarness(t, requested())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_question": "0"})
	h.advance(2, map[string]any{"is_confirmation": "0"})
	h.advance(3, map[string]any{"is_on_topic": "1"})
	h.advance(4, map[string]any{"disclosure_level": "1"})
	res := h.advance(5, map[string]any{"is_decision": "1"})
	assert.Equal(t, obligeeaction.RefusalReasons, res.Next().ID)

	res = h.advance(6, map[string]any{"refusal_reason": []any{"3", "8"}})
	assert.Equal(t, obligeeaction.Categorized, res.Next().ID)

	res = h.submit(7, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	created := h.ir.Branches[0].LastAction()
	assert.Equal(t, domain.ActionRefusal, created.Type)
	assert.Equal(t, []domain.RefusalReason{domain.RefusalDoesNotHave, domain.RefusalPersonal}, created.RefusalReasons)
	assert.Equal(t, 15, *created.DeadlineDays)
}

func TestAdvancementCreatesBranches(t *testing.T) {
	h := newHarness(t, requested())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_question": "0"})
	h.advance(2, map[string]any{"is_confirmation": "0"})
	h.advance(3, map[string]any{"is_on_topic": "1"})
	h.advance(4, map[string]any{"disclosure_level": "1"})
	res := h.advance(5, map[string]any{"is_decision": "0"})
	assert.Equal(t, obligeeaction.IsItAdvancement, res.Next().ID)

	res = h.submit(6, map[string]any{"is_advancement": "1"})
	assert.Equal(t, []string{string(wizard.ErrRequired)}, res.Current.Errors["advanced_to"])
	res = h.submit(6, map[string]any{"is_advancement": "1", "advanced_to": []any{"1"}})
	assert.Contains(t, res.Current.Errors["advanced_to"][0], "same obligee")
	res = h.submit(6, map[string]any{"is_advancement": "1", "advanced_to": []any{"2", "2"}})
	assert.Contains(t, res.Current.Errors["advanced_to"][0], "only once")

	h.advance(6, map[string]any{"is_advancement": "1", "advanced_to": []any{"2"}})
	res = h.submit(7, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)

	main := h.ir.Branches[0]
	advancement := main.LastAction()
	assert.Equal(t, domain.ActionAdvancement, advancement.Type)
	assert.Equal(t, []int64{office.ID}, advancement.AdvancedTo)

	require.Len(t, h.ir.Branches, 2)
	sub := h.ir.Branches[1]
	assert.Equal(t, advancement.ID, sub.AdvancedByID)
	assert.Equal(t, office, sub.Obligee)
	assert.Equal(t, domain.ActionAdvancedRequest, sub.LastAction().Type)
}

func TestExtensionRequiresDays(t *testing.T) {
	h := newHarness(t, requested())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_question": "0"})
	h.advance(2, map[string]any{"is_confirmation": "0"})
	h.advance(3, map[string]any{"is_on_topic": "1"})
	h.advance(4, map[string]any{"disclosure_level": "1"})
	h.advance(5, map[string]any{"is_decision": "0"})
	res := h.advance(6, map[string]any{"is_advancement": "0"})
	assert.Equal(t, obligeeaction.IsItExtension, res.Next().ID)

	res = h.submit(7, map[string]any{"is_extension": "1"})
	assert.Contains(t, res.Current.Errors, "extension")
	res = h.submit(7, map[string]any{"is_extension": "1", "extension": "20"})
	assert.Contains(t, res.Current.Errors, "extension")

	h.advance(7, map[string]any{"is_extension": "1", "extension": "12"})
	res = h.submit(8, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	created := h.ir.Branches[0].LastAction()
	assert.Equal(t, domain.ActionExtension, created.Type)
	assert.Equal(t, 12, *created.DeadlineDays)
}

func TestDeliveredDateValidation(t *testing.T) {
	old := requested(&domain.Action{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 1, 10), DeadlineDays: domain.Days(8)})
	h := newHarness(t, old)

	for date, msg := range map[string]string{
		"2024-03-16": "future",
		"2024-01-09": "previous action",
		"2024-02-01": "one month",
	} {
		res := h.submit(0, map[string]any{"delivered_date": date})
		require.False(t, res.Committed, date)
		assert.Contains(t, res.Current.Errors["delivered_date"][0], msg, date)
	}
}

func TestCategorizedLegalDateValidation(t *testing.T) {
	h := newHarness(t, requested())
	h.advance(0, map[string]any{"delivered_date": "2024-03-13"})
	h.advance(1, map[string]any{"is_question": "1"})

	res := h.submit(2, map[string]any{"legal_date": "2024-03-14"})
	assert.Contains(t, res.Current.Errors["legal_date"][0], "delivered date")

	res = h.submit(2, map[string]any{"legal_date": "2024-03-12", "last_action_dd": "2024-03-13"})
	assert.Contains(t, res.Current.Errors["last_action_dd"][0], "legal date")
	assert.NotContains(t, res.Current.Errors, "legal_date")
}

func TestLastActionDeliveredDateOnlyWhenUnknown(t *testing.T) {
	known := requested(&domain.Action{
		Type: domain.ActionRequest, LegalDate: domain.Date(2024, 3, 11), DeliveredDate: domain.Date(2024, 3, 12), DeadlineDays: domain.Days(8),
	})
	h := newHarness(t, known)
	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	res := h.advance(1, map[string]any{"is_question": "1"})
	assert.Equal(t, []string{"legal_date", "file_number"}, fieldNames(res.Next()))

	h2 := newHarness(t, requested())
	h2.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	res = h2.advance(1, map[string]any{"is_question": "1"})
	assert.Equal(t, []string{"legal_date", "file_number", "last_action_dd"}, fieldNames(res.Next()))
}

func TestNotCategorizedHelpRequest(t *testing.T) {
	h := newHarness(t, requested())
	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_question": "0"})
	h.advance(2, map[string]any{"is_confirmation": "0"})
	res := h.advance(3, map[string]any{"is_on_topic": "0"})
	assert.Equal(t, obligeeaction.NotCategorized, res.Next().ID)

	res = h.submit(4, map[string]any{"wants_help": "1"})
	assert.Contains(t, res.Current.Errors, "help_request")

	res = h.submit(4, map[string]any{"wants_help": "1", "help_request": "I do not understand the letter."})
	require.Equal(t, wizard.Finished, res.State)
	assert.Equal(t, domain.InforequestPath(h.ir.ID), res.Redirect)
	assert.Len(t, h.ir.Branches[0].Actions, 1)
}

func TestUnrelatedEmail(t *testing.T) {
	h := newHarness(t, requested())
	email := &domain.Email{Subject: "Newsletter", Processed: today}
	require.NoError(t, h.store.CreateEmail(context.Background(), h.ir.ID, email))
	h.env.Email = email

	h.advance(0, map[string]any{"is_question": "0"})
	h.advance(1, map[string]any{"is_confirmation": "0"})
	h.advance(2, map[string]any{"is_on_topic": "0"})
	res := h.submit(3, map[string]any{"wants_help": "0"})
	require.Equal(t, wizard.Finished, res.State)
	assert.Equal(t, domain.EmailUnrelated, email.Type)
}

func appealed() *domain.Branch {
	return requested(
		&domain.Action{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 2, 1), DeliveredDate: domain.Date(2024, 2, 2), DeadlineDays: domain.Days(8)},
		&domain.Action{Type: domain.ActionRefusal, LegalDate: domain.Date(2024, 2, 8), DeadlineDays: domain.Days(15)},
		&domain.Action{Type: domain.ActionAppeal, LegalDate: domain.Date(2024, 3, 1), DeadlineDays: domain.Days(30)},
	)
}

func TestAppealDecisionByEmailIsNotCategorized(t *testing.T) {
	h := newHarness(t, appealed())
	h.env.Email = &domain.Email{ID: 500, Processed: today}

	res := h.replay(0)
	assert.Equal(t, []wizard.StepID{obligeeaction.NotCategorized}, path(res))
}

func TestAffirmation(t *testing.T) {
	h := newHarness(t, appealed())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	res := h.replay(1)
	assert.Equal(t, obligeeaction.IsItAppealDecision, res.Current.ID)

	h.advance(1, map[string]any{"is_decision": "1"})
	h.advance(2, map[string]any{"disclosure_level": "1"})
	res = h.advance(3, map[string]any{"accepted": "none"})
	assert.Equal(t, obligeeaction.Categorized, res.Next().ID)

	res = h.submit(4, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	assert.Equal(t, domain.ActionAffirmation, h.ir.Branches[0].LastAction().Type)
}

func TestReversionDisclosingNothingNeedsHelp(t *testing.T) {
	h := newHarness(t, appealed())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_decision": "1"})
	h.advance(2, map[string]any{"disclosure_level": "1"})
	h.advance(3, map[string]any{"accepted": "some"})
	res := h.advance(4, map[string]any{"was_returned": "0"})
	assert.Equal(t, obligeeaction.InvalidReversion, res.Next().ID)
	assert.True(t, res.Next().EntryComputed)

	res = h.submit(5, map[string]any{})
	assert.Contains(t, res.Current.Errors, "help_request")
	res = h.submit(5, map[string]any{"help_request": "What now?"})
	require.Equal(t, wizard.Finished, res.State)
	assert.Equal(t, domain.ActionAppeal, h.ir.Branches[0].LastAction().Type)
}

func TestPartialReversionAsksForReasons(t *testing.T) {
	h := newHarness(t, appealed())

	h.advance(0, map[string]any{"delivered_date": "2024-03-14"})
	h.advance(1, map[string]any{"is_decision": "1"})
	h.advance(2, map[string]any{"disclosure_level": "2"})
	h.advance(3, map[string]any{"accepted": "all"})
	res := h.advance(4, map[string]any{"was_returned": "0"})
	assert.Equal(t, obligeeaction.ReversionReasons, res.Next().ID)

	h.advance(5, map[string]any{"refusal_reason": []any{"-2"}})
	res = h.submit(6, map[string]any{"legal_date": "2024-03-14"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	created := h.ir.Branches[0].LastAction()
	assert.Equal(t, domain.ActionReversion, created.Type)
	assert.Equal(t, domain.DisclosurePartial, created.DisclosureLevel)
}

func TestGraphIsValid(t *testing.T) {
	assert.Equal(t, obligeeaction.HasSingleBranch, obligeeaction.Graph.Entry)
	assert.Len(t, obligeeaction.Graph.Steps(), 28)
}
