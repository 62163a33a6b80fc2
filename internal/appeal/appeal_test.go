package appeal_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/inforequest/inforequest/internal/adapters/memory"
	"github.com/inforequest/inforequest/internal/appeal"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
	"github.com/inforequest/inforequest/internal/workdays"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = domain.Date(2024, 3, 15)

var ministry = domain.Obligee{ID: 1, Name: "Ministry"}

func request(legal time.Time) *domain.Action {
	return &domain.Action{Type: domain.ActionRequest, LegalDate: legal, DeadlineDays: domain.Days(8)}
}

type harness struct {
	t     *testing.T
	store *memory.Store
	ir    *domain.Inforequest
	env   appeal.Env
	kind  appeal.Kind
	eng   *wizard.Engine[appeal.Env]
}

func newHarness(t *testing.T, actions ...*domain.Action) *harness {
	t.Helper()
	store := memory.NewStore()
	ir := &domain.Inforequest{Owner: "alice", Subject: "Budget 2024", Branches: []*domain.Branch{{Obligee: ministry, Actions: actions}}}
	require.NoError(t, store.CreateInforequest(context.Background(), ir))

	env := appeal.Env{Inforequest: ir, Branch: ir.Branches[0], Calendar: workdays.New(), Today: today}
	kind := appeal.Choose(env)
	graph, err := appeal.Graph(kind)
	require.NoError(t, err)

	finisher := appeal.NewFinisher(store)
	finisher.SetNow(func() time.Time { return today })
	return &harness{t: t, store: store, ir: ir, env: env, kind: kind, eng: wizard.New(graph, store, finisher.Finish)}
}

func (h *harness) request(index int, data map[string]any) wizard.Request[appeal.Env] {
	return wizard.Request[appeal.Env]{
		Owner:    "alice",
		Instance: appeal.InstanceID(h.kind, h.env.Branch.LastAction().ID),
		Index:    strconv.Itoa(index),
		Data:     data,
		Env:      h.env,
	}
}

func (h *harness) submit(index int, data map[string]any) *wizard.Result {
	h.t.Helper()
	res, err := h.eng.Submit(context.Background(), h.request(index, data))
	require.NoError(h.t, err)
	require.NotEqual(h.t, wizard.NavigationCorrected, res.State)
	return res
}

func (h *harness) advance(index int, data map[string]any) *wizard.Result {
	h.t.Helper()
	res := h.submit(index, data)
	require.True(h.t, res.Committed, "step %s rejected: %v", res.Current.ID, res.Current.Errors)
	return res
}

func path(res *wizard.Result) []wizard.StepID {
	var out []wizard.StepID
	for _, s := range res.Steps {
		out = append(out, s.ID)
	}
	return out
}

func TestChoose(t *testing.T) {
	refusal := func(reasons ...domain.RefusalReason) *domain.Action {
		return &domain.Action{Type: domain.ActionRefusal, LegalDate: domain.Date(2024, 3, 10), RefusalReasons: reasons}
	}
	cases := []struct {
		name string
		last *domain.Action
		want appeal.Kind
	}{
		{"partial disclosure", &domain.Action{Type: domain.ActionDisclosure, DisclosureLevel: domain.DisclosurePartial}, appeal.KindDisclosure},
		{"full disclosure", &domain.Action{Type: domain.ActionDisclosure, DisclosureLevel: domain.DisclosureFull}, appeal.KindFallback},
		{"covered refusal", refusal(domain.RefusalDoesNotHave, domain.RefusalPersonal), appeal.KindRefusal},
		{"refusal without reason", refusal(domain.RefusalNoReason), appeal.KindRefusalNoReason},
		{"refusal with no reasons recorded", refusal(), appeal.KindRefusalNoReason},
		{"mixed refusal", refusal(domain.RefusalDoesNotHave, domain.RefusalNoReason), appeal.KindFallback},
		{"advancement", &domain.Action{Type: domain.ActionAdvancement}, appeal.KindAdvancement},
		{"expiration", &domain.Action{Type: domain.ActionExpiration}, appeal.KindExpiration},
		{"missed obligee deadline", request(domain.Date(2024, 2, 1)), appeal.KindExpiration},
		{"running obligee deadline", request(domain.Date(2024, 3, 14)), appeal.KindFallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := appeal.Env{
				Branch:   &domain.Branch{Actions: []*domain.Action{tc.last}},
				Calendar: workdays.New(),
				Today:    today,
			}
			assert.Equal(t, tc.want, appeal.Choose(env))
		})
	}

	assert.Equal(t, appeal.KindFallback, appeal.Choose(appeal.Env{Branch: &domain.Branch{}}))
}

func TestEveryKindHasGraph(t *testing.T) {
	for _, k := range appeal.Kinds {
		g, err := appeal.Graph(k)
		require.NoError(t, err, k)
		assert.Equal(t, string(k), g.Name)
	}
	_, err := appeal.Graph("NoSuchAppeal")
	assert.Error(t, err)
}

func TestDisclosureAppeal(t *testing.T) {
	h := newHarness(t,
		request(domain.Date(2024, 3, 1)),
		&domain.Action{Type: domain.ActionDisclosure, LegalDate: domain.Date(2024, 3, 12), DisclosureLevel: domain.DisclosurePartial, DeadlineDays: domain.Days(15)},
	)
	require.Equal(t, appeal.KindDisclosure, h.kind)

	res := h.advance(0, map[string]any{"reason": "The budget annexes are missing."})
	assert.Equal(t, []wizard.StepID{appeal.Reason, appeal.Paper, appeal.Final}, path(res))

	res = h.advance(1, map[string]any{"legal_date": "2024-03-15"})
	content := res.Globals.String(appeal.ValContent)
	assert.Equal(t, "Appeal: Budget 2024", res.Globals.String(appeal.ValSubject))
	assert.Contains(t, content, "To the appellate body of Ministry")
	assert.Contains(t, content, "- On 2024-03-01 I requested information from Ministry.")
	assert.Contains(t, content, "- On 2024-03-12 Ministry disclosed the information (partial).")
	assert.Contains(t, content, "Why is the disclosed information insufficient?\nThe budget annexes are missing.")
	assert.Contains(t, content, "2024-03-15")

	final := res.Next()
	assert.Equal(t, false, final.Extra["deadline_missed_at_today"])
	assert.Equal(t, 12, final.Extra["calendar_days_remaining_at_today"])
	assert.Equal(t, 12, final.Extra["calendar_days_remaining_at_legal_date"])

	res = h.submit(2, map[string]any{})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)

	created := h.env.Branch.LastAction()
	assert.Equal(t, domain.ActionAppeal, created.Type)
	assert.Equal(t, domain.ActionPath(h.ir.ID, created.ID), res.Redirect)
	assert.Equal(t, today, created.LegalDate)
	assert.Equal(t, content, created.Content)
	assert.Equal(t, 30, *created.DeadlineDays)
}

func TestPaperLegalDate(t *testing.T) {
	h := newHarness(t, request(domain.Date(2024, 3, 1)),
		&domain.Action{Type: domain.ActionAdvancement, LegalDate: domain.Date(2024, 3, 12)})
	require.Equal(t, appeal.KindAdvancement, h.kind)
	h.advance(0, map[string]any{"reason": "It was addressed correctly."})

	for date, msg := range map[string]string{
		"2024-03-11": "last action",
		"2024-03-14": "past",
		"2024-03-21": "future",
	} {
		res := h.submit(1, map[string]any{"legal_date": date})
		require.False(t, res.Committed, date)
		assert.Contains(t, res.Current.Errors["legal_date"][0], msg, date)
	}
	h.advance(1, map[string]any{"legal_date": "2024-03-20"})
}

func TestFinalWaitsForUndecidedEmails(t *testing.T) {
	h := newHarness(t, request(domain.Date(2024, 3, 1)),
		&domain.Action{Type: domain.ActionRefusal, LegalDate: domain.Date(2024, 3, 12), DeadlineDays: domain.Days(15)})
	require.Equal(t, appeal.KindRefusalNoReason, h.kind)
	require.NoError(t, h.store.CreateEmail(context.Background(), h.ir.ID, &domain.Email{Subject: "Re: Budget"}))

	res := h.advance(0, map[string]any{"legal_date": "2024-03-15"})
	assert.Contains(t, res.Globals.String(appeal.ValContent), "gives no reason")

	res = h.submit(1, map[string]any{})
	assert.False(t, res.Committed)
	assert.Contains(t, res.Current.Errors[wizard.NonFieldErrors][0], "waiting to be decided")
}

func TestExpirationAppealRecordsExpiration(t *testing.T) {
	h := newHarness(t, request(domain.Date(2024, 2, 1)))
	require.Equal(t, appeal.KindExpiration, h.kind)

	h.advance(0, map[string]any{"legal_date": "2024-03-15"})
	res := h.submit(1, map[string]any{})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)

	actions := h.env.Branch.Actions
	require.Len(t, actions, 3)
	assert.Equal(t, domain.ActionExpiration, actions[1].Type)
	assert.Equal(t, today, actions[1].LegalDate)
	assert.Equal(t, domain.ActionAppeal, actions[2].Type)
	assert.Contains(t, actions[2].Content, "statutory deadline")
}

func TestFinishRejectsIneligibleBranch(t *testing.T) {
	h := newHarness(t, request(domain.Date(2024, 3, 14)))
	require.Equal(t, appeal.KindFallback, h.kind)

	h.advance(0, map[string]any{"reason": "No response yet."})
	h.advance(1, map[string]any{"legal_date": "2024-03-15"})
	res := h.submit(2, map[string]any{})
	assert.Equal(t, wizard.AwaitingInput, res.State)
	assert.Contains(t, res.Current.Errors[wizard.NonFieldErrors], "An appeal can no longer be added to this branch.")
	assert.Len(t, h.env.Branch.Actions, 1)
}

func refusalHarness(t *testing.T, reasons ...domain.RefusalReason) *harness {
	return newHarness(t, request(domain.Date(2024, 3, 1)), &domain.Action{
		Type: domain.ActionRefusal, LegalDate: domain.Date(2024, 3, 12), DeadlineDays: domain.Days(15), RefusalReasons: reasons,
	})
}

func TestRefusalWalksOnlyGivenReasons(t *testing.T) {
	h := refusalHarness(t, domain.RefusalDoesNotHave, domain.RefusalPersonal, domain.RefusalConfidential)
	require.Equal(t, appeal.KindRefusal, h.kind)

	h.advance(0, map[string]any{"does_not_have_reason": "The ministry keeps the register."})
	h.advance(1, map[string]any{"personal_officer": "no"})
	h.advance(2, map[string]any{})
	res := h.advance(3, map[string]any{"confidential_not_confidential": "yes"})
	assert.Equal(t, []wizard.StepID{
		"DoesNotHaveReason", "PersonalOfficer", "PersonalFallbackReason", "ConfidentialNotConfidential",
		"ConfidentialNotConfidentialReason", appeal.SanitizationLevel, appeal.Paper, appeal.Final,
	}, path(res))

	h.advance(4, map[string]any{"confidential_not_confidential_reason": "The contract is public."})
	res = h.advance(5, map[string]any{"sanitization_level": "properly-sanitized"})
	assert.Equal(t, appeal.SanitizationProperlySanitized, res.Next().ID, "personal data left uncontested")
	assert.Equal(t, wizard.Deadend, res.Next().Kind)

	res = h.submit(2, map[string]any{"personal_fallback_reason_included": "1"})
	assert.Contains(t, res.Current.Errors, "personal_fallback_reason")

	h.advance(2, map[string]any{"personal_fallback_reason_included": "1", "personal_fallback_reason": "Names can be blacked out."})
	res = h.replay(6)
	require.Equal(t, appeal.Paper, res.Current.ID)

	res = h.advance(6, map[string]any{"legal_date": "2024-03-15"})
	content := res.Globals.String(appeal.ValContent)
	assert.Contains(t, content, "The ministry keeps the register.")
	assert.Contains(t, content, "Names can be blacked out.")
	assert.Contains(t, content, "The contract is public.")
	assert.Less(t, strings.Index(content, "register"), strings.Index(content, "blacked out"))
}

func TestRefusalWithoutSanitizableReasonSkipsSanitization(t *testing.T) {
	h := refusalHarness(t, domain.RefusalOtherReason)
	res := h.advance(0, map[string]any{"other_reason_valid": "0"})
	assert.Equal(t, []wizard.StepID{"OtherReasonValid", "OtherReasonInvalidReason", appeal.Paper, appeal.Final}, path(res))
}

func TestRetrospectionFollowsAdvancement(t *testing.T) {
	main := &domain.Branch{ID: 1, Obligee: ministry, Actions: []*domain.Action{
		{ID: 10, Type: domain.ActionRequest, LegalDate: domain.Date(2024, 2, 1)},
		{ID: 11, Type: domain.ActionAdvancement, LegalDate: domain.Date(2024, 2, 5)},
		{ID: 12, Type: domain.ActionExpiration, LegalDate: domain.Date(2024, 3, 1)},
	}}
	sub := &domain.Branch{ID: 2, Obligee: domain.Obligee{ID: 2, Name: "Office"}, AdvancedByID: 11, Actions: []*domain.Action{
		{ID: 20, Type: domain.ActionAdvancedRequest, LegalDate: domain.Date(2024, 2, 5)},
		{ID: 21, Type: domain.ActionExtension, LegalDate: domain.Date(2024, 2, 10), Extension: 5},
	}}
	ir := &domain.Inforequest{Branches: []*domain.Branch{main, sub}}

	assert.Equal(t, []string{
		"On 2024-02-01 I requested information from Ministry.",
		"On 2024-02-05 Ministry forwarded the request to other obligees.",
		"On 2024-02-05 the request was forwarded to Office.",
		"On 2024-02-10 Office extended its deadline by 5 working days.",
	}, appeal.Retrospection(ir, sub))
}

func (h *harness) replay(index int) *wizard.Result {
	h.t.Helper()
	res, err := h.eng.Replay(context.Background(), h.request(index, nil))
	require.NoError(h.t, err)
	return res
}
