package service_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/inforequest/inforequest/internal/adapters/memory"
	"github.com/inforequest/inforequest/internal/appeal"
	"github.com/inforequest/inforequest/internal/clarificationresponse"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/obligeeaction"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/service"
	"github.com/inforequest/inforequest/internal/wizard"
	"github.com/inforequest/inforequest/internal/workdays"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var today = domain.Date(2024, 3, 15)

type fixture struct {
	store *memory.Store
	svc   *service.WizardService
	ir    *domain.Inforequest
	logs  *observer.ObservedLogs
}

func newFixture(t *testing.T, actions ...*domain.Action) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ministry := domain.Obligee{ID: 1, Name: "Ministry"}
	require.NoError(t, store.CreateObligee(ctx, &ministry))

	if len(actions) == 0 {
		actions = []*domain.Action{{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 3, 11), DeadlineDays: domain.Days(8)}}
	}
	ir := &domain.Inforequest{Owner: "alice", Subject: "Budget 2024", Branches: []*domain.Branch{{Obligee: ministry, Actions: actions}}}
	require.NoError(t, store.CreateInforequest(ctx, ir))

	core, logs := observer.New(zapcore.InfoLevel)
	svc, err := service.New(
		service.Stores{Drafts: store, Inforequests: store, Obligees: store},
		workdays.New(),
		service.WithClock(domain.FixedClock(today)),
		service.WithNow(func() time.Time { return today }),
		service.WithLogger(zap.New(core)),
	)
	require.NoError(t, err)
	return &fixture{store: store, svc: svc, ir: ir, logs: logs}
}

func (f *fixture) branchID() int64 { return f.ir.Branches[0].ID }

func (f *fixture) obligeeAction(t *testing.T, index int, data map[string]any) *wizard.Result {
	t.Helper()
	res, err := f.svc.ObligeeAction(context.Background(), service.StepRequest{
		Owner: "alice", InforequestID: f.ir.ID, Index: strconv.Itoa(index), Data: data,
	})
	require.NoError(t, err)
	return res
}

func TestObligeeActionFinishes(t *testing.T) {
	f := newFixture(t)

	res := f.obligeeAction(t, 0, map[string]any{"delivered_date": "2024-03-14"})
	require.True(t, res.Committed, "%v", res.Current.Errors)
	f.obligeeAction(t, 1, map[string]any{"is_question": "0"})
	f.obligeeAction(t, 2, map[string]any{"is_confirmation": "1"})
	res = f.obligeeAction(t, 3, map[string]any{"legal_date": "2024-03-13", "last_action_dd": "2024-03-12"})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)

	last := f.ir.Branches[0].LastAction()
	assert.Equal(t, domain.ActionConfirmation, last.Type)
	assert.Equal(t, domain.ActionPath(f.ir.ID, last.ID), res.Redirect)

	_, err := f.store.LoadDraft(context.Background(), obligeeaction.InstanceID(f.ir.ID), "alice")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	finished := f.logs.FilterMessage("wizard finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, res.Redirect, finished[0].ContextMap()["redirect"])
}

func TestObligeeActionCorrectsNavigation(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ObligeeAction(context.Background(), service.StepRequest{
		Owner: "alice", InforequestID: f.ir.ID, Index: "step-two",
	})
	require.NoError(t, err)
	assert.Equal(t, wizard.NavigationCorrected, res.State)
	assert.Equal(t, 0, res.Current.Index)
	assert.Equal(t, 1, f.logs.FilterMessage("navigation corrected").Len())
}

func TestObligeeActionIsOwnerScoped(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ObligeeAction(context.Background(), service.StepRequest{
		Owner: "mallory", InforequestID: f.ir.ID, Index: "0",
	})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestAbandonObligeeAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.obligeeAction(t, 0, map[string]any{"delivered_date": "2024-03-14"})
	require.NoError(t, f.svc.AbandonObligeeAction(ctx, "alice", f.ir.ID))

	res := f.obligeeAction(t, 1, nil)
	assert.Equal(t, wizard.NavigationCorrected, res.State)
	assert.Equal(t, 0, res.Current.Index)
	assert.Nil(t, res.Current.Initial["delivered_date"])

	require.NoError(t, f.svc.AbandonObligeeAction(ctx, "alice", f.ir.ID), "abandoning twice is fine")
}

func partialDisclosure(legal time.Time) []*domain.Action {
	return []*domain.Action{
		{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 2, 1), DeadlineDays: domain.Days(8)},
		{Type: domain.ActionDisclosure, LegalDate: legal, DisclosureLevel: domain.DisclosurePartial, DeadlineDays: domain.Days(15)},
	}
}

func TestAppealRequiresEligibility(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Appeal(context.Background(), service.StepRequest{
		Owner: "alice", InforequestID: f.ir.ID, BranchID: f.branchID(), Index: "0",
	})
	assert.ErrorIs(t, err, service.ErrNotEligible)

	_, err = f.svc.Appeal(context.Background(), service.StepRequest{
		Owner: "alice", InforequestID: f.ir.ID, BranchID: 999, Index: "0",
	})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestAppealDraftIsKeyedByLastAction(t *testing.T) {
	f := newFixture(t, partialDisclosure(domain.Date(2024, 3, 12))...)
	ctx := context.Background()
	req := service.StepRequest{Owner: "alice", InforequestID: f.ir.ID, BranchID: f.branchID(), Index: "0",
		Data: map[string]any{"reason": "Annexes are missing."}}

	res, err := f.svc.Appeal(ctx, req)
	require.NoError(t, err)
	require.True(t, res.Committed, "%v", res.Current.Errors)
	assert.Equal(t, appeal.InstanceID(appeal.KindDisclosure, f.ir.Branches[0].LastAction().ID), res.Instance)

	_, err = f.store.LoadDraft(ctx, res.Instance, "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.AbandonAppeal(ctx, "alice", f.ir.ID, f.branchID()))
	_, err = f.store.LoadDraft(ctx, res.Instance, "alice")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestAppealFinishes(t *testing.T) {
	f := newFixture(t, partialDisclosure(domain.Date(2024, 3, 12))...)
	ctx := context.Background()
	step := func(index int, data map[string]any) *wizard.Result {
		res, err := f.svc.Appeal(ctx, service.StepRequest{
			Owner: "alice", InforequestID: f.ir.ID, BranchID: f.branchID(), Index: strconv.Itoa(index), Data: data,
		})
		require.NoError(t, err)
		return res
	}

	step(0, map[string]any{"reason": "Annexes are missing."})
	step(1, map[string]any{"legal_date": "2024-03-15"})
	res := step(2, map[string]any{})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	assert.Equal(t, domain.ActionAppeal, f.ir.Branches[0].LastAction().Type)
}

func TestClarificationResponse(t *testing.T) {
	f := newFixture(t,
		&domain.Action{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 3, 1), DeadlineDays: domain.Days(8)},
		&domain.Action{Type: domain.ActionClarificationRequest, LegalDate: domain.Date(2024, 3, 12), DeadlineDays: domain.Days(7)},
	)
	ctx := context.Background()
	request := f.ir.Branches[0].LastAction()
	step := func(index int, data map[string]any) *wizard.Result {
		res, err := f.svc.ClarificationResponse(ctx, service.StepRequest{
			Owner: "alice", InforequestID: f.ir.ID, BranchID: f.branchID(), Index: strconv.Itoa(index), Data: data,
		})
		require.NoError(t, err)
		return res
	}

	res := step(0, map[string]any{"text": "The ministry's own budget."})
	require.True(t, res.Committed, "%v", res.Current.Errors)
	assert.Equal(t, clarificationresponse.InstanceID(request.ID), res.Instance)

	require.NoError(t, f.svc.AbandonClarificationResponse(ctx, "alice", f.ir.ID, f.branchID()))
	_, err := f.store.LoadDraft(ctx, res.Instance, "alice")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	step(0, map[string]any{"text": "The ministry's own budget."})
	step(1, map[string]any{"legal_date": "2024-03-15"})
	res = step(2, map[string]any{})
	require.Equal(t, wizard.Finished, res.State, "%v", res.Current.Errors)
	last := f.ir.Branches[0].LastAction()
	assert.Equal(t, domain.ActionClarificationResponse, last.Type)
	assert.Equal(t, 8, *last.DeadlineDays)

	_, err = f.svc.ClarificationResponse(ctx, service.StepRequest{
		Owner: "alice", InforequestID: f.ir.ID, BranchID: f.branchID(), Index: "0",
	})
	assert.ErrorIs(t, err, service.ErrNotEligible)
}

func TestEligibility(t *testing.T) {
	f := newFixture(t, partialDisclosure(domain.Date(2024, 3, 12))...)

	got, err := f.svc.Eligibility(context.Background(), "alice", f.ir.ID, f.branchID())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDisclosure, got.Last)
	assert.False(t, got.DeadlineMissed)
	assert.True(t, got.Eligible.Has(domain.ActionAppeal))
	assert.False(t, got.Eligible.Has(domain.ActionRequest))

	_, err = f.svc.Eligibility(context.Background(), "bob", f.ir.ID, f.branchID())
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestExtendDeadline(t *testing.T) {
	// The applicant deadline ended on 2024-03-06, nine days before today.
	f := newFixture(t, partialDisclosure(domain.Date(2024, 2, 20))...)
	ctx := context.Background()
	last := f.ir.Branches[0].LastAction()

	updated, err := f.svc.ExtendDeadline(ctx, "alice", f.ir.ID, f.branchID(), last.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 14, updated.ApplicantExtension)

	d := f.ir.Branches[0].LastAction().Deadline(workdays.New(), domain.FixedClock(today))
	date, err := d.ExtendedDate()
	require.NoError(t, err)
	assert.Equal(t, domain.Date(2024, 3, 20), date)
	assert.Equal(t, 1, f.logs.FilterMessage("applicant deadline extended").Len())
}

func TestExtendDeadlineRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("out of range", func(t *testing.T) {
		f := newFixture(t, partialDisclosure(domain.Date(2024, 2, 20))...)
		_, err := f.svc.ExtendDeadline(ctx, "alice", f.ir.ID, f.branchID(), f.ir.Branches[0].LastAction().ID, 101)
		var rangeErr *service.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, "applicant_extension", rangeErr.Field)
	})

	t.Run("deadline not missed", func(t *testing.T) {
		f := newFixture(t, partialDisclosure(domain.Date(2024, 3, 12))...)
		_, err := f.svc.ExtendDeadline(ctx, "alice", f.ir.ID, f.branchID(), f.ir.Branches[0].LastAction().ID, 5)
		assert.ErrorIs(t, err, service.ErrNotEligible)
	})

	t.Run("not the last action", func(t *testing.T) {
		f := newFixture(t, partialDisclosure(domain.Date(2024, 2, 20))...)
		_, err := f.svc.ExtendDeadline(ctx, "alice", f.ir.ID, f.branchID(), f.ir.Branches[0].Actions[0].ID, 5)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("undecided email", func(t *testing.T) {
		f := newFixture(t, partialDisclosure(domain.Date(2024, 2, 20))...)
		require.NoError(t, f.store.CreateEmail(ctx, f.ir.ID, &domain.Email{Subject: "Re: Budget"}))
		_, err := f.svc.ExtendDeadline(ctx, "alice", f.ir.ID, f.branchID(), f.ir.Branches[0].LastAction().ID, 5)
		assert.ErrorIs(t, err, service.ErrNotEligible)
	})

	t.Run("obligee deadline", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ExtendDeadline(ctx, "alice", f.ir.ID, f.branchID(), f.ir.Branches[0].LastAction().ID, 5)
		assert.ErrorIs(t, err, service.ErrNotEligible)
	})
}
