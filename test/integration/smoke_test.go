package integration_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/inforequest/inforequest/internal/agent"
	"github.com/inforequest/inforequest/internal/config"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/protocol"
	"github.com/inforequest/inforequest/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = domain.Date(2024, 3, 15)

func openService(t *testing.T, cfg config.Config, opts ...service.Option) (*service.WizardService, service.Stores) {
	t.Helper()
	stores, closers, err := agent.OpenStores(context.Background(), cfg.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { agent.Close(closers) })

	cal, err := cfg.WorkdayCalendar()
	require.NoError(t, err)
	opts = append([]service.Option{
		service.WithClock(domain.FixedClock(today)),
		service.WithNow(func() time.Time { return today }),
	}, opts...)
	svc, err := service.New(stores, cal, opts...)
	require.NoError(t, err)
	return svc, stores
}

func TestSmoke_ObligeeActionEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Storage.DSN = filepath.Join(t.TempDir(), config.Dir, "inforequest.db")

	var trace bytes.Buffer
	svc, stores := openService(t, cfg, service.WithStatusHandler(protocol.NewStatusWriter(&trace)))

	ministry := domain.Obligee{Name: "Ministry"}
	require.NoError(t, stores.Obligees.CreateObligee(ctx, &ministry))
	ir := &domain.Inforequest{Owner: "alice", Subject: "Budget 2024", Branches: []*domain.Branch{{
		Obligee: ministry,
		Actions: []*domain.Action{{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 3, 11), DeadlineDays: domain.Days(8)}},
	}}}
	require.NoError(t, stores.Inforequests.CreateInforequest(ctx, ir))

	steps := []map[string]any{
		{"delivered_date": "2024-03-14"},
		{"is_question": "0"},
		{"is_confirmation": "1"},
		{"legal_date": "2024-03-13", "last_action_dd": "2024-03-12"},
	}
	var redirect string
	for i, data := range steps {
		res, err := svc.ObligeeAction(ctx, service.StepRequest{
			Owner: "alice", InforequestID: ir.ID, Index: strconv.Itoa(i), Data: data,
		})
		require.NoError(t, err)
		require.True(t, res.Committed, "step %d: %v", i, res.Current.Errors)
		redirect = res.Redirect
	}
	require.NotEmpty(t, redirect)

	msgs, err := protocol.ParseStatusStream(trace.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, protocol.MsgFinished, last.Type)
	assert.Equal(t, redirect, last.Redirect)

	// A fresh process sees the recorded action and no draft.
	svc2, stores2 := openService(t, cfg)
	got, err := stores2.Inforequests.GetInforequest(ctx, ir.ID, "alice")
	require.NoError(t, err)
	b := got.MainBranch()
	require.Len(t, b.Actions, 2)
	assert.Equal(t, domain.ActionConfirmation, b.LastAction().Type)
	assert.Equal(t, domain.Date(2024, 3, 13), b.LastAction().LegalDate)

	drafts, err := stores2.Drafts.ListDrafts(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, drafts)

	e, err := svc2.Eligibility(ctx, "alice", ir.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionConfirmation, e.Last)
	assert.False(t, e.Eligible.Has(domain.ActionConfirmation))
}
