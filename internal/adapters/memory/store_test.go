package memory_test

import (
	"context"
	"testing"

	"github.com/inforequest/inforequest/internal/adapters/memory"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	d := domain.NewDraft("w-1", "alice")
	d.Set("Step", "answer", "yes")
	require.NoError(t, store.SaveDraft(ctx, d))

	got, err := store.LoadDraft(ctx, "w-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "yes", got.Scope("Step")["answer"])

	_, err = store.LoadDraft(ctx, "w-1", "bob")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	assert.ErrorIs(t, store.DeleteDraft(ctx, "w-1", "bob"), ports.ErrNotFound)
	require.NoError(t, store.DeleteDraft(ctx, "w-1", "alice"))
	_, err = store.LoadDraft(ctx, "w-1", "alice")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSavedDraftIsCopied(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	d := domain.NewDraft("w-1", "alice")
	require.NoError(t, store.SaveDraft(ctx, d))
	d.Set("Step", "answer", "changed")

	got, err := store.LoadDraft(ctx, "w-1", "alice")
	require.NoError(t, err)
	assert.Nil(t, got.Scope("Step"))
}

func TestInforequestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	ir := &domain.Inforequest{Owner: "alice", Branches: []*domain.Branch{{
		Actions: []*domain.Action{{Type: domain.ActionRequest, LegalDate: domain.Date(2024, 1, 1)}},
	}}}
	require.NoError(t, store.CreateInforequest(ctx, ir))
	require.NotZero(t, ir.ID)

	branch := ir.Branches[0]
	require.NoError(t, store.CreateAction(ctx, &domain.Action{BranchID: branch.ID, Type: domain.ActionConfirmation}))
	assert.Equal(t, domain.ActionConfirmation, branch.LastAction().Type)

	require.NoError(t, store.CreateEmail(ctx, ir.ID, &domain.Email{Subject: "Re: request"}))
	assert.True(t, ir.HasUndecidedEmails())
	require.NoError(t, store.SetEmailType(ctx, ir.Emails[0].ID, domain.EmailObligeeAction))
	assert.False(t, ir.HasUndecidedEmails())

	_, err := store.GetInforequest(ctx, ir.ID, "bob")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestObligees(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	office := &domain.Obligee{Name: "Regional Office"}
	require.NoError(t, store.CreateObligee(ctx, &domain.Obligee{Name: "Ministry"}))
	require.NoError(t, store.CreateObligee(ctx, office))

	list, err := store.ListObligees(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ministry", list[0].Name)
	assert.Equal(t, *office, list[1])
}
