package ports

import (
	"context"
	"errors"

	"github.com/inforequest/inforequest/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist or is not
// visible to the requesting owner.
var ErrNotFound = errors.New("not found")

// DraftStore persists wizard drafts. Drafts are scoped to their owner: a
// draft of another owner is reported as ErrNotFound. SaveDraft replaces the
// whole record in one write; concurrent saves are last-write-wins.
type DraftStore interface {
	LoadDraft(ctx context.Context, id, owner string) (*domain.Draft, error)
	SaveDraft(ctx context.Context, d *domain.Draft) error
	DeleteDraft(ctx context.Context, id, owner string) error
	ListDrafts(ctx context.Context, owner string) ([]*domain.Draft, error)
}

// InforequestStore is the case-management side the wizards read from and
// finish into.
type InforequestStore interface {
	GetInforequest(ctx context.Context, id int64, owner string) (*domain.Inforequest, error)
	CreateInforequest(ctx context.Context, ir *domain.Inforequest) error
	CreateBranch(ctx context.Context, inforequestID int64, b *domain.Branch) error
	CreateAction(ctx context.Context, a *domain.Action) error
	UpdateAction(ctx context.Context, a *domain.Action) error
	CreateEmail(ctx context.Context, inforequestID int64, e *domain.Email) error
	SetEmailType(ctx context.Context, emailID int64, t domain.EmailType) error
}

// ObligeeStore is the registry of public bodies a request can be addressed
// or advanced to.
type ObligeeStore interface {
	CreateObligee(ctx context.Context, o *domain.Obligee) error
	ListObligees(ctx context.Context) ([]domain.Obligee, error)
}
