package storage

import (
	"context"
	"errors"

	"github.com/MikhailRaia/paylink/internal/model"
)

var (
	// ErrLinkExists is returned together with the id of the link already
	// registered for the same code.
	ErrLinkExists     = errors.New("link for this code already exists")
	ErrLinkNotFound   = errors.New("link not found")
	ErrStatusConflict = errors.New("link is not in the expected status")
)

// LinkStorage keeps issued payment links. Codes are unique across links.
type LinkStorage interface {
	Save(ctx context.Context, link model.PaymentLink) (string, error)
	Get(ctx context.Context, id string) (model.PaymentLink, error)
	GetByCode(ctx context.Context, code string) (model.PaymentLink, error)
	// UpdateStatus moves the link with code from one status to another.
	UpdateStatus(ctx context.Context, code string, from, to model.LinkStatus) error
	GetUserLinks(ctx context.Context, userID string) ([]model.PaymentLink, error)
	// CancelUserLinks cancels the pending links among ids that belong to userID.
	CancelUserLinks(ctx context.Context, userID string, ids []string) error
	GetStats(ctx context.Context) (links int, users int, err error)
}
