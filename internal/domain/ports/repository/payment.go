package repository

import (
	"context"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

type PaymentRepository interface {
	// Insert returns domain.ErrMemoCollision when the memo is already taken.
	Insert(ctx context.Context, tx Tx, p *model.Payment) error
	// FindByID and FindByMemo lock the row when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByMemo(ctx context.Context, tx Tx, memo string) (*model.Payment, error)
	// Update persists status, tx hash and paid_at.
	Update(ctx context.Context, tx Tx, p *model.Payment) error
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.Payment, error)
	// FailStalePending marks pending payments created before olderThan as failed.
	FailStalePending(ctx context.Context, tx Tx, olderThan, now time.Time) (int64, error)
}
