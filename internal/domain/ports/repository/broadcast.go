package repository

import (
	"context"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

type BroadcastRepository interface {
	Save(ctx context.Context, tx Tx, b *model.Broadcast) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Broadcast, error)
}
