package repository

import (
	"context"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

type ChannelRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Channel) error
	FindByID(ctx context.Context, tx Tx, id model.TelegramID) (*model.Channel, error)
	List(ctx context.Context, tx Tx) ([]*model.Channel, error)
}

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Product, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Product, error)
}
