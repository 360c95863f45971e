package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
)

var _ CatalogUseCase = (*catalogUC)(nil)

type CatalogUseCase interface {
	CreateChannel(ctx context.Context, c *model.Channel) (*model.Channel, error)
	ListChannels(ctx context.Context) ([]*model.Channel, error)
	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListActiveProducts(ctx context.Context) ([]*model.Product, error)
}

type catalogUC struct {
	channels repository.ChannelRepository
	products repository.ProductRepository
	clock    Clock
	log      *zerolog.Logger
}

func NewCatalogUseCase(channels repository.ChannelRepository, products repository.ProductRepository, clock Clock, logger *zerolog.Logger) *catalogUC {
	return &catalogUC{channels: channels, products: products, clock: orSystem(clock), log: logger}
}

func (u *catalogUC) CreateChannel(ctx context.Context, c *model.Channel) (*model.Channel, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.CreateChannel")()

	ch, err := model.NewChannel(c.ID, c.Name, c.Username, c.Description, u.clock())
	if err != nil {
		return nil, err
	}
	if err := u.channels.Save(ctx, repository.NoTX, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (u *catalogUC) ListChannels(ctx context.Context) ([]*model.Channel, error) {
	return u.channels.List(ctx, repository.NoTX)
}

func (u *catalogUC) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.CreateProduct")()

	cp := *p
	cp.ID = uuid.NewString()
	now := u.clock()
	cp.CreatedAt, cp.UpdatedAt = now, now
	if err := u.store(ctx, &cp); err != nil {
		return nil, err
	}
	u.log.Info().Str("product_id", cp.ID).Int64("channel_id", cp.ChannelID.Int64()).Msg("product created")
	return &cp, nil
}

func (u *catalogUC) UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.UpdateProduct")()

	current, err := u.products.FindByID(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.CreatedAt = current.CreatedAt
	cp.UpdatedAt = u.clock()
	if err := u.store(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (u *catalogUC) store(ctx context.Context, p *model.Product) error {
	if p.Currency == "" {
		return domain.ErrInvalidArgument
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := u.channels.FindByID(ctx, repository.NoTX, p.ChannelID); err != nil {
		return err
	}
	return u.products.Save(ctx, repository.NoTX, p)
}

func (u *catalogUC) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return u.products.FindByID(ctx, repository.NoTX, id)
}

func (u *catalogUC) ListActiveProducts(ctx context.Context) ([]*model.Product, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.ListActiveProducts")()
	return u.products.ListActive(ctx, repository.NoTX)
}
