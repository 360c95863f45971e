package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

var _ DemoUseCase = (*demoUC)(nil)

type DemoUseCase interface {
	// Grant creates the one-time trial for (user, product).
	// Fails with domain.ErrDemoNotAllowed or domain.ErrDemoAlreadyGranted.
	Grant(ctx context.Context, userID model.TelegramID, productID string) (*model.DemoAccess, error)
	// Deactivate clears is_active, freeing the pair for a new grant.
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context, userID model.TelegramID) ([]*model.DemoAccess, error)
}

type demoUC struct {
	demos    repository.DemoAccessRepository
	products repository.ProductRepository
	tm       repository.TransactionManager
	events   adapter.EventPublisher
	clock    Clock
	log      *zerolog.Logger
}

func NewDemoUseCase(
	demos repository.DemoAccessRepository,
	products repository.ProductRepository,
	tm repository.TransactionManager,
	events adapter.EventPublisher,
	clock Clock,
	logger *zerolog.Logger,
) *demoUC {
	return &demoUC{
		demos:    demos,
		products: products,
		tm:       tm,
		events:   events,
		clock:    orSystem(clock),
		log:      logger,
	}
}

func (u *demoUC) Grant(ctx context.Context, userID model.TelegramID, productID string) (*model.DemoAccess, error) {
	defer logging.TraceDuration(u.log, "DemoUC.Grant")()

	product, err := u.products.FindByID(ctx, repository.NoTX, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.ErrNotFound
	}
	now := u.clock()
	demo, err := model.NewDemoAccess(userID, product, now)
	if err != nil {
		if errors.Is(err, domain.ErrDemoNotAllowed) {
			metrics.IncDemoGrant("not_allowed")
		}
		return nil, err
	}

	// The partial unique index on (user_id, product_id) WHERE is_active closes
	// the race between the lookup and the insert.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		_, err := u.demos.FindActiveByUserProduct(ctx, tx, userID, productID)
		switch {
		case err == nil:
			return domain.ErrDemoAlreadyGranted
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return u.demos.Insert(ctx, tx, demo)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDemoAlreadyGranted) {
			metrics.IncDemoGrant("duplicate")
		}
		return nil, err
	}

	metrics.IncDemoGrant("granted")
	publishEvent(ctx, u.events, u.log, adapter.EventDemoGranted, demo, now)
	u.log.Info().Str("demo_id", demo.ID).Int64("tg_id", userID.Int64()).Str("product_id", productID).Msg("demo granted")
	return demo, nil
}

func (u *demoUC) Deactivate(ctx context.Context, id string) error {
	defer logging.TraceDuration(u.log, "DemoUC.Deactivate")()
	return u.demos.Deactivate(ctx, repository.NoTX, id)
}

func (u *demoUC) ListActive(ctx context.Context, userID model.TelegramID) ([]*model.DemoAccess, error) {
	return u.demos.ListActive(ctx, repository.NoTX, userID, u.clock())
}
