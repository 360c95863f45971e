package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// GrantFromPayment creates the subscription for a payment that just succeeded,
	// inside the caller's transaction. A second call for the same payment returns
	// the existing row.
	GrantFromPayment(ctx context.Context, tx repository.Tx, payment *model.Payment) (*model.Subscription, error)
	FindByPayment(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error)
	// AdminGrant creates a subscription without payment. A nil expiresAt uses the product period.
	AdminGrant(ctx context.Context, userID model.TelegramID, productID string, expiresAt *time.Time) (*model.Subscription, error)
	Revoke(ctx context.Context, id string) (*model.Subscription, error)
	ListActive(ctx context.Context, userID model.TelegramID) ([]*model.Subscription, error)
	ListByUser(ctx context.Context, userID model.TelegramID) ([]*model.Subscription, error)
	// SweepExpired relabels lapsed active rows as expired and returns how many changed.
	SweepExpired(ctx context.Context) (int64, error)
}

type subscriptionUC struct {
	subs     repository.SubscriptionRepository
	products repository.ProductRepository
	channels repository.ChannelRepository
	users    repository.UserRepository
	tm       repository.TransactionManager
	events   adapter.EventPublisher
	clock    Clock
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	products repository.ProductRepository,
	channels repository.ChannelRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	events adapter.EventPublisher,
	clock Clock,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		subs:     subs,
		products: products,
		channels: channels,
		users:    users,
		tm:       tm,
		events:   events,
		clock:    orSystem(clock),
		log:      logger,
	}
}

func (u *subscriptionUC) GrantFromPayment(ctx context.Context, tx repository.Tx, payment *model.Payment) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.GrantFromPayment")()

	if payment == nil || payment.Status != model.PaymentStatusSuccess {
		return nil, domain.ErrInvalidTransition
	}
	product, err := u.loadProduct(ctx, tx, payment.ProductID)
	if err != nil {
		return nil, err
	}
	start := u.clock()
	if payment.PaidAt != nil {
		start = *payment.PaidAt
	}
	paymentID := payment.ID
	sub, err := model.NewSubscription(payment.UserID, product, &paymentID, start, time.Time{})
	if err != nil {
		return nil, err
	}
	err = u.subs.Insert(ctx, tx, sub)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return u.subs.FindByPaymentID(ctx, tx, payment.ID)
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (u *subscriptionUC) FindByPayment(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	return u.subs.FindByPaymentID(ctx, tx, paymentID)
}

// loadProduct requires both the product and its channel to exist.
func (u *subscriptionUC) loadProduct(ctx context.Context, tx repository.Tx, productID string) (*model.Product, error) {
	product, err := u.products.FindByID(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := u.channels.FindByID(ctx, tx, product.ChannelID); err != nil {
		return nil, err
	}
	return product, nil
}

func (u *subscriptionUC) AdminGrant(ctx context.Context, userID model.TelegramID, productID string, expiresAt *time.Time) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.AdminGrant")()

	if _, err := u.users.FindByTelegramID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	product, err := u.loadProduct(ctx, repository.NoTX, productID)
	if err != nil {
		return nil, err
	}
	var until time.Time
	if expiresAt != nil {
		until = *expiresAt
	}
	now := u.clock()
	sub, err := model.NewSubscription(userID, product, nil, now, until)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Insert(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	metrics.IncSubscriptionGranted(string(model.GrantSourceAdmin))
	publishEvent(ctx, u.events, u.log, adapter.EventSubscriptionGranted, sub, now)
	u.log.Info().Str("subscription_id", sub.ID).Int64("tg_id", userID.Int64()).Msg("subscription granted by admin")
	return sub, nil
}

func (u *subscriptionUC) Revoke(ctx context.Context, id string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Revoke")()

	var sub *model.Subscription
	now := u.clock()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.Revoke(now); err != nil {
			return err
		}
		if err := u.subs.UpdateStatus(ctx, tx, s.ID, s.Status, now); err != nil {
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSubscriptionRevoked()
	publishEvent(ctx, u.events, u.log, adapter.EventSubscriptionRevoked, sub, now)
	return sub, nil
}

func (u *subscriptionUC) ListActive(ctx context.Context, userID model.TelegramID) ([]*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.ListActive")()
	return u.subs.ListActive(ctx, repository.NoTX, userID, u.clock())
}

func (u *subscriptionUC) ListByUser(ctx context.Context, userID model.TelegramID) ([]*model.Subscription, error) {
	return u.subs.ListByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) SweepExpired(ctx context.Context) (int64, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.SweepExpired")()

	n, err := u.subs.ExpireDue(ctx, repository.NoTX, u.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
	}
	return n, nil
}
