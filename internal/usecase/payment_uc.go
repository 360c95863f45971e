package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreatePendingPayment stores a pending intent under a fresh unique memo.
	CreatePendingPayment(ctx context.Context, userID model.TelegramID, productID string, amount decimal.Decimal) (*model.Payment, error)
	// Checkout prices the product (optionally redeeming promoCode) and creates the intent.
	Checkout(ctx context.Context, userID model.TelegramID, productID, promoCode string) (*model.Payment, error)
	// Confirm marks the payment carrying memo as successful and grants the subscription.
	// Confirming an already successful payment returns the existing subscription.
	Confirm(ctx context.Context, memo, txHash string) (*model.Payment, *model.Subscription, error)
	ConfirmByID(ctx context.Context, id, txHash string) (*model.Payment, *model.Subscription, error)
	// Fail marks a pending payment as failed; failing a failed payment is a no-op.
	Fail(ctx context.Context, memo string) (*model.Payment, error)
	FailByID(ctx context.Context, id string) (*model.Payment, error)
	// Get returns a payment owned by userID.
	Get(ctx context.Context, id string, userID model.TelegramID) (*model.Payment, error)
	ListPending(ctx context.Context, limit int) ([]*model.Payment, error)
	// ExpireStale fails pending intents older than the configured TTL.
	ExpireStale(ctx context.Context) (int64, error)
}

type PaymentOptions struct {
	Currency    string
	MemoLength  int
	MaxAttempts int
	PendingTTL  time.Duration
}

type paymentUC struct {
	payments repository.PaymentRepository
	products repository.ProductRepository
	promos   repository.PromoRepository
	subUC    SubscriptionUseCase
	notifier NotificationUseCase
	tm       repository.TransactionManager
	events   adapter.EventPublisher
	memo     MemoSource
	opts     PaymentOptions
	clock    Clock
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	products repository.ProductRepository,
	promos repository.PromoRepository,
	subUC SubscriptionUseCase,
	notifier NotificationUseCase,
	tm repository.TransactionManager,
	events adapter.EventPublisher,
	memo MemoSource,
	opts PaymentOptions,
	clock Clock,
	logger *zerolog.Logger,
) *paymentUC {
	if memo == nil {
		memo = RandomMemo
	}
	if opts.MemoLength <= 0 {
		opts.MemoLength = 10
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Currency == "" {
		opts.Currency = "TON"
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 30 * time.Minute
	}
	return &paymentUC{
		payments: payments,
		products: products,
		promos:   promos,
		subUC:    subUC,
		notifier: notifier,
		tm:       tm,
		events:   events,
		memo:     memo,
		opts:     opts,
		clock:    orSystem(clock),
		log:      logger,
	}
}

func (u *paymentUC) CreatePendingPayment(ctx context.Context, userID model.TelegramID, productID string, amount decimal.Decimal) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreatePendingPayment")()

	if _, err := u.products.FindByID(ctx, repository.NoTX, productID); err != nil {
		return nil, err
	}
	var out *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.insertPending(ctx, tx, userID, productID, amount, nil)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	return out, nil
}

func (u *paymentUC) Checkout(ctx context.Context, userID model.TelegramID, productID, promoCode string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Checkout")()

	product, err := u.products.FindByID(ctx, repository.NoTX, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.ErrNotFound
	}
	var promo *model.PromoCode
	if code := strings.TrimSpace(promoCode); code != "" {
		if promo, err = u.promos.FindByCode(ctx, repository.NoTX, model.NormalizePromoCode(code)); err != nil {
			recordRedemption(err)
			return nil, err
		}
	}

	var out *model.Payment
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		amount := product.EffectivePrice()
		var promoID *string
		if promo != nil {
			redeemed, err := redeemPromo(ctx, tx, u.promos, promo.ID, userID, u.clock())
			if err != nil {
				return err
			}
			amount = redeemed.Discount(amount)
			promoID = &redeemed.ID
		}
		p, err := u.insertPending(ctx, tx, userID, product.ID, amount, promoID)
		out = p
		return err
	})
	if promo != nil {
		recordRedemption(err)
	}
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Str("payment_id", out.ID).Int64("tg_id", userID.Int64()).Str("amount", out.Amount.String()).Msg("payment intent created")
	return out, nil
}

// insertPending retries with a fresh memo while storage reports a collision.
func (u *paymentUC) insertPending(ctx context.Context, tx repository.Tx, userID model.TelegramID, productID string, amount decimal.Decimal, promoID *string) (*model.Payment, error) {
	for attempt := 1; attempt <= u.opts.MaxAttempts; attempt++ {
		memo, err := u.memo(u.opts.MemoLength)
		if err != nil {
			return nil, err
		}
		p, err := model.NewPendingPayment(userID, productID, amount, u.opts.Currency, memo, u.clock())
		if err != nil {
			return nil, err
		}
		p.PromoID = promoID

		err = u.payments.Insert(ctx, tx, p)
		switch classifyInsert(err) {
		case insertOK:
			return p, nil
		case insertRetry:
			u.log.Debug().Int("attempt", attempt).Msg("memo collision, regenerating")
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no unique memo after %d attempts", domain.ErrOperationFailed, u.opts.MaxAttempts)
}

type paymentLookup func(ctx context.Context, tx repository.Tx) (*model.Payment, error)

func (u *paymentUC) byMemo(memo string) paymentLookup {
	return func(ctx context.Context, tx repository.Tx) (*model.Payment, error) {
		return u.payments.FindByMemo(ctx, tx, strings.ToUpper(strings.TrimSpace(memo)))
	}
}

func (u *paymentUC) byID(id string) paymentLookup {
	return func(ctx context.Context, tx repository.Tx) (*model.Payment, error) {
		return u.payments.FindByID(ctx, tx, id)
	}
}

func (u *paymentUC) Confirm(ctx context.Context, memo, txHash string) (*model.Payment, *model.Subscription, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Confirm")()
	return u.confirm(ctx, u.byMemo(memo), txHash)
}

func (u *paymentUC) ConfirmByID(ctx context.Context, id, txHash string) (*model.Payment, *model.Subscription, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ConfirmByID")()
	return u.confirm(ctx, u.byID(id), txHash)
}

func (u *paymentUC) confirm(ctx context.Context, find paymentLookup, txHash string) (*model.Payment, *model.Subscription, error) {
	var (
		payment      *model.Payment
		sub          *model.Subscription
		transitioned bool
	)
	now := u.clock()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := find(ctx, tx)
		if err != nil {
			return err
		}
		switch p.Status {
		case model.PaymentStatusSuccess:
			existing, err := u.subUC.FindByPayment(ctx, tx, p.ID)
			payment, sub = p, existing
			return err
		case model.PaymentStatusFailed:
			return domain.ErrInvalidTransition
		}
		if err := p.MarkSuccess(txHash, now); err != nil {
			return err
		}
		if err := u.payments.Update(ctx, tx, p); err != nil {
			return err
		}
		s, err := u.subUC.GrantFromPayment(ctx, tx, p)
		if err != nil {
			return err
		}
		payment, sub, transitioned = p, s, true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !transitioned {
		u.log.Debug().Str("payment_id", payment.ID).Msg("duplicate confirmation ignored")
		return payment, sub, nil
	}

	metrics.IncPayment(string(model.PaymentStatusSuccess))
	metrics.AddPaymentRevenue(payment.Currency, payment.Amount)
	metrics.IncSubscriptionGranted(string(model.GrantSourcePayment))
	publishEvent(ctx, u.events, u.log, adapter.EventPaymentSucceeded, payment, now)
	publishEvent(ctx, u.events, u.log, adapter.EventSubscriptionGranted, sub, now)
	u.notifier.PaymentConfirmed(ctx, payment, sub)
	u.log.Info().Str("payment_id", payment.ID).Str("subscription_id", sub.ID).Msg("payment confirmed")
	return payment, sub, nil
}

func (u *paymentUC) Fail(ctx context.Context, memo string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Fail")()
	return u.fail(ctx, u.byMemo(memo))
}

func (u *paymentUC) FailByID(ctx context.Context, id string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.FailByID")()
	return u.fail(ctx, u.byID(id))
}

func (u *paymentUC) fail(ctx context.Context, find paymentLookup) (*model.Payment, error) {
	var (
		payment      *model.Payment
		transitioned bool
	)
	now := u.clock()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := find(ctx, tx)
		if err != nil {
			return err
		}
		payment = p
		if p.Status == model.PaymentStatusFailed {
			return nil
		}
		if err := p.MarkFailed(now); err != nil {
			return err
		}
		transitioned = true
		return u.payments.Update(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		metrics.IncPayment(string(model.PaymentStatusFailed))
		publishEvent(ctx, u.events, u.log, adapter.EventPaymentFailed, payment, now)
		u.notifier.PaymentFailed(ctx, payment)
	}
	return payment, nil
}

func (u *paymentUC) Get(ctx context.Context, id string, userID model.TelegramID) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	// Hide other users' payments behind the same error as a missing one.
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (u *paymentUC) ListPending(ctx context.Context, limit int) ([]*model.Payment, error) {
	return u.payments.ListPending(ctx, repository.NoTX, limit)
}

func (u *paymentUC) ExpireStale(ctx context.Context) (int64, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ExpireStale")()

	now := u.clock()
	n, err := u.payments.FailStalePending(ctx, repository.NoTX, now.Add(-u.opts.PendingTTL), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		u.log.Info().Int64("count", n).Msg("stale pending payments failed")
	}
	return n, nil
}
