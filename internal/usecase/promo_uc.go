package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

var _ PromoUseCase = (*promoUC)(nil)

type PromoUseCase interface {
	Create(ctx context.Context, code string, discountPercent, maxUses int) (*model.PromoCode, error)
	// Apply redeems one use of the promo for userID.
	Apply(ctx context.Context, promoID string, userID model.TelegramID) (*model.PromoCode, error)
	ApplyCode(ctx context.Context, code string, userID model.TelegramID) (*model.PromoCode, error)
}

type promoUC struct {
	promos repository.PromoRepository
	tm     repository.TransactionManager
	clock  Clock
	log    *zerolog.Logger
}

func NewPromoUseCase(promos repository.PromoRepository, tm repository.TransactionManager, clock Clock, logger *zerolog.Logger) *promoUC {
	return &promoUC{promos: promos, tm: tm, clock: orSystem(clock), log: logger}
}

func (u *promoUC) Create(ctx context.Context, code string, discountPercent, maxUses int) (*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoUC.Create")()

	p, err := model.NewPromoCode(code, discountPercent, maxUses, u.clock())
	if err != nil {
		return nil, err
	}
	if err := u.promos.Create(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *promoUC) Apply(ctx context.Context, promoID string, userID model.TelegramID) (*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoUC.Apply")()

	var out *model.PromoCode
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := redeemPromo(ctx, tx, u.promos, promoID, userID, u.clock())
		out = p
		return err
	})
	recordRedemption(err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *promoUC) ApplyCode(ctx context.Context, code string, userID model.TelegramID) (*model.PromoCode, error) {
	p, err := u.promos.FindByCode(ctx, repository.NoTX, model.NormalizePromoCode(code))
	if err != nil {
		recordRedemption(err)
		return nil, err
	}
	return u.Apply(ctx, p.ID, userID)
}

// redeemPromo consumes one use inside tx. The counter bump is guarded in storage
// so two transactions racing for the last use cannot both succeed, and the usage
// row is only written after the bump.
func redeemPromo(ctx context.Context, tx repository.Tx, promos repository.PromoRepository, promoID string, userID model.TelegramID, now time.Time) (*model.PromoCode, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	p, err := promos.FindByID(ctx, tx, promoID)
	if err != nil {
		return nil, err
	}
	if p.Exhausted() {
		return nil, domain.ErrPromoExhausted
	}
	if err := promos.IncrementUses(ctx, tx, p.ID); err != nil {
		return nil, err
	}
	usage := &model.PromoUsage{ID: uuid.NewString(), PromoID: p.ID, UserID: userID, CreatedAt: now}
	if err := promos.InsertUsage(ctx, tx, usage); err != nil {
		return nil, err
	}
	p.CurrentUses++
	return p, nil
}

func recordRedemption(err error) {
	switch {
	case err == nil:
		metrics.IncPromoRedemption("applied")
	case errors.Is(err, domain.ErrPromoExhausted):
		metrics.IncPromoRedemption("exhausted")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncPromoRedemption("not_found")
	}
}
