package repository

import (
	"context"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

type PromoRepository interface {
	// Create returns domain.ErrAlreadyExists on a duplicate code.
	Create(ctx context.Context, tx Tx, p *model.PromoCode) error
	// FindByID locks the row when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromoCode, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	// IncrementUses bumps current_uses only while it is below max_uses,
	// returning domain.ErrPromoExhausted otherwise.
	IncrementUses(ctx context.Context, tx Tx, id string) error
	InsertUsage(ctx context.Context, tx Tx, u *model.PromoUsage) error
}
