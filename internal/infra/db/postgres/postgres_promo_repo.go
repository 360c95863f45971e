package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.PromoRepository = (*promoRepo)(nil)

type promoRepo struct{ pool *pgxpool.Pool }

func NewPromoRepo(pool *pgxpool.Pool) *promoRepo {
	return &promoRepo{pool: pool}
}

const promoColumns = `id, code, discount_percent, max_uses, current_uses, created_at`

func scanPromo(row rowScanner) (*model.PromoCode, error) {
	var p model.PromoCode
	if err := row.Scan(&p.ID, &p.Code, &p.DiscountPercent, &p.MaxUses, &p.CurrentUses, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *promoRepo) Create(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	const q = `INSERT INTO promo_codes (` + promoColumns + `) VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Code, p.DiscountPercent, p.MaxUses, p.CurrentUses, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "promo_codes_code_key") {
			return domain.ErrAlreadyExists
		}
		return mapError(err, "create promo code")
	}
	return nil
}

func (r *promoRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromoCode, error) {
	q := forUpdate(tx, `SELECT `+promoColumns+` FROM promo_codes WHERE id=$1`) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPromo(row)
	if err != nil {
		return nil, mapScanError(err, "find promo code")
	}
	return p, nil
}

func (r *promoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+promoColumns+` FROM promo_codes WHERE code=$1;`, model.NormalizePromoCode(code))
	if err != nil {
		return nil, err
	}
	p, err := scanPromo(row)
	if err != nil {
		return nil, mapScanError(err, "find promo code")
	}
	return p, nil
}

// IncrementUses is a guarded update: the row is never pushed past max_uses.
func (r *promoRepo) IncrementUses(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE promo_codes SET current_uses=current_uses+1 WHERE id=$1 AND current_uses < max_uses;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapError(err, "increment promo uses")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPromoExhausted
	}
	return nil
}

func (r *promoRepo) InsertUsage(ctx context.Context, tx repository.Tx, u *model.PromoUsage) error {
	const q = `INSERT INTO promo_usages (id, promo_id, user_id, created_at) VALUES ($1,$2,$3,$4);`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.PromoID, u.UserID.Int64(), u.CreatedAt)
	return mapError(err, "insert promo usage")
}
