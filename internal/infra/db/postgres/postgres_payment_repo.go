package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, product_id, amount::text, currency, status, memo, tx_hash, promo_id, created_at, updated_at, paid_at`

func scanPayment(row rowScanner) (*model.Payment, error) {
	var (
		p      model.Payment
		userID int64
		amount string
		status string
	)
	if err := row.Scan(&p.ID, &userID, &p.ProductID, &amount, &p.Currency, &status, &p.Memo, &p.TxHash, &p.PromoID, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		return nil, err
	}
	p.UserID = model.TelegramID(userID)
	p.Status = model.PaymentStatus(status)
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert never overwrites: a taken memo yields ErrMemoCollision so the caller can draw a new one.
func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, product_id, amount, currency, status, memo, tx_hash, promo_id, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT ON CONSTRAINT payments_memo_key DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID.Int64(), p.ProductID, p.Amount.String(), p.Currency, string(p.Status), p.Memo, p.TxHash, p.PromoID, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if isUniqueViolation(err, "payments_memo_key") {
			return domain.ErrMemoCollision
		}
		return mapError(err, "insert payment")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemoCollision
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "id", id)
}

func (r *paymentRepo) FindByMemo(ctx context.Context, tx repository.Tx, memo string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "memo", memo)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, column, value string) (*model.Payment, error) {
	q := forUpdate(tx, `SELECT `+paymentColumns+` FROM payments WHERE `+column+`=$1`) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, value)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapScanError(err, "find payment")
	}
	return p, nil
}

func (r *paymentRepo) Update(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `UPDATE payments SET status=$2, tx_hash=$3, paid_at=$4, updated_at=$5 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, p.ID, string(p.Status), p.TxHash, p.PaidAt, p.UpdatedAt)
	if err != nil {
		return mapError(err, "update payment")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' ORDER BY created_at LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapError(err, "list pending payments")
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapScanError(err, "list pending payments")
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err(), "list pending payments")
}

func (r *paymentRepo) FailStalePending(ctx context.Context, tx repository.Tx, olderThan, now time.Time) (int64, error) {
	const q = `UPDATE payments SET status='failed', updated_at=$2 WHERE status='pending' AND created_at < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, olderThan, now)
	if err != nil {
		return 0, mapError(err, "fail stale payments")
	}
	return tag.RowsAffected(), nil
}
