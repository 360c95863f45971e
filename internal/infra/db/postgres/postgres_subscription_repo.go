package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, product_id, channel_id, payment_id, status, starts_at, expires_at, created_at, updated_at`

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var (
		s                 model.Subscription
		userID, channelID int64
		status            string
	)
	if err := row.Scan(&s.ID, &userID, &s.ProductID, &channelID, &s.PaymentID, &status, &s.StartsAt, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.UserID = model.TelegramID(userID)
	s.ChannelID = model.TelegramID(channelID)
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}

// Insert relies on the payment_id unique key so a payment grants at most one subscription.
func (r *subscriptionRepo) Insert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT ON CONSTRAINT subscriptions_payment_id_key DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID.Int64(), s.ProductID, s.ChannelID.Int64(), s.PaymentID, string(s.Status), s.StartsAt, s.ExpiresAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrAlreadyExists
		}
		return mapError(err, "insert subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := forUpdate(tx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id=$1`) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanError(err, "find subscription")
	}
	return s, nil
}

func (r *subscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE payment_id=$1;`, paymentID)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanError(err, "find subscription by payment")
	}
	return s, nil
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, now time.Time) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE subscriptions SET status=$2, updated_at=$3 WHERE id=$1;`, id, string(status), now)
	if err != nil {
		return mapError(err, "update subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) ListActive(ctx context.Context, tx repository.Tx, userID model.TelegramID, now time.Time) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
WHERE user_id=$1 AND status='active' AND expires_at > $2 ORDER BY created_at DESC;`
	return r.list(ctx, tx, "list active subscriptions", q, userID.Int64(), now)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID model.TelegramID) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, "list subscriptions", q, userID.Int64())
}

func (r *subscriptionRepo) list(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, mapScanError(err, op)
		}
		out = append(out, s)
	}
	return out, mapError(rows.Err(), op)
}

func (r *subscriptionRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE subscriptions SET status='expired', updated_at=$1 WHERE status='active' AND expires_at <= $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, mapError(err, "expire subscriptions")
	}
	return tag.RowsAffected(), nil
}
