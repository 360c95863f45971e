package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.DemoAccessRepository = (*demoAccessRepo)(nil)

type demoAccessRepo struct{ pool *pgxpool.Pool }

func NewDemoAccessRepo(pool *pgxpool.Pool) *demoAccessRepo {
	return &demoAccessRepo{pool: pool}
}

const demoColumns = `id, user_id, product_id, channel_id, starts_at, expires_at, is_active, reminder_sent, created_at`

func scanDemo(row rowScanner) (*model.DemoAccess, error) {
	var (
		d                 model.DemoAccess
		userID, channelID int64
	)
	if err := row.Scan(&d.ID, &userID, &d.ProductID, &channelID, &d.StartsAt, &d.ExpiresAt, &d.IsActive, &d.ReminderSent, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.UserID = model.TelegramID(userID)
	d.ChannelID = model.TelegramID(channelID)
	return &d, nil
}

// Insert leans on the partial unique index over active (user, product) pairs,
// so concurrent grants cannot both succeed.
func (r *demoAccessRepo) Insert(ctx context.Context, tx repository.Tx, d *model.DemoAccess) error {
	const q = `INSERT INTO demo_accesses (` + demoColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.UserID.Int64(), d.ProductID, d.ChannelID.Int64(), d.StartsAt, d.ExpiresAt, d.IsActive, d.ReminderSent, d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "demo_accesses_active_pair_key") {
			return domain.ErrDemoAlreadyGranted
		}
		return mapError(err, "insert demo access")
	}
	return nil
}

func (r *demoAccessRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DemoAccess, error) {
	q := forUpdate(tx, `SELECT `+demoColumns+` FROM demo_accesses WHERE id=$1`) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	d, err := scanDemo(row)
	if err != nil {
		return nil, mapScanError(err, "find demo access")
	}
	return d, nil
}

func (r *demoAccessRepo) FindActiveByUserProduct(ctx context.Context, tx repository.Tx, userID model.TelegramID, productID string) (*model.DemoAccess, error) {
	const q = `SELECT ` + demoColumns + ` FROM demo_accesses WHERE user_id=$1 AND product_id=$2 AND is_active;`
	row, err := pickRow(ctx, r.pool, tx, q, userID.Int64(), productID)
	if err != nil {
		return nil, err
	}
	d, err := scanDemo(row)
	if err != nil {
		return nil, mapScanError(err, "find active demo access")
	}
	return d, nil
}

func (r *demoAccessRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE demo_accesses SET is_active=FALSE WHERE id=$1;`, id)
	if err != nil {
		return mapError(err, "deactivate demo access")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *demoAccessRepo) ListActive(ctx context.Context, tx repository.Tx, userID model.TelegramID, now time.Time) ([]*model.DemoAccess, error) {
	const q = `SELECT ` + demoColumns + ` FROM demo_accesses
WHERE user_id=$1 AND is_active AND expires_at > $2 ORDER BY created_at DESC;`
	return r.list(ctx, tx, "list demo accesses", q, userID.Int64(), now)
}

// ClaimReminders uses SKIP LOCKED so parallel dispatchers partition the due rows.
func (r *demoAccessRepo) ClaimReminders(ctx context.Context, tx repository.Tx, now, before time.Time, limit int) ([]*model.DemoAccess, error) {
	const q = `
UPDATE demo_accesses SET reminder_sent=TRUE
WHERE id IN (
  SELECT id FROM demo_accesses
  WHERE is_active AND NOT reminder_sent AND expires_at > $1 AND expires_at <= $2
  ORDER BY expires_at
  LIMIT $3
  FOR UPDATE SKIP LOCKED
)
RETURNING ` + demoColumns + `;`
	return r.list(ctx, tx, "claim demo reminders", q, now, before, limit)
}

func (r *demoAccessRepo) list(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.DemoAccess, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	var out []*model.DemoAccess
	for rows.Next() {
		d, err := scanDemo(rows)
		if err != nil {
			return nil, mapScanError(err, op)
		}
		out = append(out, d)
	}
	return out, mapError(rows.Err(), op)
}
