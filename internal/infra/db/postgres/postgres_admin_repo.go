package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.AdminRepository = (*adminRepo)(nil)

type adminRepo struct{ pool *pgxpool.Pool }

func NewAdminRepo(pool *pgxpool.Pool) *adminRepo {
	return &adminRepo{pool: pool}
}

func (r *adminRepo) Exists(ctx context.Context, tx repository.Tx, tgID model.TelegramID) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM admins WHERE telegram_id=$1);`, tgID.Int64())
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapScanError(err, "admin exists")
	}
	return ok, nil
}

func (r *adminRepo) Add(ctx context.Context, tx repository.Tx, a *model.Admin) error {
	const q = `INSERT INTO admins (telegram_id, created_at) VALUES ($1,$2) ON CONFLICT (telegram_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, a.TelegramID.Int64(), a.CreatedAt)
	return mapError(err, "add admin")
}

func (r *adminRepo) Remove(ctx context.Context, tx repository.Tx, tgID model.TelegramID) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM admins WHERE telegram_id=$1;`, tgID.Int64())
	if err != nil {
		return mapError(err, "remove admin")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *adminRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Admin, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT telegram_id, created_at FROM admins ORDER BY created_at, telegram_id;`)
	if err != nil {
		return nil, mapError(err, "list admins")
	}
	defer rows.Close()

	var out []*model.Admin
	for rows.Next() {
		var (
			id int64
			a  model.Admin
		)
		if err := rows.Scan(&id, &a.CreatedAt); err != nil {
			return nil, mapScanError(err, "list admins")
		}
		a.TelegramID = model.TelegramID(id)
		out = append(out, &a)
	}
	return out, mapError(rows.Err(), "list admins")
}
