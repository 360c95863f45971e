package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `telegram_id, display_name, username, language_code, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u  model.User
		id int64
	)
	if err := row.Scan(&id, &u.DisplayName, &u.Username, &u.LanguageCode, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.TelegramID = model.TelegramID(id)
	return &u, nil
}

// Upsert keeps created_at from the first insert and refreshes the profile fields.
func (r *userRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.User) (*model.User, error) {
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (telegram_id) DO UPDATE SET
  display_name=EXCLUDED.display_name, username=EXCLUDED.username,
  language_code=EXCLUDED.language_code, updated_at=EXCLUDED.updated_at
RETURNING ` + userColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, u.TelegramID.Int64(), u.DisplayName, u.Username, u.LanguageCode, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	stored, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "upsert user")
	}
	return stored, nil
}

func (r *userRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID model.TelegramID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tgID.Int64())
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, mapScanError(err, "find user")
	}
	return u, nil
}

func (r *userRepo) ListIDs(ctx context.Context, tx repository.Tx, afterID model.TelegramID, limit int) ([]model.TelegramID, error) {
	const q = `SELECT telegram_id FROM users WHERE telegram_id > $1 ORDER BY telegram_id LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, afterID.Int64(), limit)
	if err != nil {
		return nil, mapError(err, "list user ids")
	}
	defer rows.Close()

	var ids []model.TelegramID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapScanError(err, "list user ids")
		}
		ids = append(ids, model.TelegramID(id))
	}
	return ids, mapError(rows.Err(), "list user ids")
}

func (r *userRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanError(err, "count users")
	}
	return n, nil
}
