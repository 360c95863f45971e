package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var _ repository.BroadcastRepository = (*broadcastRepo)(nil)

type broadcastRepo struct{ pool *pgxpool.Pool }

func NewBroadcastRepo(pool *pgxpool.Pool) *broadcastRepo {
	return &broadcastRepo{pool: pool}
}

func (r *broadcastRepo) Save(ctx context.Context, tx repository.Tx, b *model.Broadcast) error {
	const q = `
INSERT INTO broadcasts (id, text, status, total, sent, failed, created_by, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET status=$3, total=$4, sent=$5, failed=$6, finished_at=$9;`
	_, err := execSQL(ctx, r.pool, tx, q, b.ID, b.Text, string(b.Status), b.Total, b.Sent, b.Failed, b.CreatedBy.Int64(), b.CreatedAt, b.FinishedAt)
	return mapError(err, "save broadcast")
}

func (r *broadcastRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Broadcast, error) {
	const q = `SELECT id, text, status, total, sent, failed, created_by, created_at, finished_at FROM broadcasts WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		b         model.Broadcast
		status    string
		createdBy int64
	)
	if err := row.Scan(&b.ID, &b.Text, &status, &b.Total, &b.Sent, &b.Failed, &createdBy, &b.CreatedAt, &b.FinishedAt); err != nil {
		return nil, mapScanError(err, "find broadcast")
	}
	b.Status = model.BroadcastStatus(status)
	b.CreatedBy = model.TelegramID(createdBy)
	return &b, nil
}
