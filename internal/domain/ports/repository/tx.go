package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept NoTX to run on the pool directly.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one storage transaction; the handle passed to
// fn must be threaded through every repository call that belongs to the unit.
// fn returning an error rolls everything back.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := payments.FindByID(ctx, tx, id) // row locked until commit
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
