package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

// ExpirySweep relabels lapsed subscriptions. Reads never depend on it.
func ExpirySweep(subUC usecase.SubscriptionUseCase) JobFunc {
	return func(ctx context.Context) error {
		_, err := subUC.SweepExpired(ctx)
		return err
	}
}

// DemoReminders notifies users whose demo ends within the window.
func DemoReminders(notifyUC usecase.NotificationUseCase, within time.Duration) JobFunc {
	return func(ctx context.Context) error {
		_, err := notifyUC.SendDemoReminders(ctx, within)
		return err
	}
}

// PoolStats publishes pgx pool gauges.
func PoolStats(pool *pgxpool.Pool) JobFunc {
	return func(context.Context) error {
		metrics.ObservePool(pool.Stat())
		return nil
	}
}
