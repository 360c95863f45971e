package repository

import (
	"context"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

type SubscriptionRepository interface {
	// Insert returns domain.ErrAlreadyExists when the originating payment already has a subscription.
	Insert(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus, now time.Time) error
	// ListActive returns rows labelled active whose expiry is after now, newest first.
	ListActive(ctx context.Context, tx Tx, userID model.TelegramID, now time.Time) ([]*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID model.TelegramID) ([]*model.Subscription, error)
	// ExpireDue relabels active rows with expires_at <= now. Safe to run concurrently.
	ExpireDue(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
