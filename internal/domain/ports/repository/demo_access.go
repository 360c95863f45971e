package repository

import (
	"context"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

type DemoAccessRepository interface {
	// Insert returns domain.ErrDemoAlreadyGranted when an active row exists for the pair.
	Insert(ctx context.Context, tx Tx, d *model.DemoAccess) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.DemoAccess, error)
	// FindActiveByUserProduct looks at the is_active flag only, not at expiry.
	FindActiveByUserProduct(ctx context.Context, tx Tx, userID model.TelegramID, productID string) (*model.DemoAccess, error)
	Deactivate(ctx context.Context, tx Tx, id string) error
	ListActive(ctx context.Context, tx Tx, userID model.TelegramID, now time.Time) ([]*model.DemoAccess, error)
	// ClaimReminders flips reminder_sent on effectively active demos expiring by before
	// and returns the claimed rows. A row is returned at most once.
	ClaimReminders(ctx context.Context, tx Tx, now, before time.Time, limit int) ([]*model.DemoAccess, error)
}
