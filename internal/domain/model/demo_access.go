package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

// DemoAccess is a one-time trial grant for a (user, product) pair.
// IsActive is cleared only by an administrator; lapsing does not free the pair.
type DemoAccess struct {
	ID           string     `json:"id"`
	UserID       TelegramID `json:"user_id"`
	ProductID    string     `json:"product_id"`
	ChannelID    TelegramID `json:"channel_id"`
	StartsAt     time.Time  `json:"starts_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsActive     bool       `json:"is_active"`
	ReminderSent bool       `json:"reminder_sent"`
	CreatedAt    time.Time  `json:"created_at"`
}

func NewDemoAccess(userID TelegramID, product *Product, now time.Time) (*DemoAccess, error) {
	if userID <= 0 || product.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if !product.AllowDemo || product.DemoDays <= 0 {
		return nil, domain.ErrDemoNotAllowed
	}
	return &DemoAccess{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: product.ID,
		ChannelID: product.ChannelID,
		StartsAt:  now,
		ExpiresAt: now.Add(product.DemoPeriod()),
		IsActive:  true,
		CreatedAt: now,
	}, nil
}

func (d *DemoAccess) IsEffectivelyActive(now time.Time) bool {
	return d != nil && d.IsActive && d.ExpiresAt.After(now)
}
