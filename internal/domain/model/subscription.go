package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
	SubscriptionStatusRevoked SubscriptionStatus = "revoked"
)

// GrantSource tells how a subscription came to exist.
type GrantSource string

const (
	GrantSourcePayment GrantSource = "payment"
	GrantSourceAdmin   GrantSource = "admin"
)

// Subscription is a time-boxed grant of channel access.
// The stored Status is only a label: access must be derived with IsEffectivelyActive.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    TelegramID         `json:"user_id"`
	ProductID string             `json:"product_id"`
	ChannelID TelegramID         `json:"channel_id"`
	PaymentID *string            `json:"payment_id,omitempty"`
	Status    SubscriptionStatus `json:"status"`
	StartsAt  time.Time          `json:"starts_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewSubscription creates an active subscription for product starting at startsAt.
// A zero expiresAt means startsAt plus the product period.
func NewSubscription(userID TelegramID, product *Product, paymentID *string, startsAt, expiresAt time.Time) (*Subscription, error) {
	if userID <= 0 || product.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if expiresAt.IsZero() {
		expiresAt = startsAt.Add(product.Period())
	}
	if !expiresAt.After(startsAt) {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: product.ID,
		ChannelID: product.ChannelID,
		PaymentID: paymentID,
		Status:    SubscriptionStatusActive,
		StartsAt:  startsAt,
		ExpiresAt: expiresAt,
		CreatedAt: startsAt,
		UpdatedAt: startsAt,
	}, nil
}

func (s *Subscription) IsEffectivelyActive(now time.Time) bool {
	return s != nil && s.Status == SubscriptionStatusActive && s.ExpiresAt.After(now)
}

// Revoke ends an active subscription immediately. Expired and revoked rows are terminal.
func (s *Subscription) Revoke(now time.Time) error {
	if s.Status != SubscriptionStatusActive {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusRevoked
	s.UpdatedAt = now
	return nil
}
