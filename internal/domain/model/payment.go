package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // intent created, awaiting transfer
	PaymentStatusSuccess PaymentStatus = "success" // transfer matched and confirmed
	PaymentStatusFailed  PaymentStatus = "failed"  // expired, rejected by gateway or cancelled
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// Payment is a purchase intent. Memo is the token an on-chain transfer must carry.
type Payment struct {
	ID        string          `json:"id"`
	UserID    TelegramID      `json:"user_id"`
	ProductID string          `json:"product_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    PaymentStatus   `json:"status"`
	Memo      string          `json:"memo"`
	TxHash    *string         `json:"tx_hash,omitempty"`
	PromoID   *string         `json:"promo_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

func NewPendingPayment(userID TelegramID, productID string, amount decimal.Decimal, currency, memo string, now time.Time) (*Payment, error) {
	if userID <= 0 || productID == "" || memo == "" || currency == "" || amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	return &Payment{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusPending,
		Memo:      memo,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkSuccess moves a pending payment to success.
func (p *Payment) MarkSuccess(txHash string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusSuccess
	if txHash != "" {
		p.TxHash = &txHash
	}
	p.PaidAt = &now
	p.UpdatedAt = now
	return nil
}

// MarkFailed moves a pending payment to failed.
func (p *Payment) MarkFailed(now time.Time) error {
	if p.Status != PaymentStatusPending {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusFailed
	p.UpdatedAt = now
	return nil
}
