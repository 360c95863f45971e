package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PromoCode grants a percentage discount at most MaxUses times.
type PromoCode struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	MaxUses         int       `json:"max_uses"`
	CurrentUses     int       `json:"current_uses"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewPromoCode(code string, discountPercent, maxUses int, now time.Time) (*PromoCode, error) {
	code = NormalizePromoCode(code)
	if code == "" || discountPercent < 0 || discountPercent > 100 || maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &PromoCode{
		ID:              uuid.NewString(),
		Code:            code,
		DiscountPercent: discountPercent,
		MaxUses:         maxUses,
		CreatedAt:       now,
	}, nil
}

func NormalizePromoCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

func (p *PromoCode) Exhausted() bool { return p.CurrentUses >= p.MaxUses }

func (p *PromoCode) Remaining() int {
	if p.Exhausted() {
		return 0
	}
	return p.MaxUses - p.CurrentUses
}

// Discount applies the percentage to amount, never going below zero.
func (p *PromoCode) Discount(amount decimal.Decimal) decimal.Decimal {
	off := amount.Mul(decimal.NewFromInt(int64(p.DiscountPercent))).Div(hundred)
	out := amount.Sub(off).Round(9)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// PromoUsage is an append-only redemption record.
type PromoUsage struct {
	ID        string     `json:"id"`
	PromoID   string     `json:"promo_id"`
	UserID    TelegramID `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
}
