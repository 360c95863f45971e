package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

const Day = 24 * time.Hour

// Days converts a whole number of days into a duration.
func Days(n int) time.Duration { return time.Duration(n) * Day }

// Product is a purchasable period of access to one Channel.
type Product struct {
	ID            string           `json:"id"`
	ChannelID     TelegramID       `json:"channel_id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Currency      string           `json:"currency"`
	PeriodDays    int              `json:"period_days"`
	IsTrial       bool             `json:"is_trial"`
	IsActive      bool             `json:"is_active"`
	AllowDemo     bool             `json:"allow_demo"`
	DemoDays      int              `json:"demo_days,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (p *Product) IsZero() bool { return p == nil || p.ID == "" }

// Validate enforces the catalog invariants.
func (p *Product) Validate() error {
	switch {
	case p.ChannelID == 0:
		return fmt.Errorf("%w: channel is required", domain.ErrInvalidArgument)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	case p.PeriodDays <= 0:
		return fmt.Errorf("%w: period_days must be positive", domain.ErrInvalidArgument)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidArgument)
	case p.AllowDemo && p.DemoDays <= 0:
		return fmt.Errorf("%w: demo_days must be positive when demo is allowed", domain.ErrInvalidArgument)
	}
	if p.DiscountPrice != nil {
		if p.DiscountPrice.IsNegative() || p.DiscountPrice.GreaterThan(p.Price) {
			return fmt.Errorf("%w: discount_price must be within [0, price]", domain.ErrInvalidArgument)
		}
	}
	return nil
}

// EffectivePrice is the discounted price when one is set.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

func (p *Product) Period() time.Duration     { return Days(p.PeriodDays) }
func (p *Product) DemoPeriod() time.Duration { return Days(p.DemoDays) }
