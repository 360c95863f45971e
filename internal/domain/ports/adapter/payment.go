package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is an incoming on-chain transfer to the shop wallet.
type Transfer struct {
	Hash   string
	Memo   string
	Amount decimal.Decimal
	From   string
	At     time.Time
}

// ChainClient lists recent incoming transfers, newest first.
type ChainClient interface {
	IncomingTransfers(ctx context.Context, limit int) ([]Transfer, error)
}

// IPNNotification is the subset of a gateway callback this service acts on.
type IPNNotification struct {
	PaymentID     string
	PaymentStatus string
	OrderID       string
	PayAmount     decimal.Decimal
	PayCurrency   string
}

// IPNVerifier authenticates a gateway callback body against its signature header.
type IPNVerifier interface {
	Verify(body []byte, signature string) (*IPNNotification, error)
}
