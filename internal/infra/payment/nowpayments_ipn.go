package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
)

const NOWPaymentsSignatureHeader = "x-nowpayments-sig"

var _ adapter.IPNVerifier = (*NOWPaymentsIPN)(nil)

var ErrIPNDisabled = errors.New("ipn secret is not configured")

// IPN statuses this service acts on. Everything else is acknowledged and ignored.
const (
	IPNStatusFinished  = "finished"
	IPNStatusConfirmed = "confirmed"
	IPNStatusFailed    = "failed"
	IPNStatusExpired   = "expired"
	IPNStatusRefunded  = "refunded"
)

// NOWPaymentsIPN authenticates instant payment notifications.
// The signature is HMAC-SHA512 over the body re-encoded with keys sorted at every level.
type NOWPaymentsIPN struct {
	secret []byte
}

func NewNOWPaymentsIPN(secret string) *NOWPaymentsIPN {
	return &NOWPaymentsIPN{secret: []byte(secret)}
}

type ipnBody struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PayAmount     json.Number `json:"pay_amount"`
	PayCurrency   string      `json:"pay_currency"`
}

func (n *NOWPaymentsIPN) Verify(body []byte, signature string) (*adapter.IPNNotification, error) {
	if len(n.secret) == 0 {
		return nil, ErrIPNDisabled
	}
	canonical, err := SortedJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(got, n.sign(canonical)) {
		return nil, domain.ErrAuthenticationFailed
	}

	var b ipnBody
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if b.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is missing", domain.ErrInvalidArgument)
	}
	out := &adapter.IPNNotification{
		PaymentID:     b.PaymentID.String(),
		PaymentStatus: strings.ToLower(b.PaymentStatus),
		OrderID:       b.OrderID,
		PayCurrency:   b.PayCurrency,
	}
	if b.PayAmount != "" {
		if out.PayAmount, err = decimal.NewFromString(b.PayAmount.String()); err != nil {
			return nil, fmt.Errorf("%w: pay_amount %q", domain.ErrInvalidArgument, b.PayAmount)
		}
	}
	return out, nil
}

func (n *NOWPaymentsIPN) sign(canonical []byte) []byte {
	mac := hmac.New(sha512.New, n.secret)
	mac.Write(canonical)
	return mac.Sum(nil)
}

// Sign returns the hex signature NOWPayments would send for body.
func (n *NOWPaymentsIPN) Sign(body []byte) (string, error) {
	canonical, err := SortedJSON(body)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(n.sign(canonical)), nil
}

// SortedJSON re-encodes a JSON document with object keys sorted recursively,
// numbers kept verbatim and no HTML escaping.
func SortedJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// IsSettled reports whether status means the money arrived.
func IsSettled(status string) bool {
	return status == IPNStatusFinished || status == IPNStatusConfirmed
}

// IsTerminalFailure reports whether status means the intent can no longer be paid.
func IsTerminalFailure(status string) bool {
	switch status {
	case IPNStatusFailed, IPNStatusExpired, IPNStatusRefunded:
		return true
	}
	return false
}
