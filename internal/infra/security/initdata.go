package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

var _ adapter.InitDataVerifier = (*InitDataVerifier)(nil)

var (
	errMissingHash = errors.New("hash field is missing")
	errBadHash     = errors.New("hash mismatch")
	errExpired     = errors.New("auth_date is outside the freshness window")
)

// InitDataVerifier checks Telegram WebApp launch payloads against the bot token.
type InitDataVerifier struct {
	secret []byte
	maxAge time.Duration
	bypass string // empty unless explicitly enabled
	now    func() time.Time
}

func NewInitDataVerifier(botToken string, cfg config.AuthConfig) *InitDataVerifier {
	// Telegram derives the WebApp secret as HMAC_SHA256(key="WebAppData", msg=bot_token).
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))

	v := &InitDataVerifier{
		secret: mac.Sum(nil),
		maxAge: cfg.InitDataMaxAge,
		now:    time.Now,
	}
	if cfg.TestBypassEnabled {
		v.bypass = cfg.TestBypassMarker
	}
	return v
}

// WithClock replaces the time source used for the freshness check.
func (v *InitDataVerifier) WithClock(now func() time.Time) *InitDataVerifier {
	v.now = now
	return v
}

// Verify is the boolean form of Validate. It never panics on malformed input.
func (v *InitDataVerifier) Verify(raw string) bool {
	return v.Validate(raw) == nil
}

func (v *InitDataVerifier) Validate(raw string) error {
	result, err := v.check(raw)
	metrics.IncAuthInitData(result)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	return nil
}

func (v *InitDataVerifier) check(raw string) (string, error) {
	if v.bypass != "" && strings.Contains(raw, v.bypass) {
		return "bypass", nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "malformed", err
	}
	got := values.Get("hash")
	if got == "" {
		return "malformed", errMissingHash
	}
	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return "malformed", errBadHash
	}
	if !hmac.Equal(gotBytes, v.sign(values)) {
		return "bad_hash", errBadHash
	}
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return "malformed", fmt.Errorf("auth_date: %w", err)
	}
	if age := v.now().Sub(time.Unix(authDate, 0)); v.maxAge > 0 && age > v.maxAge {
		return "expired", errExpired
	}
	return "ok", nil
}

func (v *InitDataVerifier) sign(values url.Values) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(DataCheckString(values)))
	return mac.Sum(nil)
}

// DataCheckString joins every field except hash as sorted key=value lines.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}

// Sign computes the hash Telegram would attach to values. Used by tooling and tests.
func (v *InitDataVerifier) Sign(values url.Values) string {
	return hex.EncodeToString(v.sign(values))
}

func (v *InitDataVerifier) User(raw string) (*model.WebAppUser, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedIdentity, err)
	}
	field := values.Get("user")
	if field == "" {
		return nil, fmt.Errorf("%w: user field is missing", domain.ErrMalformedIdentity)
	}
	var u model.WebAppUser
	if err := json.Unmarshal([]byte(field), &u); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedIdentity, err)
	}
	if u.ID <= 0 {
		return nil, fmt.Errorf("%w: user id %d", domain.ErrMalformedIdentity, u.ID)
	}
	return &u, nil
}
