package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

// TelegramID is a platform-issued numeric identifier (users, channels, chats).
// It crosses JSON boundaries as a decimal string so that clients backed by
// float64 numbers never lose precision. Parsing accepts both a string and a
// bare integer literal.
type TelegramID int64

func ParseTelegramID(s string) (TelegramID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: telegram id %q", domain.ErrInvalidArgument, s)
	}
	return TelegramID(v), nil
}

func (id TelegramID) Int64() int64   { return int64(id) }
func (id TelegramID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id TelegramID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

func (id *TelegramID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: empty telegram id", domain.ErrInvalidArgument)
	}
	raw := string(b)
	if b[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: telegram id %s", domain.ErrInvalidArgument, raw)
		}
		raw = s
	}
	v, err := ParseTelegramID(raw)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// User is the persisted profile snapshot of a Mini App caller.
type User struct {
	TelegramID   TelegramID `json:"telegram_id"`
	DisplayName  string     `json:"display_name"`
	Username     string     `json:"username,omitempty"`
	LanguageCode string     `json:"language_code,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewUser(tgID TelegramID, displayName, username string, now time.Time) (*User, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		TelegramID:  tgID,
		DisplayName: strings.TrimSpace(displayName),
		Username:    strings.TrimPrefix(strings.TrimSpace(username), "@"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.TelegramID == 0 }

// WebAppUser is the "user" object embedded in a Telegram WebApp launch payload.
type WebAppUser struct {
	ID           TelegramID `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name,omitempty"`
	Username     string     `json:"username,omitempty"`
	LanguageCode string     `json:"language_code,omitempty"`
	IsPremium    bool       `json:"is_premium,omitempty"`
}

func (w WebAppUser) DisplayName() string {
	return strings.TrimSpace(w.FirstName + " " + w.LastName)
}
