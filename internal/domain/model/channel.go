package model

import (
	"strings"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

// Channel is a sellable Telegram destination. Supergroup and channel ids are negative.
type Channel struct {
	ID          TelegramID `json:"id"`
	Name        string     `json:"name"`
	Username    string     `json:"username,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewChannel(id TelegramID, name, username, description string, now time.Time) (*Channel, error) {
	name = strings.TrimSpace(name)
	if id == 0 || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Channel{
		ID:          id,
		Name:        name,
		Username:    strings.TrimPrefix(strings.TrimSpace(username), "@"),
		Description: description,
		CreatedAt:   now,
	}, nil
}
