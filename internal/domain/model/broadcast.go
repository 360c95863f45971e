package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

type BroadcastStatus string

const (
	BroadcastStatusQueued  BroadcastStatus = "queued"
	BroadcastStatusSending BroadcastStatus = "sending"
	BroadcastStatusDone    BroadcastStatus = "done"
)

// Broadcast is an admin message fanned out to every known user.
type Broadcast struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Status     BroadcastStatus `json:"status"`
	Total      int             `json:"total"`
	Sent       int             `json:"sent"`
	Failed     int             `json:"failed"`
	CreatedBy  TelegramID      `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func NewBroadcast(text string, createdBy TelegramID, now time.Time) (*Broadcast, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Broadcast{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Text:      text,
		Status:    BroadcastStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}
