package model

import "time"

// Admin marks a Telegram identity as privileged. Only the row's existence matters.
type Admin struct {
	TelegramID TelegramID
	CreatedAt  time.Time
}
