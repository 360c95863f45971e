package adapter

import "context"

type InlineButton struct {
	Text string
	URL  string
	// WebApp opens URL as a Mini App instead of a browser link.
	WebApp bool
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
}
