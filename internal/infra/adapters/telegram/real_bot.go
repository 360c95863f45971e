package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter sends notifications through the Bot API and answers
// the few chat commands that point users at the Mini App.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	rateLimiter *red.RateLimiter
	log         zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter *red.RateLimiter, updateWorkers int, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if updateWorkers <= 0 {
		updateWorkers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		rateLimiter:   rateLimiter,
		log:           logger.With().Str("component", "telegram_bot").Logger(),
		updateWorkers: updateWorkers,
	}, nil
}

// StartPolling processes updates on updateWorkers goroutines until ctx is canceled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Warn().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}
	// Commands only make sense in the private chat with the bot.
	if !update.Message.Chat.IsPrivate() {
		return nil
	}
	chatID := update.Message.Chat.ID

	command := update.Message.Command()
	if command == "" {
		command = "message"
	}
	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserRouteKey(update.Message.From.ID, "bot:"+command), 20, time.Minute)
		if err != nil {
			r.log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !allowed {
			return nil
		}
	}

	switch command {
	case "start", "shop":
		return r.sendShopButton(ctx, chatID, "Welcome! Browse channels, start a free demo or subscribe in the app.")
	case "help":
		return r.SendMessage(ctx, chatID, "Open the app with /shop. Payment receipts and demo reminders arrive in this chat.")
	default:
		return r.sendShopButton(ctx, chatID, "Everything happens in the app:")
	}
}

func (r *RealTelegramBotAdapter) sendShopButton(ctx context.Context, chatID int64, text string) error {
	if r.cfg.WebAppURL == "" {
		return r.SendMessage(ctx, chatID, text)
	}
	rows := [][]adapter.InlineButton{{{Text: "Open shop", URL: r.cfg.WebAppURL, WebApp: true}}}
	return r.SendButtons(ctx, chatID, text, rows)
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := r.bot.Send(msg)
	return err
}

// inlineKeyboard mirrors the Bot API reply_markup object. The library's own
// button type predates web_app buttons, so keyboards are encoded here.
type inlineKeyboard struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type inlineKeyboardButton struct {
	Text   string      `json:"text"`
	URL    string      `json:"url,omitempty"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type webAppInfo struct {
	URL string `json:"url"`
}

func buildKeyboard(rows [][]adapter.InlineButton) inlineKeyboard {
	kb := inlineKeyboard{InlineKeyboard: make([][]inlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		out := make([]inlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" || btn.URL == "" {
				continue
			}
			b := inlineKeyboardButton{Text: label}
			if btn.WebApp {
				b.WebApp = &webAppInfo{URL: btn.URL}
			} else {
				b.URL = btn.URL
			}
			out = append(out, b)
		}
		if len(out) > 0 {
			kb.InlineKeyboard = append(kb.InlineKeyboard, out)
		}
	}
	return kb
}

// SendButtons sends text with an inline keyboard. WebApp buttons open the Mini App.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kb := buildKeyboard(rows)
	if len(kb.InlineKeyboard) == 0 {
		return r.SendMessage(ctx, chatID, text)
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["text"] = text
	if err := params.AddInterface("reply_markup", kb); err != nil {
		return err
	}
	_, err := r.bot.MakeRequest("sendMessage", params)
	return err
}
