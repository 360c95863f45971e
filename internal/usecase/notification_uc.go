package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase sends user-facing messages. Delivery failures are logged
// and never reported back to the operation that triggered them.
type NotificationUseCase interface {
	PaymentConfirmed(ctx context.Context, p *model.Payment, sub *model.Subscription)
	PaymentFailed(ctx context.Context, p *model.Payment)
	// SendDemoReminders claims demos expiring within `within` and messages their owners.
	SendDemoReminders(ctx context.Context, within time.Duration) (int, error)
}

const reminderBatch = 500

type notificationUC struct {
	bot       adapter.TelegramBotAdapter
	demos     repository.DemoAccessRepository
	webAppURL string
	clock     Clock
	log       *zerolog.Logger
}

func NewNotificationUseCase(bot adapter.TelegramBotAdapter, demos repository.DemoAccessRepository, webAppURL string, clock Clock, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{bot: bot, demos: demos, webAppURL: webAppURL, clock: orSystem(clock), log: logger}
}

func (n *notificationUC) PaymentConfirmed(ctx context.Context, p *model.Payment, sub *model.Subscription) {
	text := fmt.Sprintf("Payment %s %s received.", p.Amount.String(), p.Currency)
	if sub != nil {
		text += fmt.Sprintf(" Your access is active until %s.", sub.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	if err := n.bot.SendMessage(ctx, p.UserID.Int64(), text); err != nil {
		n.log.Warn().Err(err).Str("payment_id", p.ID).Msg("payment confirmation not delivered")
	}
}

func (n *notificationUC) PaymentFailed(ctx context.Context, p *model.Payment) {
	text := fmt.Sprintf("Payment %s was not completed. You can start a new one from the app.", p.Memo)
	if err := n.bot.SendMessage(ctx, p.UserID.Int64(), text); err != nil {
		n.log.Warn().Err(err).Str("payment_id", p.ID).Msg("payment failure notice not delivered")
	}
}

func (n *notificationUC) SendDemoReminders(ctx context.Context, within time.Duration) (int, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.SendDemoReminders")()

	now := n.clock()
	claimed, err := n.demos.ClaimReminders(ctx, repository.NoTX, now, now.Add(within), reminderBatch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, d := range claimed {
		left := d.ExpiresAt.Sub(now).Round(time.Hour)
		text := fmt.Sprintf("Your demo access ends in about %s. Subscribe to keep your access.", left)
		var sendErr error
		if n.webAppURL != "" {
			rows := [][]adapter.InlineButton{{{Text: "Open shop", URL: n.webAppURL, WebApp: true}}}
			sendErr = n.bot.SendButtons(ctx, d.UserID.Int64(), text, rows)
		} else {
			sendErr = n.bot.SendMessage(ctx, d.UserID.Int64(), text)
		}
		if sendErr != nil {
			metrics.IncDemoReminder("failed")
			n.log.Warn().Err(sendErr).Str("demo_id", d.ID).Msg("demo reminder not delivered")
			continue
		}
		metrics.IncDemoReminder("sent")
		sent++
	}
	return sent, nil
}
