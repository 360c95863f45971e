package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
)

var (
	_ adapter.EventPublisher = (*RabbitPublisher)(nil)
	_ adapter.EventPublisher = (*LogPublisher)(nil)
)

// RabbitPublisher publishes domain events to a durable topic exchange,
// using the event type as routing key.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewRabbitPublisher(cfg config.EventsConfig, logger *zerolog.Logger) (*RabbitPublisher, error) {
	clean, err := sanitizeAMQPURL(cfg.AMQPURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(clean, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	p := &RabbitPublisher{
		conn:     conn,
		exchange: cfg.Exchange,
		log:      logger.With().Str("component", "rabbitmq_publisher").Logger(),
	}
	if err := p.reopen(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// reopen replaces the channel and re-declares the exchange. Caller holds mu.
func (p *RabbitPublisher) reopen() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	if p.channel != nil {
		p.channel.Close()
	}
	p.channel = ch
	return nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev adapter.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, ev.Type, false, false, msg)
	if err == nil {
		return nil
	}
	// One retry on a fresh channel; a closed channel is the usual cause.
	p.log.Warn().Err(err).Str("event", ev.Type).Msg("publish failed, reopening channel")
	if rerr := p.reopen(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, ev.Type, false, false, msg)
}

func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// LogPublisher writes events to the log. Used when no broker is configured
// or the broker is unreachable at startup.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.With().Str("component", "event_log").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev adapter.Event) error {
	p.log.Info().Str("event", ev.Type).Time("occurred_at", ev.OccurredAt).Msg("domain event")
	return nil
}
