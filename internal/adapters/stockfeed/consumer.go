// Package stockfeed consumes inventory level reports from RabbitMQ and
// hands them to the coordinator as stock signals.
package stockfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/barflow/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const DefaultQueue = "bar.stock"

// Handler receives one decoded signal. The return value reports whether
// an alert was published and is only logged.
type Handler func(domain.StockSignal) bool

type Consumer struct {
	URL     string
	Queue   string
	Handler Handler
}

// Run dials, consumes and redials with backoff until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	queue := c.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn().Err(err).Str("module", "stockfeed").Dur("retry_in", backoff).Msg("dial failed")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		log.Info().Str("module", "stockfeed").Str("queue", queue).Msg("connected")

		err = c.consume(ctx, conn, queue)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Str("module", "stockfeed").Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, queue string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Warn().Err(err).Str("module", "stockfeed").Msg("set qos failed")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(d)
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery) {
	sig, err := Decode(d.Body)
	if err != nil {
		log.Warn().Err(err).Str("module", "stockfeed").Msg("rejecting message")
		_ = d.Nack(false, false)
		return
	}
	alerted := false
	if c.Handler != nil {
		alerted = c.Handler(sig)
	}
	log.Debug().Str("module", "stockfeed").Str("material", sig.Material).Bool("alerted", alerted).Msg("signal handled")
	_ = d.Ack(false)
}

// Decode parses and validates one stock report.
func Decode(body []byte) (domain.StockSignal, error) {
	var sig domain.StockSignal
	if err := json.Unmarshal(body, &sig); err != nil {
		return domain.StockSignal{}, fmt.Errorf("unmarshal: %w", err)
	}
	sig.Material = strings.TrimSpace(sig.Material)
	if sig.Material == "" {
		return domain.StockSignal{}, fmt.Errorf("material is required: %w", domain.ErrInvalidInput)
	}
	if sig.Level < 0 {
		return domain.StockSignal{}, fmt.Errorf("negative level: %w", domain.ErrInvalidInput)
	}
	return sig, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
