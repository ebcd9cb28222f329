package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/planbox/internal/logging"
)

const (
	activityLog = "activity.log"
	maxBackoff  = 30 * time.Second
)

// Consumer drains the activity queue into LogDir/activity.log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string
	Log    logging.Logger
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn(ctx, "activity consumer: dial failed", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn(ctx, "activity consumer: loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn(ctx, "activity consumer: qos", "err", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", c.Queue, err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.Queue, err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.Log.Error(ctx, "activity consumer: drop message", "err", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message and appends it to the activity log.
func (c *Consumer) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, activityLog), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(ev.Line()); err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
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
