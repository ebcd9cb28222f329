package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// dialTimeout bounds how long a request can wait on an unreachable broker.
const dialTimeout = 2 * time.Second

// Publisher sends activity events. Callers treat failures as best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. It is used when events are disabled.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// ErrBrokerUnavailable is returned without dialing while another publish
// is connecting or a recent connection attempt failed.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// redialBackoff is how long publishes fail fast after a failed dial.
const redialBackoff = 5 * time.Second

// AMQPPublisher publishes persistent JSON messages to a durable queue on
// the default exchange. The connection is opened lazily and reopened after
// a failure. At most one caller dials at a time; the others drop their
// event instead of queueing behind it.
type AMQPPublisher struct {
	url   string
	queue string

	dial func(ctx context.Context) (*amqp.Connection, *amqp.Channel, error)
	now  func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	p := &AMQPPublisher{url: url, queue: queue, now: time.Now}
	p.dial = p.connect
	return p
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	})
	if err != nil {
		p.discard(ch)
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the connection. The publisher can still be used
// afterwards; it will reconnect.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	return err
}

// channel returns the open channel or dials a new one. The dial runs
// without holding mu.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || p.now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.dialing = true
	p.reset()
	p.mu.Unlock()

	conn, ch, err := p.dial(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(redialBackoff)
		return nil, err
	}
	p.retryAt = time.Time{}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// connect dials the broker, bounded by both ctx and dialTimeout, and
// declares the queue.
func (p *AMQPPublisher) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare %s: %w", p.queue, err)
	}
	return conn, ch, nil
}

// dialContext mirrors amqp.DefaultDial but also gives up when ctx is done.
// The deadline covers the AMQP handshake and is cleared once it completes.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: dialTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(dialTimeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// discard drops ch if it is still the current channel.
func (p *AMQPPublisher) discard(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.reset()
	}
}

// reset must be called with mu held.
func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
