package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// dialTimeout bounds connect plus handshake when ctx has no deadline.
	dialTimeout = 5 * time.Second
	// redialBackoff is how long publishes fail fast after a failed dial.
	redialBackoff = 10 * time.Second
)

var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// AMQPPublisher publishes events as persistent JSON messages to a durable
// queue on the default exchange. The connection is opened lazily and
// re-dialed after a failure, at most once per redialBackoff.
type AMQPPublisher struct {
	URL   string
	Queue string
	Log   *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
	now     func() time.Time
}

func NewAMQPPublisher(url, queue string, log *zap.Logger) *AMQPPublisher {
	if queue == "" {
		queue = "reservation.events"
	}
	return &AMQPPublisher{URL: url, Queue: queue, Log: log, now: time.Now}
}

func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	if p.now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = max(time.Until(dl), time.Millisecond)
	}
	// amqp.Dial's handshake deadline is 30s and ignores ctx.
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.retryAt = p.now().Add(redialBackoff)
		return nil, fmt.Errorf("%w: dial: %v", ErrBrokerUnavailable, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		MessageId:    ev.ReservationID + ":" + string(ev.Type),
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && p.Log != nil {
			p.Log.Debug("rabbitmq: close connection", zap.Error(err))
		}
		p.conn = nil
	}
}
