package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskflow/apiserver/config"
)

// RabbitMQClient publishes to a topic exchange named after the channel. The
// routing key is the message's "type" attribute, so every subscriber queue
// bound with "#" sees every event.
type RabbitMQClient struct {
	conn *amqp.Connection

	mu       sync.Mutex // guards pub and declared
	pub      *amqp.Channel
	declared map[string]bool

	prefetch   int
	durable    bool
	autoDelete bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQClient{
		conn:       conn,
		pub:        pub,
		declared:   map[string]bool{},
		prefetch:   cfg.PrefetchCount,
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
	}, nil
}

// Publish routes data through the channel's exchange and returns the
// generated message id.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}
	mode := amqp.Transient
	if r.durable {
		mode = amqp.Persistent
	}
	id := newMessageID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declareExchange(r.pub, channel); err != nil {
		return "", err
	}
	err := r.pub.PublishWithContext(ctx, channel, routingKey(attrs), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe binds a queue to the channel's exchange and handles deliveries
// until ctx is done. The queue is named channel+".watch" when durable and
// is server-named otherwise.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return fmt.Errorf("qos: %w", err)
		}
	}
	if err := r.declareExchange(ch, channel); err != nil {
		return err
	}

	name := ""
	if r.durable {
		name = channel + ".watch"
	}
	queue, err := ch.QueueDeclare(name, r.durable, r.autoDelete || !r.durable, !r.durable, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "#", channel, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, msg); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.pub.Close(), r.conn.Close())
}

// declareExchange is idempotent on the broker; the publish channel caches it
// to skip a round trip per message.
func (r *RabbitMQClient) declareExchange(ch *amqp.Channel, name string) error {
	if ch == r.pub && r.declared[name] {
		return nil
	}
	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, r.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	if ch == r.pub {
		r.declared[name] = true
	}
	return nil
}

func routingKey(attrs map[string]string) string {
	if key := attrs["type"]; key != "" {
		return key
	}
	return "event"
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
