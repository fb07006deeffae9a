package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"jointvibe/internal/backend"
)

// Exchange is the topic exchange changes are published to. The routing key
// is the table name.
const Exchange = "jointvibe.realtime"

// RabbitMQHub carries changes over a RabbitMQ topic exchange. Every
// subscription gets its own exclusive auto-delete queue.
type RabbitMQHub struct {
	conn   *amqp.Connection
	mu     sync.Mutex
	pubCh  *amqp.Channel
	logger *zap.Logger
}

// NewRabbitMQHub dials url and declares the exchange.
func NewRabbitMQHub(url string, logger *zap.Logger) (*RabbitMQHub, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("exchange", Exchange))
	return &RabbitMQHub{conn: conn, pubCh: ch, logger: logger}, nil
}

// Publish sends change to the exchange with the table as routing key.
func (h *RabbitMQHub) Publish(ctx context.Context, change backend.Change) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pubCh.PublishWithContext(ctx,
		Exchange,     // exchange
		change.Table, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		})
}

// Subscribe binds a fresh exclusive queue to the table's routing key.
func (h *RabbitMQHub) Subscribe(ctx context.Context, table string) (<-chan backend.Change, func(), error) {
	ch, err := h.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, table, Exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume: %w", err)
	}

	subCtx, stop := context.WithCancel(ctx)
	decoded := make(chan backend.Change)
	out := make(chan backend.Change, subscriberBuffer)

	go func() {
		defer close(decoded)
		for {
			select {
			case <-subCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var change backend.Change
				if err := json.Unmarshal(d.Body, &change); err != nil {
					h.logger.Warn("discarding malformed change",
						zap.String("routing_key", d.RoutingKey),
						zap.Error(err))
					continue
				}
				select {
				case decoded <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	go forward(subCtx, decoded, out)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			if err := ch.Close(); err != nil {
				h.logger.Debug("closing subscriber channel", zap.Error(err))
			}
		})
	}
	return out, cancel, nil
}

// Close closes the publishing channel and the connection.
func (h *RabbitMQHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pubCh != nil && !h.pubCh.IsClosed() {
		if err := h.pubCh.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if h.conn != nil && !h.conn.IsClosed() {
		if err := h.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
