package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const RoutingKeyOrderPlaced = "order.placed"

// Publisher announces placed orders to whoever fulfils them.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o Order) error
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, Order) error { return nil }

type PlacedEvent struct {
	OrderID    string    `json:"order_id"`
	Owner      string    `json:"owner"`
	Total      int64     `json:"total"`
	LineCount  int       `json:"line_count"`
	Lines      []Line    `json:"lines"`
	OccurredAt time.Time `json:"occurred_at"`
}

func placedEvent(o Order) PlacedEvent {
	return PlacedEvent{
		OrderID:    o.ID,
		Owner:      o.Owner,
		Total:      o.Total,
		LineCount:  len(o.Lines),
		Lines:      o.Lines,
		OccurredAt: o.CreatedAt,
	}
}

// RabbitPublisher publishes JSON events to a durable topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) PublishOrderPlaced(ctx context.Context, o Order) error {
	body, err := json.Marshal(placedEvent(o))
	if err != nil {
		return fmt.Errorf("marshal order.placed: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyOrderPlaced, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    o.ID,
		Timestamp:    o.CreatedAt,
		Body:         body,
	})
}

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
