package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes notification intents to a topic exchange with
// routing key notification.<recipientKind>.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, intent Intent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal intent: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	routingKey := fmt.Sprintf("notification.%s", intent.RecipientKind)

	pub := amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Body:          body,
		CorrelationId: intent.OrderID.String(),
		Timestamp:     time.Now().UTC(),
	}

	if err := n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("notify: failed to publish intent: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Ping() error {
	if n.conn == nil || n.conn.IsClosed() {
		return errors.New("notify: rabbitmq connection is closed")
	}
	return nil
}

func (n *AMQPNotifier) Close() {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
