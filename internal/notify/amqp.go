package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// EnvelopeMeta travels with every mirrored event so external consumers can
// deduplicate and trace.
type EnvelopeMeta struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
}

// Envelope is the wire format on the AMQP exchange.
type Envelope struct {
	Meta EnvelopeMeta `json:"meta"`
	Data any          `json:"data"`
}

// AMQPPublisher mirrors bus events onto a durable topic exchange for
// consumers outside the relay (routing key "relay.events.<type>"). It sits
// beside the hub in a Fanout and is never part of the admin delivery path.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

// DialWithRetry connects to AMQP with exponential backoff, respecting the
// context for graceful shutdown.
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		sleep := delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > time.Minute {
			sleep = time.Minute
		}
		log.Printf("[AMQP] dial failed (attempt %d): %v", i, err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("amqp dial failed after %d attempts: %w", attempts, lastErr)
}

func NewAMQPPublisher(conn *amqp091.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, exchange: exchange}, nil
}

// Publish implements Publisher. Errors are logged and swallowed; the
// mirror is best effort like the rest of the bus.
func (p *AMQPPublisher) Publish(event Event) {
	env := Envelope{
		Meta: EnvelopeMeta{
			ID:         uuid.NewString(),
			Type:       event.Type,
			OccurredAt: time.Now().UTC(),
			Source:     "relay",
		},
		Data: event.Payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("[AMQP] marshal envelope: %v", err)
		return
	}

	ch, err := p.conn.Channel()
	if err != nil {
		log.Printf("[AMQP] open channel: %v", err)
		return
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := "relay.events." + event.Type
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Body:         body,
	})
	if err != nil {
		log.Printf("[AMQP] publish %s: %v", key, err)
	}
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}
