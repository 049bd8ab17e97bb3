package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Channel — часть amqp.Channel, которая нужна публикатору.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Event — конверт доменного события.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// NewEvent создаёт конверт события с новым идентификатором.
func NewEvent(eventType string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher публикует события в exchange. amqp.Channel не потокобезопасен
// для публикации, поэтому вызовы сериализуются.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewPublisher создаёт публикатор для exchange.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish сериализует событие в JSON и публикует его с ключом маршрутизации, равным типу события.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
