// internal/queue/publisher.go
package queue

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"

	"github.com/leadgrid/leadgrid-backend/internal/model"
)

// EventPublisher mirrors ingested campaign events to downstream consumers
// (the CRM push worker listens on the queue). Publishing is best-effort:
// callers log failures and continue.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *model.CampaignEvent) error
}

type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(url, queueName string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queueName}, nil
}

func (p *AMQPPublisher) PublishEvent(ctx context.Context, ev *model.CampaignEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.ch.Publish(
		"",      // default exchange
		p.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

var _ EventPublisher = (*AMQPPublisher)(nil)
