package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/queue"
)

// QueuePublisher publishes domain events to RabbitMQ.  Each publish opens
// its own connection, so the API keeps no long-lived broker state and a
// broker outage never blocks startup.  Errors are logged and returned to
// allow callers to ignore failures without interrupting the request flow.
type QueuePublisher struct {
	url         string
	dialTimeout time.Duration
	log         zerolog.Logger
}

// NewQueuePublisher returns a publisher for the broker at url.
func NewQueuePublisher(url string, log zerolog.Logger) *QueuePublisher {
	return &QueuePublisher{url: url, dialTimeout: 3 * time.Second, log: log}
}

// PublishBookingCreated publishes to the booking.created queue.
func (p *QueuePublisher) PublishBookingCreated(ctx context.Context, ev queue.BookingCreatedEvent) error {
	return p.publish(ctx, queue.BookingCreatedQueue, ev)
}

// PublishBookingPaid publishes to the booking.paid queue.
func (p *QueuePublisher) PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error {
	return p.publish(ctx, queue.BookingPaidQueue, ev)
}

// publish declares the queue (idempotent, durable) and sends v as a
// persistent JSON message through the default exchange.
func (p *QueuePublisher) publish(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		p.log.Error().Err(err).Str("queue", name).Msg("rabbitmq: marshal event failed")
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		p.log.Warn().Err(err).Str("queue", name).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Str("queue", name).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		p.log.Warn().Err(err).Str("queue", name).Msg("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		name,  // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		p.log.Warn().Err(err).Str("queue", name).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}
