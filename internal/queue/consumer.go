package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/notify"
)

// Processor turns one event into a line in <logDir>/booking.log and a
// confirmation email.  Email failures are logged but do not fail the
// message; a malformed body does.
type Processor struct {
	logDir string
	mail   notify.EmailSender
	log    zerolog.Logger

	mu sync.Mutex // serialises appends to the log file
}

// NewProcessor returns a Processor writing under logDir.
func NewProcessor(logDir string, mail notify.EmailSender, log zerolog.Logger) *Processor {
	if logDir == "" {
		logDir = "logs"
	}
	return &Processor{logDir: logDir, mail: mail, log: log}
}

// Handle processes a message body received from queue.
func (p *Processor) Handle(ctx context.Context, queue string, body []byte) error {
	var (
		line string
		msg  notify.EmailMessage
	)
	switch queue {
	case BookingCreatedQueue:
		var ev BookingCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking created | booking_id=%s | treatment=%q | date=%q | slot=%q | patient=%q | email=%s | price=%d cents\n",
			ev.CreatedAt, ev.BookingID, ev.Treatment, ev.AppointmentDate, ev.Slot, ev.Patient, ev.Email, ev.PriceCents)
		msg = notify.EmailMessage{
			To:      ev.Email,
			ToName:  ev.Patient,
			Subject: "Your appointment for " + ev.Treatment + " is booked",
			Body: fmt.Sprintf("Your %s appointment on %s at %s is confirmed. Booking reference: %s.",
				ev.Treatment, ev.AppointmentDate, ev.Slot, ev.BookingID),
		}
	case BookingPaidQueue:
		var ev BookingPaidEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking paid | booking_id=%s | payment_id=%s | transaction_id=%s | amount=%d %s | upserted=%t\n",
			ev.PaidAt, ev.BookingID, ev.PaymentID, ev.TransactionID, ev.AmountCents, ev.Currency, ev.Upserted)
		msg = notify.EmailMessage{
			To:      ev.Email,
			Subject: "Payment received",
			Body: fmt.Sprintf("We received your payment of %d %s for booking %s. Transaction: %s.",
				ev.AmountCents, ev.Currency, ev.BookingID, ev.TransactionID),
		}
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}

	if err := p.appendLine(line); err != nil {
		return err
	}
	if msg.To != "" && p.mail != nil {
		if err := p.mail.Send(ctx, msg); err != nil {
			p.log.Warn().Err(err).Str("queue", queue).Msg("booking-consumer: email not sent")
		}
	}
	return nil
}

func (p *Processor) appendLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(p.logDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Consumer reads both booking queues and feeds a Processor.
type Consumer struct {
	url  string
	proc *Processor
	log  zerolog.Logger
}

func NewConsumer(url string, proc *Processor, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, proc: proc, log: log}
}

// Run connects to RabbitMQ, declares the queues (durable) and consumes
// until ctx is cancelled.  Lost connections are re-dialled with
// exponential backoff capped at 30s.  Messages that fail processing are
// rejected without requeue to avoid tight loops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("booking-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("booking-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("booking-consumer: set QoS failed")
	}

	created, err := c.subscribe(ch, BookingCreatedQueue)
	if err != nil {
		return err
	}
	paid, err := c.subscribe(ch, BookingPaidQueue)
	if err != nil {
		return err
	}
	c.log.Info().Msg("booking-consumer: consuming")

	for {
		var (
			d  amqp.Delivery
			ok bool
			q  string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-created:
			q = BookingCreatedQueue
		case d, ok = <-paid:
			q = BookingPaidQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.proc.Handle(ctx, q, d.Body); err != nil {
			c.log.Error().Err(err).Str("queue", q).Msg("booking-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, name string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", name, err)
	}
	msgs, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", name, err)
	}
	return msgs, nil
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
