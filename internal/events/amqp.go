package events

import (
	"context"
	"errors"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	defaultConsumerTag = "pagegen"
	defaultPrefetch    = 16
)

// ConsumerOptions configures the RabbitMQ event consumer.
type ConsumerOptions struct {
	URL         string
	Queue       string
	ConsumerTag string
	Prefetch    int
	Dispatcher  *Dispatcher
	Logger      *logrus.Logger
}

// Consumer reads events from a RabbitMQ queue and dispatches them.
// Malformed messages are rejected without requeue; handler failures are requeued.
type Consumer struct {
	url        string
	queue      string
	tag        string
	prefetch   int
	dispatcher *Dispatcher
	logger     *logrus.Logger
	conn       *amqp.Connection
}

// NewConsumer validates the options. No connection is made until Run.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, eris.New("amqp url is required")
	}
	if strings.TrimSpace(opts.Queue) == "" {
		return nil, eris.New("amqp queue is required")
	}
	if opts.Dispatcher == nil {
		return nil, eris.New("event dispatcher is required")
	}

	tag := opts.ConsumerTag
	if tag == "" {
		tag = defaultConsumerTag
	}
	prefetch := opts.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Consumer{
		url:        opts.URL,
		queue:      opts.Queue,
		tag:        tag,
		prefetch:   prefetch,
		dispatcher: opts.Dispatcher,
		logger:     logger,
	}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return eris.Wrap(err, "dialing amqp broker")
	}
	c.conn = conn
	defer c.Close()

	ch, err := conn.Channel()
	if err != nil {
		return eris.Wrap(err, "opening amqp channel")
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return eris.Wrap(err, "setting amqp prefetch")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "declaring queue %s", c.queue)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return eris.Wrapf(err, "consuming queue %s", c.queue)
	}

	c.logger.WithField("queue", c.queue).Info("event consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.WithField("queue", c.queue).Info("event consumer stopped")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return eris.New("amqp delivery channel closed")
			}
			c.handle(ctx, delivery)
		}
	}
}

// Close shuts the broker connection.
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	kind := Kind(delivery.RoutingKey)
	if delivery.Type != "" {
		kind = Kind(delivery.Type)
	}

	entry := c.logger.WithFields(logrus.Fields{
		"event":      kind,
		"message_id": delivery.MessageId,
	})

	err := c.dispatcher.Dispatch(ctx, kind, delivery.Body)
	switch {
	case err == nil:
		if ackErr := delivery.Ack(false); ackErr != nil {
			entry.WithField("error", ackErr.Error()).Error("ack failed")
		}
	case errors.Is(err, ErrInvalidEvent):
		entry.WithField("error", err.Error()).Warn("rejecting malformed event")
		if nackErr := delivery.Reject(false); nackErr != nil {
			entry.WithField("error", nackErr.Error()).Error("reject failed")
		}
	default:
		entry.WithField("error", err.Error()).Error("event handling failed, requeueing")
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			entry.WithField("error", nackErr.Error()).Error("nack failed")
		}
	}
}
