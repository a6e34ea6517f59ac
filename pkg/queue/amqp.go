package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/model"
)

// AMQPQueue is the durable, broker-backed queue. The queue is declared
// durable and messages are published persistent, so both survive a broker
// restart.
type AMQPQueue struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url, queueName string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to declare queue %s", queueName)
	}

	return &AMQPQueue{conn: conn, ch: ch, queueName: queueName}, nil
}

// Publish implements Queue.
func (q *AMQPQueue) Publish(ctx context.Context, job model.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to encode job")
	}

	err = q.ch.PublishWithContext(ctx, "", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to publish job %s", job.Name)
	}

	logger.Info("Published download job", logger.Fields{"job": job.Name})
	return nil
}

// Consume implements Queue. The channel delivers at most one unacknowledged
// message at a time (prefetch 1) so an idle consumer never starves while
// another hoards work. The broker connection is owned by this call; handler
// execution must not touch the channel.
func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return errors.Wrap(err, "failed to set prefetch")
	}

	tag := consumerTag()
	deliveries, err := q.ch.Consume(q.queueName, tag, false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to consume from %s", q.queueName)
	}

	logger.Info("Started consuming messages from queue", logger.Fields{"queue": q.queueName})

	for {
		select {
		case <-ctx.Done():
			// Stop accepting new deliveries; unacknowledged messages are
			// requeued by the broker when the channel closes.
			_ = q.ch.Cancel(tag, false)
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.Wrap(errors.ErrQueueClosed, "delivery channel closed")
			}
			q.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	var job model.Job
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		logger.Error("Error decoding message", logger.Fields{"error": err.Error()})
		_ = delivery.Nack(false, true)
		return
	}

	if err := handler(ctx, job); err != nil {
		logger.Error("Error processing message, requeueing", logger.Fields{
			"job":   job.Name,
			"error": err.Error(),
		})
		_ = delivery.Nack(false, true)
		return
	}

	_ = delivery.Ack(false)
	logger.Debug("Processed message", logger.Fields{"job": job.Name})
}

// Info implements Queue.
func (q *AMQPQueue) Info(_ context.Context) (Info, error) {
	state, err := q.ch.QueueDeclarePassive(q.queueName, true, false, false, false, nil)
	if err != nil {
		return Info{}, errors.Wrapf(err, "failed to inspect queue %s", q.queueName)
	}
	return Info{
		Pending:   state.Messages,
		Consumers: state.Consumers,
		Backend:   BackendAMQP,
	}, nil
}

// Close implements Queue.
func (q *AMQPQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil && !q.conn.IsClosed() {
		if err := q.conn.Close(); err != nil {
			return errors.Wrap(err, "failed to close broker connection")
		}
	}
	logger.Info("Disconnected from RabbitMQ")
	return nil
}

func consumerTag() string {
	host, err := os.Hostname()
	if err != nil {
		host = "isodl"
	}
	return fmt.Sprintf("isodl-%s-%d", host, os.Getpid())
}

var _ Queue = (*AMQPQueue)(nil)
