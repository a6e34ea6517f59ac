package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/config"
)

// Connectivity is the result of probing the broker. The factory consumes it
// directly instead of relying on a connection error escaping a constructor.
type Connectivity struct {
	Connected bool
	Reason    string
}

// ProbeBroker checks whether the broker at url accepts connections.
func ProbeBroker(url string) Connectivity {
	conn, err := amqp.Dial(url)
	if err != nil {
		return Connectivity{Reason: err.Error()}
	}
	_ = conn.Close()
	return Connectivity{Connected: true}
}

// New builds the durable queue when the broker is reachable and otherwise
// falls back to the in-memory queue. The downgrade is logged because it is
// correctness-relevant: in-memory jobs do not survive a restart and are
// invisible to other worker processes.
func New(cfg config.RabbitMQConfig) Queue {
	probe := ProbeBroker(cfg.URL())
	if probe.Connected {
		q, err := DialAMQP(cfg.URL(), cfg.QueueName)
		if err == nil {
			logger.Info("Using RabbitMQ queue manager", logger.Fields{
				"host":  cfg.Host,
				"port":  cfg.Port,
				"queue": cfg.QueueName,
			})
			return q
		}
		probe.Reason = err.Error()
	}

	logger.Warn("RabbitMQ not available, falling back to in-memory queue", logger.Fields{
		"reason": probe.Reason,
	})
	return NewMemory(DefaultPollInterval)
}
