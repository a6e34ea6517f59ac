package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/pkg/queue"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show broker and queue status",
		RunE:  runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn := queue.ProbeBroker(cfg.RabbitMQ.URL())
	fmt.Printf("Broker:    %s:%d\n", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	if !conn.Connected {
		fmt.Printf("Status:    unreachable (%s)\n", conn.Reason)
		fmt.Println("Queue:     workers will fall back to the in-process queue")
		return nil
	}
	fmt.Println("Status:    connected")

	q, err := queue.DialAMQP(cfg.RabbitMQ.URL(), cfg.RabbitMQ.QueueName)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() { _ = q.Close() }()

	info, err := q.Info(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to inspect queue: %w", err)
	}

	fmt.Printf("Queue:     %s\n", cfg.RabbitMQ.QueueName)
	fmt.Printf("Pending:   %d\n", info.Pending)
	fmt.Printf("Consumers: %d\n", info.Consumers)
	return nil
}
