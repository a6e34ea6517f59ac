package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/queue"
)

// NewTriggerCmd creates the trigger command.
func NewTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Resolve and publish all download jobs once",
		Long: `Resolve every enabled ISO and glob pattern into download jobs
and publish them to the queue immediately, without waiting for the
scheduler.`,
		RunE: runTrigger,
	}

	return cmd
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	q := queue.New(cfg.RabbitMQ)
	defer func() { _ = q.Close() }()

	published, err := newResolver(cfg).ResolveAndPublish(cmd.Context(), cfg, q)
	if err != nil {
		return fmt.Errorf("failed to publish jobs: %w", err)
	}

	logger.Success("Jobs published", logger.Fields{"count": published})
	return nil
}
