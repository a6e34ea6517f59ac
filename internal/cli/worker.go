package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/downloader"
	"github.com/nickmerrett/iso-downloader/pkg/queue"
	"github.com/nickmerrett/iso-downloader/pkg/worker"
)

// NewWorkerCmd creates the worker command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a download worker",
		Long: `Run a download worker that consumes queued jobs and downloads
the images they describe. The worker prefers the configured RabbitMQ broker
and falls back to an in-process queue when the broker is unreachable.

Stop with Ctrl+C; an in-flight download finishes before the worker exits.`,
		RunE: runWorker,
	}

	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	q := queue.New(cfg.RabbitMQ)
	w := worker.New(q, downloader.NewManager(cfg.Download))
	defer func() { _ = w.Close() }()

	logger.Info("Consuming download jobs", logger.Fields{
		"queue":        cfg.RabbitMQ.QueueName,
		"max_parallel": cfg.Download.MaxParallel,
		"directory":    cfg.Download.DownloadDirectory,
	})

	if err := w.Run(cmd.Context()); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return nil
}
