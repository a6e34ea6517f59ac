package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/config"
	"github.com/nickmerrett/iso-downloader/pkg/queue"
	"github.com/nickmerrett/iso-downloader/pkg/scheduler"
)

// NewSchedulerCmd creates the scheduler command.
func NewSchedulerCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the discovery scheduler",
		Long: `Run the scheduler daemon. On each scheduled trigger it reloads
the config, resolves every enabled ISO and glob pattern into download jobs
and publishes them to the queue. Workers pick the jobs up independently.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduler(cmd.Context(), runNow)
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "publish one cycle immediately on startup")

	return cmd
}

func runScheduler(ctx context.Context, runNow bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Scheduler, publishCycle)
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	if runNow {
		if published, err := sched.TriggerNow(ctx); err != nil {
			logger.Error("Startup cycle failed", logger.Fields{"error": err.Error()})
		} else {
			logger.Success("Startup cycle complete", logger.Fields{"published": published})
		}
	}

	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	return nil
}

// publishCycle is the scheduler's unit of work. The config is reloaded on
// every trigger so edits to the source list take effect without a restart.
func publishCycle(ctx context.Context) (int, error) {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return 0, fmt.Errorf("failed to reload config: %w", err)
	}

	q := queue.New(cfg.RabbitMQ)
	defer func() { _ = q.Close() }()

	return newResolver(cfg).ResolveAndPublish(ctx, cfg, q)
}
