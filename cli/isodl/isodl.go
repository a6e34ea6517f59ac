package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/internal/cli"
)

var (
	configPath string
	verbose    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "isodl",
		Short: "Automated ISO image downloader",
		Long: `isodl keeps a collection of OS installation images up to date:
- Scheduler: resolves configured ISOs and glob patterns into download jobs
- Queue: distributes jobs over RabbitMQ, with an in-process fallback
- Workers: download over HTTP or rsync with bounded parallelism`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: "+cli.DefaultConfigPath+")")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Set up CLI pkg variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose

	// Add subcommands
	cmd.AddCommand(
		cli.NewSchedulerCmd(),
		cli.NewWorkerCmd(),
		cli.NewTriggerCmd(),
		cli.NewPreviewCmd(),
		cli.NewDiscoverCmd(),
		cli.NewListCmd(),
		cli.NewEnableCmd(),
		cli.NewDisableCmd(),
		cli.NewStatusCmd(),
		cli.NewInitCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
