package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/pkg/discovery"
	"github.com/nickmerrett/iso-downloader/pkg/model"
)

const discoverTimeout = 60 * time.Second

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	var (
		transport string
		include   []string
		exclude   []string
		recursive bool
		maxDepth  int
	)

	cmd := &cobra.Command{
		Use:   "discover URL",
		Short: "Discover ISO images at a URL without touching the config",
		Long: `Discover ISO images under the given HTTP or rsync URL and print
what a glob pattern pointed there would find. Nothing is queued or
downloaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, args[0], transport, include, exclude, recursive, maxDepth)
		},
	}

	cmd.Flags().StringVarP(&transport, "type", "t", "http", "transport (http or rsync)")
	cmd.Flags().StringSliceVarP(&include, "include", "i", nil, "glob patterns to match (default: common ISO names)")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "e", nil, "glob patterns to drop from the results")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 2, "recursion depth limit")

	return cmd
}

func runDiscover(cmd *cobra.Command, url, transport string, include, exclude []string, recursive bool, maxDepth int) error {
	initLogging()

	tp, err := model.ParseTransport(transport)
	if err != nil {
		return err
	}

	engine := discovery.NewEngine(discoverTimeout)

	var artifacts []model.Artifact
	if recursive {
		artifacts, err = engine.DiscoverRecursive(cmd.Context(), url, tp, maxDepth, include)
	} else {
		artifacts, err = engine.Discover(cmd.Context(), url, tp, include)
	}
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	artifacts = discovery.ApplyExcludes(artifacts, exclude)

	if len(artifacts) == 0 {
		fmt.Println("No images found")
		return nil
	}

	for _, a := range artifacts {
		fmt.Printf("%-40s %s\n", a.Name, a.URL)
	}
	fmt.Printf("\n%d image(s) found\n", len(artifacts))
	return nil
}
