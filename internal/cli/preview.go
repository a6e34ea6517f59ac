package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewPreviewCmd creates the preview command.
func NewPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the jobs a trigger would publish",
		Long: `Resolve every enabled ISO and glob pattern into download jobs
and print them without publishing anything to the queue.`,
		RunE: runPreview,
	}

	return cmd
}

func runPreview(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jobs := newResolver(cfg).ResolveAll(cmd.Context(), cfg)
	if len(jobs) == 0 {
		fmt.Println("No jobs to publish")
		return nil
	}

	fmt.Printf("%-40s %-8s %-11s %s\n", "NAME", "TYPE", "ORIGIN", "URL")
	fmt.Println(strings.Repeat("-", 100))
	for _, job := range jobs {
		origin := "explicit"
		if job.Discovered {
			origin = "discovered"
		}
		fmt.Printf("%-40s %-8s %-11s %s\n", job.Name, job.Type, origin, job.URL)
	}
	fmt.Printf("\n%d job(s) would be published\n", len(jobs))
	return nil
}
