package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/pkg/config"
)

// NewListCmd creates the list command with its subcommands.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured ISOs and glob patterns",
	}

	cmd.AddCommand(newListIsosCmd(), newListGlobsCmd())

	return cmd
}

func newListIsosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "isos",
		Short: "List explicitly configured ISO downloads",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printSources(cfg)
			return nil
		},
	}
}

func newListGlobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "globs",
		Short: "List glob discovery patterns",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printPatterns(cfg)
			return nil
		},
	}
}

func printSources(cfg *config.Config) {
	if len(cfg.Sources) == 0 {
		fmt.Println("No ISOs configured")
		return
	}

	fmt.Printf("%-25s %-8s %-8s %s\n", "NAME", "TYPE", "ENABLED", "URL")
	fmt.Println(strings.Repeat("-", 80))
	for _, src := range cfg.Sources {
		fmt.Printf("%-25s %-8s %-8t %s\n", src.Name, src.Type, src.Enabled, src.URL)
	}
}

func printPatterns(cfg *config.Config) {
	if len(cfg.Patterns) == 0 {
		fmt.Println("No glob patterns configured")
		return
	}

	fmt.Printf("%-25s %-8s %-8s %-10s %s\n", "NAME", "TYPE", "ENABLED", "RECURSIVE", "URL")
	fmt.Println(strings.Repeat("-", 90))
	for _, pat := range cfg.Patterns {
		fmt.Printf("%-25s %-8s %-8t %-10t %s\n", pat.Name, pat.Type, pat.Enabled, pat.Recursive, pat.BaseURL)
		if len(pat.IncludePatterns) > 0 {
			fmt.Printf("%25s include: %s\n", "", strings.Join(pat.IncludePatterns, ", "))
		}
		if len(pat.ExcludePatterns) > 0 {
			fmt.Printf("%25s exclude: %s\n", "", strings.Join(pat.ExcludePatterns, ", "))
		}
	}
}
