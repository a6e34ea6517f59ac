package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickmerrett/iso-downloader/internal/logger"
)

// NewEnableCmd creates the enable command with its subcommands.
func NewEnableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable an ISO or glob pattern",
	}

	cmd.AddCommand(newToggleIsoCmd(true), newToggleGlobCmd(true))

	return cmd
}

// NewDisableCmd creates the disable command with its subcommands.
func NewDisableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable an ISO or glob pattern",
	}

	cmd.AddCommand(newToggleIsoCmd(false), newToggleGlobCmd(false))

	return cmd
}

func newToggleIsoCmd(enabled bool) *cobra.Command {
	verb := toggleVerb(enabled)
	return &cobra.Command{
		Use:   "iso NAME",
		Short: fmt.Sprintf("%s an explicitly configured ISO", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return toggleIso(args[0], enabled)
		},
	}
}

func newToggleGlobCmd(enabled bool) *cobra.Command {
	verb := toggleVerb(enabled)
	return &cobra.Command{
		Use:   "glob NAME",
		Short: fmt.Sprintf("%s a glob discovery pattern", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return toggleGlob(args[0], enabled)
		},
	}
}

func toggleIso(name string, enabled bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.SetSourceEnabled(name, enabled); err != nil {
		return err
	}
	if err := cfg.SaveConfig(configPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	logger.Success("ISO updated", logger.Fields{"name": name, "enabled": enabled})
	return nil
}

func toggleGlob(name string, enabled bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.SetPatternEnabled(name, enabled); err != nil {
		return err
	}
	if err := cfg.SaveConfig(configPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	logger.Success("Glob pattern updated", logger.Fields{"name": name, "enabled": enabled})
	return nil
}

func toggleVerb(enabled bool) string {
	if enabled {
		return "Enable"
	}
	return "Disable"
}
