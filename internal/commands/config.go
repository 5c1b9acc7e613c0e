package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siskocapital/finking/internal/config"
)

// NewConfigCmd creates a new config command
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show the effective finking settings: the config file merged with
FINKING_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				fmt.Fprintf(deps.Stderr, "Warning: %v\n", err)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintln(deps.Stdout, string(data))
			return nil
		},
	}

	cmd.AddCommand(newConfigInitCmd(deps))
	cmd.AddCommand(newConfigSetCmd(deps))
	cmd.AddCommand(newConfigPathCmd(deps))
	return cmd
}

func newConfigInitCmd(deps *Dependencies) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigSetCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Long: "Change one setting in the config file.\n\nKeys:\n  " +
			strings.Join(config.SettableKeys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Environment overrides are not written back
			cfg, err := config.LoadFileConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newConfigPathCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config and log file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			cfg, _ := config.LoadConfig()
			logPath, err := config.GetLogPath(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "config: %s\nlog:    %s\n", path, logPath)
			return nil
		},
	}
}
