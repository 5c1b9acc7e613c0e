package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// healthTimeout bounds the health probe
const healthTimeout = 10 * time.Second

// NewHealthCmd creates the backend health check command
func NewHealthCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the chat backend is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(flags, deps.Stderr)
			if err != nil {
				return err
			}

			endpoint, err := deps.NewEndpoint(cfg.Endpoint)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
			defer cancel()

			health, err := endpoint.Health(ctx)
			if err != nil {
				return fmt.Errorf("health check failed for %s: %w", cfg.Endpoint, err)
			}

			ok := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true).Render("✓")
			dim := lipgloss.NewStyle().Foreground(colorTextDim)
			fmt.Fprintf(deps.Stdout, "%s %s %s is %s\n", ok, health.Service, health.Version, health.Status)
			fmt.Fprintln(deps.Stdout, dim.Render(fmt.Sprintf("  Endpoint:  %s", cfg.Endpoint)))
			if health.Timestamp != "" {
				fmt.Fprintln(deps.Stdout, dim.Render(fmt.Sprintf("  Timestamp: %s", health.Timestamp)))
			}
			return nil
		},
	}
}
