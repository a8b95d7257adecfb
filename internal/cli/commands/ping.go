package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netbrain/simphple-orm/internal/cli/ui"
	"github.com/netbrain/simphple-orm/internal/database"
)

// NewPingCommand creates the ping command
func NewPingCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the configured database connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			client, err := database.Open(ctx, cfg.MySQL, logger)
			if err != nil {
				return fmt.Errorf("%w: %w", errDatabase, err)
			}
			defer client.Close()

			version, err := client.ServerVersion(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", errDatabase, err)
			}

			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("connected to MySQL %s", version), opts.noColor)
			return nil
		},
	}
}
