package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netbrain/simphple-orm/internal/cli/ui"
	"github.com/netbrain/simphple-orm/pkg/orm"
)

var errDatabase = errors.New("database unavailable")

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or drop the entity tables",
		Long: `Create or drop the tables of the bundled entities.

Available subcommands:
  up    - Create every missing table, referenced tables first
  down  - Drop every table, referencing tables first`,
	}

	cmd.AddCommand(newMigrateUpCommand(opts))
	cmd.AddCommand(newMigrateDownCommand(opts))

	return cmd
}

func newMigrateUpCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create the entity tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts, "created", (*orm.Factory).CreateTables)
		},
	}
}

func newMigrateDownCommand(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Drop the entity tables and their rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("migrate down drops every entity table", "Re-run with --force to confirm.", opts.noColor))
				return errors.New("refusing to drop tables without --force")
			}
			return runMigration(cmd, opts, "dropped", (*orm.Factory).DropTables)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm dropping the tables")

	return cmd
}

func runMigration(cmd *cobra.Command, opts *globalOptions, verb string, migrate func(*orm.Factory, context.Context) error) error {
	ctx := cmd.Context()

	client, f, err := opts.connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errDatabase, err)
	}
	defer client.Close()

	if err := migrate(f, ctx); err != nil {
		return err
	}

	tables, err := f.Tables()
	if err != nil {
		return err
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s %d tables", verb, len(tables)), opts.noColor)
	return nil
}
