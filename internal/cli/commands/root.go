package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netbrain/simphple-orm/internal/blog"
	"github.com/netbrain/simphple-orm/internal/cli/ui"
	"github.com/netbrain/simphple-orm/internal/config"
	"github.com/netbrain/simphple-orm/internal/database"
	"github.com/netbrain/simphple-orm/internal/logging"
	"github.com/netbrain/simphple-orm/pkg/orm"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type globalOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "simphple",
		Short: "Schema and connection tooling for simphple-orm",
		Long: color.CyanString(`simphple - a small object-relational mapper for MySQL

Creates and drops the tables of the bundled entities, prints their DDL
and checks the configured connection.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default simphple.yaml in . or $HOME/.simphple)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every statement")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewSchemaCommand())
	rootCmd.AddCommand(NewMigrateCommand(opts))
	rootCmd.AddCommand(NewPingCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			for _, line := range [][2]string{
				{"simphple version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", runtime.Version()},
			} {
				titleColor.Fprint(out, line[0])
				fmt.Fprintln(out, line[1])
			}
		},
	}
}

// load reads the configuration and builds the logger
func (o *globalOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// connect opens the configured database and returns a factory over it with
// the bundled entities registered
func (o *globalOptions) connect(ctx context.Context) (*database.Client, *orm.Factory, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, err
	}

	client, err := database.Open(ctx, cfg.MySQL, logger)
	if err != nil {
		return nil, nil, err
	}

	f, err := newFactory(client.DB(), logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, f, nil
}

func newFactory(db orm.Executor, logger *zap.Logger) (*orm.Factory, error) {
	f := orm.NewFactory(db, orm.WithLogger(logger))
	if err := f.Register(blog.Entities()...); err != nil {
		return nil, err
	}
	return f, nil
}

// Execute runs the root command
func Execute() error {
	return execute(NewRootCommand())
}

func execute(rootCmd *cobra.Command) error {
	if err := rootCmd.Execute(); err != nil {
		w := rootCmd.ErrOrStderr()
		switch {
		case errors.Is(err, config.ErrInvalidConfig):
			fmt.Fprint(w, ui.ConfigError(err, color.NoColor))
		case orm.IsDriverError(err) || errors.Is(err, errDatabase):
			fmt.Fprint(w, ui.DatabaseError(err, color.NoColor))
		default:
			ui.WriteError(w, ui.ErrorOptions{
				Level:        ui.ErrorLevelError,
				Problem:      err.Error(),
				HelpCommands: []string{"Get help: simphple --help"},
				NoColor:      color.NoColor,
			})
		}
		return err
	}
	return nil
}
