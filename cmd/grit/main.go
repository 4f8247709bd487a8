package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

// env carries what the root command resolves before a subcommand runs.
type env struct {
	cfg    Config
	logger *slog.Logger
}

func newEnv() *env {
	return &env{
		cfg:    defaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := newEnv()
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "grit",
		Short:         "Read and write Git objects and clone over smart HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			level, err := cfg.logLevel()
			if err != nil {
				return err
			}
			if verbose {
				level = slog.LevelDebug
			}
			e.cfg = cfg
			e.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default $XDG_CONFIG_HOME/grit/config.toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol and store activity")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newHashObjectCmd())
	root.AddCommand(newCatFileCmd())
	root.AddCommand(newLsTreeCmd())
	root.AddCommand(newWriteTreeCmd())
	root.AddCommand(newCommitTreeCmd(e))
	root.AddCommand(newCloneCmd(e))
	root.AddCommand(newUnpackObjectsCmd(e))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newShowRefCmd())
	root.AddCommand(newReflogCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "grit %s\n", version)
		},
	}
}
