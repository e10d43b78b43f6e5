package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"booklib/internal/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envDir    string
	logLevel  string
	logFormat string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "booklib",
		Short: "E-book library catalog",
		Long: `booklib scans a directory of e-books, keeps a persistent catalog of their
metadata and organizes them by author, title, series, tag and location.

It runs as an HTTP service (serve) or answers one-off queries against the
same catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				return nil
			}
			return logging.Configure(logging.ParseLevel(opts.logLevel), opts.logFormat)
		},
	}

	root.PersistentFlags().StringVar(&opts.envDir, "env-dir", ".", "directory holding the optional .env file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", logging.FormatAuto, "log format: auto, console, json")

	root.AddCommand(
		newServeCommand(opts),
		newScanCommand(opts),
		newSearchCommand(opts),
		newTreeCommand(opts),
		newRecentCommand(opts),
		newFavoritesCommand(opts),
		newRemoveCommand(opts),
		newDBCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line with args and exits non-zero on failure.
func Execute(ctx context.Context, args []string) {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		logging.Error("command failed: %v", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}
