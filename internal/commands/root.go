// Package commands implements the importer command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	verbose int
	logger  *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	rootCmd := &cobra.Command{
		Use:   "importer",
		Short: "Import bank and budgeting-app exports into a budget",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose)
		},
	}

	rootCmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "log to stderr (-v info, -vv debug)")

	rootCmd.AddCommand(
		newAnalyzeCommand(opts),
		newPreviewCommand(opts),
		newCommitCommand(opts),
	)

	return rootCmd
}

func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
