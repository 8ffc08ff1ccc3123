package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/logging"
	"github.com/scribehq/scribe/repo"
)

// globalFlags holds the persistent flags every subcommand shares.
type globalFlags struct {
	verbose bool
	quiet   bool
	chdir   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "scribe",
		Short:         "Verifiable data lineage commit engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress non-error output")
	root.PersistentFlags().StringVarP(&g.chdir, "chdir", "C", "", "run as if started in <path>")

	root.AddCommand(
		newInitCmd(g),
		newCommitCmd(g),
		newLogCmd(g),
		newStatusCmd(g),
		newVerifyCmd(g),
		newWatchCmd(g),
	)
	return root
}

func (g *globalFlags) logger() logging.Logger {
	switch {
	case g.verbose:
		return logging.New("debug")
	case g.quiet:
		return logging.New("NOOP")
	default:
		return logging.New("info")
	}
}

func (g *globalFlags) openRepo(ctx context.Context) (*repo.Repository, error) {
	return repo.Open(ctx, g.chdir, g.logger())
}
