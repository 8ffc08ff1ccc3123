package main

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
)

func newVerifyCmd(g *globalFlags) *cobra.Command {
	var verbose, full bool

	cmd := &cobra.Command{
		Use:           "verify [commit]",
		Short:         "Verify commit integrity",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer r.Close()

			start := digest.Zero
			if len(args) == 1 {
				start, err = digest.FromHex(args[0])
				if err != nil {
					return err
				}
			} else {
				start, err = r.GetHead(cmd.Context())
				if err != nil {
					return err
				}
			}
			if start.IsZero() {
				return errs.New(errs.InvalidArg, "verify: no commit to verify (repository is unborn)")
			}

			chain := []digest.Digest{start}
			if full {
				ids, err := r.GetHistory(cmd.Context(), start, math.MaxInt)
				if err != nil {
					return err
				}
				chain = ids
			}

			anyFailed := false
			for _, id := range chain {
				env, err := r.LoadCommit(cmd.Context(), id)
				if err != nil {
					return err
				}
				if env == nil {
					return errs.New(errs.NotFound, "verify: commit %s not found", digest.ToHex(id))
				}

				if verr := envelope.Verify(env); verr != nil {
					if !errs.Is(verr, errs.HashMismatch) {
						return verr
					}
					anyFailed = true
					cmd.Printf("%s FAILED (hash mismatch)\n", digest.ToHex(id))
					continue
				}

				if verbose {
					cmd.Printf("%s OK (parent %s)\n", digest.ToHex(id), digest.ToHex(env.ParentID))
				} else {
					cmd.Printf("%s OK\n", digest.ToHex(id))
				}
			}

			if anyFailed {
				return errs.New(errs.HashMismatch, "verify: one or more commits failed integrity check")
			}
			cmd.Println("All parent links valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "print each verified commit's parent id alongside its OK line")
	cmd.Flags().BoolVar(&full, "full", false, "verify the entire chain, not just one commit")
	return cmd
}
