package main

import (
	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
)

func newLogCmd(g *globalFlags) *cobra.Command {
	var oneline, asJSON bool
	var limit int
	var author, process string

	cmd := &cobra.Command{
		Use:   "log [commit]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer r.Close()

			from := digest.Zero
			if len(args) == 1 {
				from, err = digest.FromHex(args[0])
				if err != nil {
					return err
				}
			}

			ids, err := r.GetHistory(cmd.Context(), from, limit)
			if err != nil {
				return err
			}

			for _, id := range ids {
				env, err := r.LoadCommit(cmd.Context(), id)
				if err != nil {
					return err
				}
				if env == nil {
					continue
				}
				if author != "" && env.Author.ID != author {
					continue
				}
				if process != "" && env.Process.Name != process {
					continue
				}
				if err := printCommit(cmd, env, oneline, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum commits to show")
	cmd.Flags().StringVar(&author, "author", "", "filter by author_id")
	cmd.Flags().StringVar(&process, "process", "", "filter by process name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func printCommit(cmd *cobra.Command, env *envelope.Envelope, oneline, asJSON bool) error {
	if asJSON {
		b, err := env.ToJSON()
		if err != nil {
			return err
		}
		cmd.Println(string(b))
		return nil
	}
	if oneline {
		cmd.Printf("%s %s\n", digest.ToHex(env.CommitID)[:12], env.Message)
		return nil
	}
	cmd.Printf("commit %s\n", digest.ToHex(env.CommitID))
	if !env.ParentID.IsZero() {
		cmd.Printf("parent  %s\n", digest.ToHex(env.ParentID))
	}
	cmd.Printf("author  %s (%s)\n", env.Author.ID, env.Author.Role)
	cmd.Printf("process %s %s\n", env.Process.Name, env.Process.Version)
	if env.Message != "" {
		cmd.Printf("\n    %s\n", env.Message)
	}
	cmd.Println()
	return nil
}
