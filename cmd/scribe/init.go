package main

import (
	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/repo"
)

func newInitCmd(g *globalFlags) *cobra.Command {
	var author, role string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a .scribe repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.chdir
			if len(args) == 1 {
				path = args[0]
			}
			r, err := repo.Init(cmd.Context(), path, repo.Config{AuthorID: author, AuthorRole: role}, g.logger())
			if err != nil {
				return err
			}
			defer r.Close()
			cmd.Printf("initialized repository at %s\n", r.Root())
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "default author_id for this repository")
	cmd.Flags().StringVar(&role, "role", "", "default author_role for this repository")
	return cmd
}
