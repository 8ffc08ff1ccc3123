package main

import (
	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/digest"
)

func newStatusCmd(g *globalFlags) *cobra.Command {
	var porcelain bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show HEAD and repository configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer r.Close()

			head, err := r.GetHead(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := r.LoadConfig()
			if err != nil {
				return err
			}

			if porcelain {
				headStr := ""
				if !head.IsZero() {
					headStr = digest.ToHex(head)
				}
				cmd.Printf("HEAD\t%s\n", headStr)
				cmd.Printf("author\t%s\n", cfg.AuthorID)
				cmd.Printf("role\t%s\n", cfg.AuthorRole)
				return nil
			}

			cmd.Printf("repository: %s\n", r.Root())
			if head.IsZero() {
				cmd.Println("HEAD: (unborn)")
			} else {
				cmd.Printf("HEAD: %s\n", digest.ToHex(head))
			}
			cmd.Printf("author: %s (%s)\n", cfg.AuthorID, cfg.AuthorRole)
			if len(cfg.WatchedTables) > 0 {
				cmd.Printf("watched tables: %v\n", cfg.WatchedTables)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&porcelain, "porcelain", false, "machine-readable output")
	return cmd
}
