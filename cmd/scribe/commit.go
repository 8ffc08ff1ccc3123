package main

import (
	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
)

func newCommitCmd(g *globalFlags) *cobra.Command {
	var message, author, role, process, version, table, operation, pk, data, beforeData, afterData string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Create a commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer r.Close()

			if author == "" {
				cfg, err := r.LoadConfig()
				if err == nil {
					author, role = cfg.AuthorID, cfg.AuthorRole
				}
			}

			env := envelope.New()
			env.SetAuthor(author, role, "")
			env.SetProcess(process, version, "", "")
			env.SetMessage(message)

			if table != "" {
				if pk == "" {
					pk = data
				}
				change := envelope.Change{Table: table, Operation: envelope.Operation(operation), PrimaryKey: pk}
				switch envelope.Operation(operation) {
				case envelope.Insert:
					change.AfterDigest = digest.HashBytes([]byte(data))
				case envelope.Delete:
					change.BeforeDigest = digest.HashBytes([]byte(data))
				case envelope.Update:
					if beforeData == "" || afterData == "" {
						return errs.New(errs.InvalidArg, "commit: --operation UPDATE requires both --before-data and --after-data")
					}
					change.BeforeDigest = digest.HashBytes([]byte(beforeData))
					change.AfterDigest = digest.HashBytes([]byte(afterData))
				default:
					return errs.New(errs.InvalidArg, "commit: --operation must be INSERT, UPDATE or DELETE")
				}
				if err := env.AddChange(change); err != nil {
					return err
				}
			}

			if err := r.StoreCommit(cmd.Context(), env); err != nil {
				return err
			}
			cmd.Println(digest.ToHex(env.CommitID))
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "author_id, overriding config.json")
	cmd.Flags().StringVar(&role, "role", "", "author_role, overriding config.json")
	cmd.Flags().StringVar(&process, "process", "", "process name")
	cmd.Flags().StringVar(&version, "version", "", "process version")
	cmd.Flags().StringVar(&table, "table", "", "changed table name")
	cmd.Flags().StringVar(&operation, "operation", "", "INSERT, UPDATE or DELETE")
	cmd.Flags().StringVar(&pk, "pk", "", "primary key payload, defaults to --data")
	cmd.Flags().StringVar(&data, "data", "", "row payload to digest, for INSERT/DELETE")
	cmd.Flags().StringVar(&beforeData, "before-data", "", "pre-change row payload, for UPDATE")
	cmd.Flags().StringVar(&afterData, "after-data", "", "post-change row payload, for UPDATE")
	return cmd
}
