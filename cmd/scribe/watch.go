package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/cdc"
	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/repo"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var connection, mode, slot string
	var tables []string
	var intervalMS int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the CDC ingestion loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer r.Close()

			cfg, err := r.LoadConfig()
			if err != nil {
				return err
			}
			if connection == "" {
				connection = cfg.PGConnectionString
			}
			if len(tables) == 0 {
				tables = cfg.WatchedTables
			}

			cdcCfg := cdc.Config{
				Mode:          cdc.Mode(mode),
				ConnString:    connection,
				WatchedTables: tables,
				PollInterval:  time.Duration(intervalMS) * time.Millisecond,
				AuthorID:      cfg.AuthorID,
				AuthorRole:    cfg.AuthorRole,
				SlotName:      slot,
			}

			if cleanup, _ := cmd.Flags().GetBool("cleanup"); cleanup {
				return cdc.Cleanup(cmd.Context(), cdcCfg)
			}

			monitor, err := cdc.New(cmd.Context(), cdcCfg, r, g.logger())
			if err != nil {
				return err
			}

			if setup, _ := cmd.Flags().GetBool("setup"); setup {
				monitor.Close(cmd.Context())
				cmd.Println("watch: slot and publication ready")
				return nil
			}

			stopWatch, err := r.WatchConfig(func(updated repo.Config) {
				monitor.SetAuthor(updated.AuthorID, updated.AuthorRole)
				g.logger().Infof("watch: config.json changed, author reloaded to %s", updated.AuthorID)
			})
			if err == nil {
				defer stopWatch()
			} else {
				g.logger().Infof("watch: config.json live-reload unavailable: %v", err)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				monitor.Stop()
			}()

			err = monitor.Start(cmd.Context(), func(id digest.Digest) {
				cmd.Printf("committed %s\n", digest.ToHex(id))
			})
			monitor.Close(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVar(&connection, "connection", "", "Postgres connection string, overriding config.json")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "watched tables, overriding config.json")
	cmd.Flags().StringVar(&mode, "mode", string(cdc.ModeTrigger), "trigger or logical")
	cmd.Flags().IntVar(&intervalMS, "interval", int(cdc.DefaultPollInterval.Milliseconds()), "poll interval in milliseconds")
	cmd.Flags().StringVar(&slot, "slot", "", "replication slot name (logical mode)")
	cmd.Flags().Bool("setup", false, "create the slot/publication then exit")
	cmd.Flags().Bool("cleanup", false, "drop the slot/publication then exit")
	return cmd
}
