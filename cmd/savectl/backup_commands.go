package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neogan74/savekit/internal/app"
	"github.com/neogan74/savekit/internal/persistence"
)

func newBackupsCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List and restore backups of the save file",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				records, err := a.Engine().ListBackups()
				if err != nil {
					return err
				}
				if len(records) == 0 {
					cli.Println("No backups")
					return nil
				}
				w := tabwriter.NewWriter(cli.Output, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%d\t%s\n", r.FileName, r.SizeBytes, r.LastModified.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}

	restore := &cobra.Command{
		Use:   "restore <backup-name|path>",
		Short: "Replace the save file with a backup, backing up the current file first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine().RestoreBackup(ctx, args[0]); err != nil {
					return err
				}
				cli.Printf("Successfully restored from backup: %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, restore)
	return cmd
}

func newSyncCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the save file with the remote slot; the newer side wins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine().Sync(ctx)
				if err != nil {
					return err
				}
				cli.Printf("Sync: %s (%d bytes)\n", res.Direction, res.PayloadSize)
				return nil
			})
		},
	}
}

func newInspectCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the frame tags, size and backup count of the save file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				info, err := a.Engine().Inspect()
				if err != nil {
					return err
				}
				cli.Println(info.String())
				return nil
			})
		},
	}
}

// newSlotCommand exposes key listing, snapshots and GC of the remote slot.
func newSlotCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Inspect, export or import the remote slot",
	}

	badgerSlot := func(a *app.App) (*persistence.BadgerEngine, error) {
		slot, ok := a.Slot().(*persistence.BadgerEngine)
		if !ok {
			return nil, fmt.Errorf("slot snapshots need the badger backend (use --cloud badger)")
		}
		return slot, nil
	}

	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Write a snapshot of the remote slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				slot, err := badgerSlot(a)
				if err != nil {
					return err
				}
				keys, err := slot.List(ctx, "")
				if err != nil {
					return err
				}
				if err := slot.Backup(args[0]); err != nil {
					return err
				}
				cli.Printf("Slot exported to %s (%d keys)\n", args[0], len(keys))
				return nil
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot into the remote slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				slot, err := badgerSlot(a)
				if err != nil {
					return err
				}
				if err := slot.Restore(args[0]); err != nil {
					return err
				}
				cli.Printf("Slot imported from %s\n", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List the keys held by the remote slot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.Slot() == nil {
					return fmt.Errorf("no remote slot configured (use --cloud)")
				}
				keys, err := a.Slot().List(ctx, prefix)
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					cli.Println("No slots")
					return nil
				}
				for _, key := range keys {
					cli.Println(key)
				}
				return nil
			})
		},
	}

	gc := &cobra.Command{
		Use:   "gc",
		Short: "Compact the value log of the badger remote slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				slot, err := badgerSlot(a)
				if err != nil {
					return err
				}
				if err := slot.CollectGarbage(0.5); err != nil {
					return err
				}
				cli.Println("Slot garbage collection completed")
				return nil
			})
		},
	}

	cmd.AddCommand(export, imp, list, gc)
	return cmd
}
