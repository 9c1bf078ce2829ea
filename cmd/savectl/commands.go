package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neogan74/savekit/internal/app"
	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/engine"
)

// NewRootCommand builds the savectl command tree.
func NewRootCommand(cli *CLI) *cobra.Command {
	root := &cobra.Command{
		Use:           "savectl",
		Short:         "Manage save files through the savekit pipeline",
		Long:          "savectl frames, persists, backs up, mirrors, validates and migrates save documents.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(cli.Input)
	root.SetOut(cli.Output)
	root.SetErr(cli.Error)

	pf := root.PersistentFlags()
	pf.StringVar(&cli.flags.path, "path", "", "save file path (overrides SAVEKIT_SAVE_PATH)")
	pf.StringVar(&cli.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&cli.flags.key, "key", "", "encryption key; enables encryption (\"base64:\" prefix for base64)")
	pf.BoolVar(&cli.flags.noCompress, "no-compress", false, "write without compression")
	pf.StringVar(&cli.flags.cloudBackend, "cloud", "", "remote slot backend: memory, badger or gcs; enables the mirror")
	pf.StringVar(&cli.flags.cloudDir, "cloud-dir", "", "data directory of the badger remote slot")

	root.AddCommand(
		newSaveCommand(cli),
		newLoadCommand(cli),
		newValidateCommand(cli),
		newMigrateCommand(cli),
		newBackupsCommand(cli),
		newSyncCommand(cli),
		newInspectCommand(cli),
		newSlotCommand(cli),
		newServeCommand(cli),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				cli.Printf("savectl version %s\n", version)
			},
		},
	)
	return root
}

func newSaveCommand(cli *CLI) *cobra.Command {
	var noBackup bool
	cmd := &cobra.Command{
		Use:   "save <document-file|->",
		Short: "Write a document through compression and encryption to the save path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := cli.readInput(args[0])
			if err != nil {
				return err
			}
			doc, err := document.Parse(text)
			if err != nil {
				return err
			}
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine().Save(ctx, doc, !noBackup)
				if err != nil {
					return err
				}
				cli.Printf("Saved %s (%d bytes, tags %s)\n", res.Path, res.Bytes, tagList(res.Tags))
				if res.Backup != nil {
					cli.Printf("Previous save backed up to %s\n", res.Backup.FileName)
				}
				if res.Pushed {
					cli.Println("Pushed to remote slot")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "overwrite without backing up the previous save")
	return cmd
}

func newLoadCommand(cli *CLI) *cobra.Command {
	var (
		fromCloud bool
		migrate   bool
		asJSON    bool
		out       string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Decode the save file and print the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					res engine.LoadResult
					err error
				)
				if migrate {
					res, _, err = a.Engine().LoadAndMigrate(ctx, fromCloud)
				} else {
					res, err = a.Engine().Load(ctx, fromCloud)
				}
				if err != nil {
					return err
				}

				cli.Errorf("Loaded from %s (version %s)\n", res.Source, res.Version)
				if res.Backup != nil {
					cli.Errorf("Save was corrupt (%v); recovered from %s\n", res.DecodeError, res.Backup.FileName)
				}
				text, err := render(res.Document, asJSON)
				if err != nil {
					return err
				}
				return cli.writeOutput(out, text)
			})
		},
	}
	cmd.Flags().BoolVar(&fromCloud, "from-cloud", true, "fetch from the remote slot when the save file is missing")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "validate and migrate to the target version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print indented JSON")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to a file")
	return cmd
}

func newValidateCommand(cli *CLI) *cobra.Command {
	var schemaVersion string
	cmd := &cobra.Command{
		Use:   "validate <document-file|->",
		Short: "Run the registered validation rules against a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := cli.readInput(args[0])
			if err != nil {
				return err
			}
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				v := schemaVersion
				if v == "" {
					if doc, perr := document.Parse(text); perr == nil {
						v = a.Engine().DeclaredVersion(doc)
					}
				}
				result, _ := a.Registry().ValidateText(text, v)
				for _, w := range result.Warnings {
					cli.Printf("warning: %s\n", w)
				}
				for _, e := range result.Errors {
					cli.Printf("error: %s\n", e)
				}
				if !result.IsValid {
					return &engine.Error{Kind: engine.KindValidation, Op: "validate", Path: args[0], Err: engine.ErrValidationFailed}
				}
				cli.Printf("Document is valid for version %s\n", v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&schemaVersion, "version", "", "schema version (defaults to the document's version key)")
	return cmd
}

func newMigrateCommand(cli *CLI) *cobra.Command {
	var (
		from   string
		to     string
		out    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "migrate <document-file|->",
		Short: "Validate a document and migrate it to the target version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := cli.readInput(args[0])
			if err != nil {
				return err
			}
			doc, err := document.Parse(text)
			if err != nil {
				return err
			}
			return cli.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				outcome, err := a.Engine().ValidateAndMigrate(ctx, doc, from, to, true)
				for _, msg := range outcome.Migration.Messages {
					cli.Errorf("%s\n", msg)
				}
				for _, e := range outcome.Validation.Errors {
					cli.Errorf("error: %s\n", e)
				}
				if err != nil {
					return err
				}
				cli.Errorf("Migrated %s -> %s (%d steps)\n",
					outcome.Migration.FromVersion, outcome.Migration.ToVersion, outcome.Migration.Applied)
				text, err := render(outcome.Document, asJSON)
				if err != nil {
					return err
				}
				return cli.writeOutput(out, text)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "declared version (defaults to the document's version key)")
	cmd.Flags().StringVar(&to, "to", "", "target version (defaults to SAVEKIT_TARGET_VERSION)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the migrated document to a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print indented JSON")
	return cmd
}

func newServeCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and run background flush and sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.config()
			if err != nil {
				return err
			}
			builder := app.NewBuilder(cfg, version)
			if cli.Logger != nil {
				builder.WithLogger(cli.Logger)
			}
			a, err := builder.Build(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}

// render formats doc as document text, or as indented JSON.
func render(doc *document.Node, asJSON bool) (string, error) {
	if !asJSON {
		return document.Serialize(doc)
	}
	data, err := json.MarshalIndent(document.ToNative(doc), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(data), nil
}

func tagList(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ",")
}
