// Command savectl saves, loads, validates, migrates and mirrors save files
// through the savekit pipeline, and can serve the admin API.
package main

import (
	"errors"

	"github.com/neogan74/savekit/internal/engine"
)

const version = "1.0.0"

func main() {
	cli := NewCLI()
	cli.Exit(cli.Run(nil))
}

// Run executes the command line and returns the process exit code.
// A nil args uses the process arguments.
func (cli *CLI) Run(args []string) int {
	root := NewRootCommand(cli)
	if args != nil {
		root.SetArgs(args)
	}
	if err := root.Execute(); err != nil {
		cli.Errorf("Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode distinguishes failure classes for scripts.
func exitCode(err error) int {
	var e *engine.Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Kind {
	case engine.KindDecode:
		return 3
	case engine.KindValidation:
		return 4
	case engine.KindMigration:
		return 5
	default:
		return 2
	}
}
