package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/neogan74/savekit/internal/app"
	"github.com/neogan74/savekit/internal/config"
	"github.com/neogan74/savekit/internal/logger"
)

// CLI represents the command-line interface with dependencies
type CLI struct {
	Input  io.Reader
	Output io.Writer
	Error  io.Writer
	Exit   func(int)

	// LoadConfig reads the base configuration; flags are applied on top.
	LoadConfig func() (*config.Config, error)
	// Logger overrides the logger built from the configuration.
	Logger logger.Logger

	flags globalFlags
}

// globalFlags override configuration values when set.
type globalFlags struct {
	path         string
	logLevel     string
	key          string
	noCompress   bool
	cloudBackend string
	cloudDir     string
}

// NewCLI creates a new CLI instance with default dependencies
func NewCLI() *CLI {
	return &CLI{
		Input:      os.Stdin,
		Output:     os.Stdout,
		Error:      os.Stderr,
		Exit:       os.Exit,
		LoadConfig: config.Load,
	}
}

// Printf writes formatted output to the output writer
func (cli *CLI) Printf(format string, args ...any) {
	fmt.Fprintf(cli.Output, format, args...)
}

// Println writes a line to the output writer
func (cli *CLI) Println(args ...any) {
	fmt.Fprintln(cli.Output, args...)
}

// Errorf writes formatted error to the error writer
func (cli *CLI) Errorf(format string, args ...any) {
	fmt.Fprintf(cli.Error, format, args...)
}

// config loads the configuration and applies the global flags.
func (cli *CLI) config() (*config.Config, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}

	f := cli.flags
	if f.path != "" {
		cfg.Save.Path = f.path
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.key != "" {
		cfg.Codec.Encryption = true
		cfg.Codec.Key = f.key
	}
	if f.noCompress {
		cfg.Codec.Compression = false
	}
	if f.cloudBackend != "" {
		cfg.Cloud.Enabled = true
		cfg.Cloud.Backend = f.cloudBackend
	}
	if f.cloudDir != "" {
		cfg.Cloud.DataDir = f.cloudDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withApp builds the application, runs fn and shuts the application down.
func (cli *CLI) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := cli.config()
	if err != nil {
		return err
	}

	builder := app.NewBuilder(cfg, version)
	if cli.Logger != nil {
		builder.WithLogger(cli.Logger)
	}
	a, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)
	if err := a.Shutdown(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// readInput reads path, or the CLI input when path is "-".
func (cli *CLI) readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cli.Input)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// writeOutput writes text to path, or to the CLI output when path is empty.
func (cli *CLI) writeOutput(path, text string) error {
	if path == "" {
		cli.Println(text)
		return nil
	}
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
