// Package cmd implements the CLI commands. Each command constructor
// returns a cobra.Command wired through NewCommand, which loads the
// configuration and sets up the logger before the command body runs.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/memory"
	"github.com/mnemo-org/mnemo/internal/proxy"
)

// Context holds the loaded configuration for a command invocation.
type Context struct {
	context.Context

	Command *cobra.Command
	Config  *config.Config
	Quiet   bool

	mem *memory.Memory
}

// NewContext loads the configuration, sets up the logger context and
// logs any warnings collected while loading.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()

	if err := bindFlags(cmd, flags); err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var loaderOpts []config.ConfigLoaderOption
	if cfgPath := viper.GetString("config"); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")
	if logFormat != "" {
		cfg.Core.LogFormat = logFormat
	}

	var opts []logger.Option
	if cfg.Core.Debug || logLevel == "debug" || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Core.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.Core.LogFormat))
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	for _, w := range cfg.Warnings {
		logger.Warn(ctx, w)
	}

	return &Context{
		Context: ctx,
		Command: cmd,
		Config:  cfg,
		Quiet:   quiet,
	}, nil
}

// OpenMemory opens the memory pipeline lazily and reuses it across
// calls within one command.
func (c *Context) OpenMemory() (*memory.Memory, error) {
	if c.mem != nil {
		return c.mem, nil
	}
	m, err := memory.New(c.Context, c.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory pipeline: %w", err)
	}
	c.mem = m
	return m, nil
}

// NewProxy builds the memory-augmented chat surface.
func (c *Context) NewProxy() (*proxy.Proxy, error) {
	m, err := c.OpenMemory()
	if err != nil {
		return nil, err
	}
	return proxy.New(m), nil
}

// Close releases resources opened during the command.
func (c *Context) Close() {
	if c.mem != nil {
		if err := c.mem.Close(c.Context); err != nil {
			logger.Warn(c.Context, "Failed to close memory pipeline", tag.Error(err))
		}
	}
}

// NewCommand wraps a cobra command so its body runs with a loaded
// Context. Errors are logged and exit non-zero.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Initialization error: %v\n", err)
			os.Exit(1)
		}
		defer ctx.Close()
		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx.Context, "Command failed", tag.Error(err))
			os.Exit(1)
		}
		return nil
	}

	return cmd
}
