package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/cmn/telemetry"
	"github.com/mnemo-org/mnemo/internal/service/frontend"
)

// Serve runs the HTTP API server.
func Serve() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the memory API server",
			Long: `Start the HTTP server exposing the memory API and the chat proxy.
Host, port, auth and TLS come from the server section of the
configuration; --host and --port override it.`,
			Example: `  mnemo serve
  mnemo serve --host 0.0.0.0 --port 8420`,
		},
		[]commandLineFlag{hostFlag, portFlag},
		runServe,
	)
}

var (
	hostFlag = commandLineFlag{
		name:      "host",
		shorthand: "s",
		usage:     "host address to bind to",
	}
	portFlag = commandLineFlag{
		name:      "port",
		shorthand: "p",
		kind:      flagInt,
		usage:     "port to listen on",
	}
)

func runServe(ctx *Context, _ []string) error {
	cfg := ctx.Config

	if host, _ := ctx.Command.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := ctx.Command.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	tracer, err := telemetry.NewTracer(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn(ctx.Context, "Failed to shut down tracer", tag.Error(err))
		}
	}()

	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}
	p, err := ctx.NewProxy()
	if err != nil {
		return err
	}
	defer p.Wait()

	logger.Info(ctx.Context, "Starting server",
		tag.Addr(cfg.Server.Addr()),
	)
	return frontend.NewServer(cfg, m, p).Serve(ctx)
}
