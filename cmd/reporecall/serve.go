package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/reporecall/internal/mcp"
	"github.com/dshills/reporecall/internal/project"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The server is long-lived, so keep startup and shutdown visible
			c.level = slog.LevelInfo
			logger := c.logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.withProject(func(p *project.Project) error {
				err := mcp.NewServer(p, logger).Serve(ctx, cmd.InOrStdin(), c.out)
				if errors.Is(err, context.Canceled) {
					logger.Info("server stopped")
					return nil
				}
				return err
			})
		},
	}
}
