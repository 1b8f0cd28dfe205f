package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/diogo/perplexity-web-api-go/internal/mcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagMCPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve Perplexity search as MCP tools",
	Long: `Run a Model Context Protocol server exposing perplexity_search,
perplexity_research and perplexity_reason.

By default the server speaks MCP over stdin/stdout. With --http it serves
streamable HTTP on /mcp, Prometheus metrics on /metrics and a health check
on /healthz. Tool calls never save history.

Example:
  perplexity mcp
  perplexity mcp --http 127.0.0.1:8808`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := newClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		server, err := mcpserver.NewServer(mcpserver.Config{
			Searcher: cli,
			Logger:   log,
			Version:  Version,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := cli.OpenSession(ctx); err != nil {
			log.Warn("session warm-up failed", zap.Error(err))
		}

		if flagMCPAddr != "" {
			return server.ListenAndServe(ctx, flagMCPAddr)
		}
		return server.RunStdio(ctx)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&flagMCPAddr, "http", "", "Serve streamable HTTP on this address instead of stdio")
}
