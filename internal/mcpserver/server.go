// Package mcpserver exposes Perplexity search as MCP tools over stdio or
// streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diogo/perplexity-web-api-go/internal/metrics"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Searcher runs a query to completion.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

type Config struct {
	// Searcher answers tool calls, usually a *client.Client.
	Searcher Searcher
	// Logger is the configured zap logger
	Logger *zap.Logger
	// Version is reported to MCP clients.
	Version string
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with the search, research and reason tools.
func NewServer(c Config) (*Server, error) {
	if c.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Version == "" {
		c.Version = "dev"
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "perplexity",
			Version: c.Version,
		},
		&mcp.ServerOptions{},
	)

	for _, tool := range tools {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        tool.name,
			Description: tool.description,
		}, s.queryHandler(tool))
	}
	s.mcpServer = mcpServer

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler for the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router mounts the MCP endpoint at /mcp next to /metrics and /healthz.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Handle("/mcp", s.handler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// RunStdio serves MCP over stdin/stdout until ctx ends or the client
// disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.config.Logger.Info("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// ListenAndServe serves Router on addr until ctx ends, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.config.Logger.Info("starting MCP HTTP server", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.config.Logger.Info("shutting down MCP HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
