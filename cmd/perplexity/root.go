package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/diogo/perplexity-web-api-go/internal/auth"
	"github.com/diogo/perplexity-web-api-go/internal/config"
	"github.com/diogo/perplexity-web-api-go/internal/history"
	"github.com/diogo/perplexity-web-api-go/internal/logger"
	"github.com/diogo/perplexity-web-api-go/internal/threads"
	"github.com/diogo/perplexity-web-api-go/internal/ui"
	"github.com/diogo/perplexity-web-api-go/pkg/client"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/diogo/perplexity-web-api-go/pkg/sse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// historyResponseLimit caps the answer text kept in history entries.
const historyResponseLimit = 500

var (
	// Flags
	flagModel      string
	flagMode       string
	flagSources    string
	flagLanguage   string
	flagStream     bool
	flagNoStream   bool
	flagIncognito  bool
	flagOutputFile string
	flagCookieFile string
	flagVerbose    bool
	flagJSON       bool
	flagAttach     []string
	flagThread     string

	// Global config
	cfg    *config.Config
	cfgMgr *config.Manager
	render *ui.Renderer
	log    = zap.NewNop()
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "perplexity [query]",
	Short: "Perplexity AI CLI - Search with AI",
	Long: `Perplexity CLI is a command-line interface for Perplexity AI.

It allows you to perform AI-powered searches directly from your terminal
with support for multiple models, streaming output, file attachments and
follow-up threads.

Examples:
  perplexity "What is the capital of France?"
  perplexity "Explain quantum computing" --mode pro --model gpt-5.2
  perplexity "Summarize this" --attach report.pdf
  perplexity "And in 2020?" --thread census
  perplexity "Latest news on AI" --sources web,scholar --json`,
	Args:         cobra.ArbitraryArgs,
	RunE:         runQuery,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Query flags
	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "", "AI model to use (sonar, gpt-5.2, claude-4.5-sonnet, gemini-3.0-pro, ...)")
	rootCmd.Flags().StringVar(&flagMode, "mode", "", "Search mode (auto, pro, reasoning, deep-research)")
	rootCmd.Flags().StringVarP(&flagSources, "sources", "s", "", "Search sources (web,scholar,social)")
	rootCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "Response language (e.g., en-US, pt-BR)")
	rootCmd.Flags().BoolVar(&flagStream, "stream", false, "Enable streaming output")
	rootCmd.Flags().BoolVar(&flagNoStream, "no-stream", false, "Disable streaming output")
	rootCmd.Flags().BoolVarP(&flagIncognito, "incognito", "i", false, "Ask in incognito and don't save to history")
	rootCmd.Flags().StringVarP(&flagOutputFile, "output", "o", "", "Save response to file")
	rootCmd.Flags().StringArrayVarP(&flagAttach, "attach", "a", nil, "Attach a file (repeatable, needs cookies)")
	rootCmd.Flags().StringVarP(&flagThread, "thread", "t", "", "Continue and save a named follow-up thread")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the final response as JSON")
	rootCmd.MarkFlagsMutuallyExclusive("stream", "no-stream")

	rootCmd.PersistentFlags().StringVarP(&flagCookieFile, "cookies", "c", "", "Path to cookies file (JSON or Netscape)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cookiesCmd)
	rootCmd.AddCommand(importCookiesCmd)
	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error

	// Initialize config manager
	cfgMgr, err = config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err = cfgMgr.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if flagVerbose {
		level = "debug"
	}
	log, err = logger.New(level, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	// Initialize renderer
	render, err = ui.NewRenderer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing renderer: %v\n", err)
		os.Exit(1)
	}
}

// cookiePath returns the --cookies flag or the configured cookie file.
func cookiePath() string {
	if flagCookieFile != "" {
		return flagCookieFile
	}
	return cfg.CookieFile
}

// resolveCookies loads credentials from the cookie file or the
// environment. Having none is not an error: anonymous queries work.
func resolveCookies() ([]*http.Cookie, error) {
	cookies, err := auth.Resolve(cookiePath())
	if errors.Is(err, auth.ErrNoCookies) {
		log.Debug("no credentials found, continuing anonymously")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	return cookies, nil
}

func newClient() (*client.Client, error) {
	cookies, err := resolveCookies()
	if err != nil {
		return nil, err
	}

	cli, err := client.New(client.Config{
		Cookies:  cookies,
		Timeouts: cfg.Timeouts.Client(),
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return cli, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	// Check if query provided
	if len(args) == 0 {
		return cmd.Help()
	}

	req, err := buildSearchRequest(strings.Join(args, " "))
	if err != nil {
		return err
	}

	// Follow-up threads live in a bolt file; it is only opened when asked for.
	var store *threads.Store
	if flagThread != "" {
		store, err = threads.Open(cfg.ThreadsFile, log)
		if err != nil {
			return err
		}
		defer store.Close()

		req, err = continueThread(store, flagThread, req)
		if err != nil {
			return err
		}
	}

	cli, err := newClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	// Setup context with cancellation
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.OpenSession(ctx); err != nil {
		log.Warn("session warm-up failed", zap.Error(err))
	}

	streaming := cfg.Streaming
	if flagStream {
		streaming = true
	}
	if flagNoStream {
		streaming = false
	}

	if flagVerbose {
		render.RenderInfo(fmt.Sprintf("Query: %s", req.Query))
		render.RenderInfo(fmt.Sprintf("Mode: %s, Model: %s", req.Mode, displayModel(req.Model)))
		render.RenderInfo(fmt.Sprintf("Streaming: %v, Attachments: %d", streaming, len(req.Files)))
		render.NewLine()
	}

	var resp *models.SearchResponse
	if streaming {
		resp, err = streamQuery(ctx, cli, req)
	} else {
		resp, err = searchQuery(ctx, cli, req)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			render.NewLine()
			render.RenderWarning("Search cancelled")
			return nil
		}
		return err
	}

	if flagJSON {
		if err := render.RenderJSON(resp); err != nil {
			return err
		}
	}

	// Save to output file if specified
	if flagOutputFile != "" {
		if err := os.WriteFile(flagOutputFile, []byte(resp.Answer), 0644); err != nil {
			render.RenderError(fmt.Errorf("failed to save output: %v", err))
		} else if !flagJSON {
			render.RenderSuccess(fmt.Sprintf("Saved to %s", flagOutputFile))
		}
	}

	if store != nil {
		if _, err := store.Put(flagThread, resp.FollowUp); err != nil {
			render.RenderWarning(fmt.Sprintf("failed to save thread: %v", err))
		}
	}
	if !flagJSON {
		render.RenderFollowUp(resp.FollowUp, flagThread)
	}

	// Save to history if not incognito
	if !req.Incognito {
		recordHistory(req, resp, flagThread)
	}

	return nil
}

// streamQuery prints the answer as it grows and returns the final response.
// Frames that fail to decode are logged and skipped.
func streamQuery(ctx context.Context, cli *client.Client, req models.SearchRequest) (*models.SearchResponse, error) {
	stream, err := cli.SearchStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	printer := render.NewStreamPrinter()
	var last *models.SearchEvent
	for event, err := range stream.All() {
		if err != nil {
			if errors.Is(err, sse.ErrInvalidUTF8) || errors.Is(err, client.ErrMalformedPayload) {
				log.Warn("skipping undecodable frame", zap.Error(err))
				continue
			}
			return nil, err
		}
		last = event
		if !flagJSON {
			printer.Print(event)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if last == nil {
		return nil, client.ErrUnexpectedEndOfStream
	}

	resp, err := client.ResponseFromEvent(last)
	if err != nil {
		return nil, err
	}

	if !flagJSON {
		printer.Finish()
		if printer.Printed() == "" {
			render.RenderWarning("the answer stream carried no answer text")
		}
		render.RenderWebResults(resp.WebResults)
	}
	return resp, nil
}

// searchQuery runs a query to completion behind a spinner.
func searchQuery(ctx context.Context, cli *client.Client, req models.SearchRequest) (*models.SearchResponse, error) {
	done := make(chan struct{})
	spinnerDone := make(chan struct{})
	go func() {
		defer close(spinnerDone)
		if flagJSON {
			return
		}
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-done:
				render.ClearLine()
				return
			case <-ticker.C:
				render.RenderSpinner(frame)
			}
		}
	}()

	resp, err := cli.Search(ctx, req)
	close(done)
	<-spinnerDone
	if err != nil {
		return nil, err
	}

	if !flagJSON {
		if err := render.RenderResponse(resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// buildSearchRequest merges config defaults with command-line flags and
// reads attachments from disk.
func buildSearchRequest(query string) (models.SearchRequest, error) {
	req := models.NewSearchRequest(query).
		WithMode(cfg.DefaultMode).
		WithModel(cfg.DefaultModel).
		WithSources(cfg.DefaultSources...).
		WithLanguage(cfg.DefaultLanguage).
		WithIncognito(cfg.Incognito)

	// Override with flags
	if flagModel != "" {
		req = req.WithModel(models.Model(flagModel))
	}
	if flagMode != "" {
		mode := models.Mode(flagMode)
		if !models.IsValidMode(mode) {
			return req, fmt.Errorf("invalid mode: %s", flagMode)
		}
		req = req.WithMode(mode)
	}
	if flagLanguage != "" {
		req = req.WithLanguage(flagLanguage)
	}
	if flagSources != "" {
		sources, err := parseSourceFlag(flagSources)
		if err != nil {
			return req, err
		}
		req = req.WithSources(sources...)
	}
	if flagIncognito {
		req = req.WithIncognito(true)
	}

	if _, err := models.ResolveModel(req.Mode, req.Model); err != nil {
		return req, err
	}

	for _, path := range flagAttach {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read attachment: %w", err)
		}
		req = req.WithFile(models.FileFromBytes(filepath.Base(path), data))
	}

	return req, nil
}

func parseSourceFlag(value string) ([]models.Source, error) {
	parts := strings.Split(value, ",")
	sources := make([]models.Source, 0, len(parts))
	for _, p := range parts {
		source := models.Source(strings.TrimSpace(p))
		if source == "" {
			continue
		}
		if !models.IsValidSource(source) {
			return nil, fmt.Errorf("invalid source: %s", source)
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// continueThread attaches the thread's follow-up state to req. An unknown
// thread starts fresh.
func continueThread(store *threads.Store, name string, req models.SearchRequest) (models.SearchRequest, error) {
	thread, err := store.Get(name)
	if errors.Is(err, threads.ErrNotFound) {
		log.Debug("starting new thread", zap.String("thread", name))
		return req, nil
	}
	if err != nil {
		return req, err
	}
	return req.WithFollowUp(thread.FollowUp), nil
}

func recordHistory(req models.SearchRequest, resp *models.SearchResponse, thread string) {
	hw, err := history.NewWriter(cfg.HistoryFile)
	if err != nil {
		log.Warn("history unavailable", zap.Error(err))
		return
	}

	entry := history.NewEntry(req, resp, thread)
	entry.Response = truncateResponse(entry.Response, historyResponseLimit)
	if err := hw.Append(entry); err != nil {
		log.Warn("failed to write history", zap.Error(err))
	}
}

func displayModel(model models.Model) string {
	if model == models.ModelDefault {
		return "default"
	}
	return string(model)
}

func truncateResponse(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

