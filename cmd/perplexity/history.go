package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/diogo/perplexity-web-api-go/internal/history"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/spf13/cobra"
)

var (
	historyCount int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View query history",
	Long:  `View and manage your query history.`,
	RunE:  runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent queries",
	RunE:  runHistoryList,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search history by query or thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := history.NewReader(cfg.HistoryFile)
		entries, err := reader.Search(args[0])
		if err != nil {
			return fmt.Errorf("failed to search history: %v", err)
		}

		if len(entries) == 0 {
			render.RenderInfo("No matching entries found")
			return nil
		}

		render.RenderTitle(fmt.Sprintf("Search Results: %d matches", len(entries)))
		printEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Show details of a history entry (1 is the most recent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 1 {
			return fmt.Errorf("invalid index: %s", args[0])
		}

		entry, err := history.NewReader(cfg.HistoryFile).Get(idx)
		if errors.Is(err, history.ErrNoEntry) {
			return fmt.Errorf("index out of range: %d", idx)
		}
		if err != nil {
			return fmt.Errorf("failed to read history: %v", err)
		}

		out := cmd.OutOrStdout()
		render.RenderTitle("History Entry")
		fmt.Fprintf(out, "Timestamp: %s\n", entry.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Query:     %s\n", entry.Query)
		fmt.Fprintf(out, "Mode:      %s\n", entry.Mode)
		fmt.Fprintf(out, "Model:     %s\n", displayModel(models.Model(entry.Model)))
		if entry.Thread != "" {
			fmt.Fprintf(out, "Thread:    %s\n", entry.Thread)
		}
		if entry.Citations > 0 {
			fmt.Fprintf(out, "Sources:   %d\n", entry.Citations)
		}
		if entry.Response != "" {
			fmt.Fprintln(out, "\nResponse:")
			return render.RenderMarkdown(entry.Response)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all history",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := history.NewReader(cfg.HistoryFile)
		if err := reader.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %v", err)
		}
		render.RenderSuccess("History cleared")
		return nil
	},
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	n := historyCount
	if n <= 0 {
		n = 20
	}

	entries, err := history.NewReader(cfg.HistoryFile).ReadLast(n)
	if err != nil {
		return fmt.Errorf("failed to read history: %v", err)
	}

	if len(entries) == 0 {
		render.RenderInfo("No history entries")
		return nil
	}

	render.RenderTitle("Recent Queries")
	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

func printEntries(out io.Writer, entries []models.HistoryEntry) {
	for i, entry := range entries {
		fmt.Fprintf(out, "[%d] %s\n", i+1, entry.Timestamp.Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "    %s\n", entry.Query)
		if entry.Mode != "" {
			fmt.Fprintf(out, "    Mode: %s", entry.Mode)
			if entry.Model != "" {
				fmt.Fprintf(out, ", Model: %s", entry.Model)
			}
			if entry.Thread != "" {
				fmt.Fprintf(out, ", Thread: %s", entry.Thread)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out)
	}
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "Number of entries to show")
	historyListCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "Number of entries to show")
}
