package main

import (
	"errors"
	"fmt"

	"github.com/diogo/perplexity-web-api-go/internal/threads"
	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage follow-up threads",
	Long: `Manage named follow-up threads.

Asking with --thread <name> continues the conversation stored under that
name and saves the new follow-up state when the answer completes.`,
	RunE: runThreadsList,
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved threads",
	RunE:  runThreadsList,
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the follow-up state of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThreads(func(store *threads.Store) error {
			thread, err := store.Get(args[0])
			if errors.Is(err, threads.ErrNotFound) {
				return fmt.Errorf("thread not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			return render.RenderJSON(thread)
		})
	},
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThreads(func(store *threads.Store) error {
			if err := store.Delete(args[0]); err != nil {
				if errors.Is(err, threads.ErrNotFound) {
					return fmt.Errorf("thread not found: %s", args[0])
				}
				return err
			}
			render.RenderSuccess(fmt.Sprintf("Thread %s deleted", args[0]))
			return nil
		})
	},
}

func runThreadsList(cmd *cobra.Command, args []string) error {
	return withThreads(func(store *threads.Store) error {
		list, err := store.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			render.RenderInfo("No threads")
			return nil
		}

		out := cmd.OutOrStdout()
		render.RenderTitle("Threads")
		for _, thread := range list {
			fmt.Fprintf(out, "%-20s %3d turns  %s\n",
				thread.Name, thread.Turns, thread.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	})
}

func withThreads(fn func(*threads.Store) error) error {
	store, err := threads.Open(cfg.ThreadsFile, log)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func init() {
	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsShowCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)
}
