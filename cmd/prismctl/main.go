// Command prismctl is a thin administrative CLI over the ledger,
// grounded on the teacher's cmd/warren subcommand style (a cobra root
// command, one subcommand group per resource, cobra.ExactArgs,
// fmt.Println status output). It implements spec.md §5's
// "administrative path" for best-effort cancellation: marking a
// task's still-open units failed with reason "cancelled" without
// interrupting any generation already in flight.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prismlabs/prism/pkg/config"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/types"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prismctl",
	Short: "Administrative CLI for the prism document processing ledger",
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and manage tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status TASK_ID",
	Short: "Show a task's status and its page units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, ctx, cancel, err := openLedger()
		if err != nil {
			return err
		}
		defer cancel()
		defer store.Close()

		taskID := args[0]
		task, err := store.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("fetching task %s: %w", taskID, err)
		}
		units, err := store.ListPageUnits(ctx, taskID)
		if err != nil {
			return fmt.Errorf("listing units for task %s: %w", taskID, err)
		}

		fmt.Printf("Task %s\n", task.TaskID)
		fmt.Printf("  Status:     %s\n", task.Status)
		fmt.Printf("  User:       %s\n", task.UserID)
		fmt.Printf("  Pages:      %d\n", task.TotalPages)
		fmt.Printf("  Formats:    %v\n", task.RequestedFormats)
		fmt.Println()
		fmt.Printf("  %-6s %-8s %-12s\n", "Page", "Format", "Status")
		for _, u := range units {
			fmt.Printf("  %-6d %-8s %-12s\n", u.PageNumber, u.Format, u.Status)
		}
		return nil
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel TASK_ID",
	Short: "Mark a task's still-open units failed with reason cancelled",
	Long: `Best-effort cancellation (spec.md §5): every non-terminal page
unit is marked failed with error_message "cancelled". A unit whose
generation is already in flight is not interrupted — it may still
complete and overwrite the cancelled status, which this tool does not
guard against, matching the spec's documented best-effort contract.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, ctx, cancel, err := openLedger()
		if err != nil {
			return err
		}
		defer cancel()
		defer store.Close()

		taskID := args[0]
		units, err := store.ListPageUnits(ctx, taskID)
		if err != nil {
			return fmt.Errorf("listing units for task %s: %w", taskID, err)
		}

		cancelled := 0
		for _, u := range units {
			if u.Status.Terminal() {
				continue
			}
			u.Status = types.TaskFailed
			u.ErrorMessage = "cancelled"
			if err := store.UpsertPageUnit(ctx, u); err != nil {
				return fmt.Errorf("cancelling unit %d/%s: %w", u.PageNumber, u.Format, err)
			}
			cancelled++
		}

		if err := store.RecomputeTaskStatus(ctx, taskID); err != nil {
			return fmt.Errorf("recomputing task status: %w", err)
		}

		fmt.Printf("✓ Cancelled %d unit(s) for task %s\n", cancelled, taskID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskCancelCmd)
}

func openLedger() (*ledger.PostgresStore, context.Context, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := ledger.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connecting to ledger: %w", err)
	}
	return store, ctx, cancel, nil
}
