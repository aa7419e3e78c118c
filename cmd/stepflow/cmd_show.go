package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aristath/stepflow/internal/persistence"
	"github.com/aristath/stepflow/internal/state"
)

var showCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show stored runs",
	Long: `Without arguments, lists stored checkpoints (newest first), optionally
filtered by --session. With a task id, prints that run's state and step history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showRuns,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRun,
}

func init() {
	showCmd.Flags().StringVar(&sessionID, "session", "", "Only list runs of this session")
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stored task state as JSON")
	rootCmd.AddCommand(showCmd, deleteCmd)
}

// openStore opens the configured checkpoint database.
func openStore(ctx context.Context) (*persistence.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path == "" {
		return nil, errors.New("checkpoints are disabled (database.path is empty)")
	}
	return persistence.NewSQLiteStore(ctx, cfg.Database.Path)
}

func showRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		summaries, err := store.ListCheckpoints(ctx, sessionID)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No stored runs.")
			return nil
		}
		fmt.Fprintln(out, renderSummaries(summaries))
		return nil
	}

	st, err := store.LoadCheckpoint(ctx, args[0])
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no stored run %q", args[0])
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, st)
	}

	steps, err := store.GetSteps(ctx, st.TaskID)
	if err != nil {
		return err
	}
	printRun(out, st, steps)
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteCheckpoint(ctx, args[0]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no stored run %q", args[0])
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func renderSummaries(summaries []persistence.Summary) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.TaskID,
			string(s.Status),
			fmt.Sprintf("%d/%d", s.CurrentStep, s.MaxSteps),
			s.UpdatedAt.Local().Format(time.DateTime),
			preview(s.OriginalTask, 50),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TASK", "STATUS", "STEPS", "UPDATED", "ORIGINAL TASK").
		Rows(rows...).
		String()
}

func printRun(w io.Writer, st state.TaskState, steps []state.StepRecord) {
	fmt.Fprintf(w, "Task:    %s\n", st.OriginalTask)
	fmt.Fprintf(w, "ID:      %s (session %s)\n", st.TaskID, st.SessionID)
	fmt.Fprintf(w, "Status:  %s, step %d of %d\n", st.Status, st.Control.CurrentStep, st.Control.MaxSteps)
	if st.ErrorState != nil {
		fmt.Fprintf(w, "Error:   %s: %s\n", st.ErrorState.ErrorType, st.ErrorState.ErrorMessage)
	}
	fmt.Fprintln(w)

	for _, rec := range steps {
		line := fmt.Sprintf("%3d  %-15s %-15s %6dms", rec.StepNumber, rec.NodeName, rec.StepType, rec.DurationMS)
		if rec.ModelUsed != "" {
			line += "  " + rec.ModelUsed
		}
		if rec.Error != "" {
			line += "  error: " + rec.Error
		}
		fmt.Fprintln(w, line)
	}

	if st.FinalResponse != nil {
		fmt.Fprintf(w, "\n%s\n", *st.FinalResponse)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
