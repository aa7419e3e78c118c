package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/app"
	"github.com/aristath/stepflow/internal/state"
	"github.com/aristath/stepflow/internal/tui"
)

const shutdownTimeout = 10 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [task]...",
	Short: "Run tasks with a live terminal view",
	Long: `Runs each argument as a separate task, concurrently, and renders the
decision rounds, provider calls and results live. Press s to edit settings
for the next run and q to quit; quitting cancels runs still in progress.`,
	Args: cobra.MinimumNArgs(1),
	RunE: watchTasks,
}

func init() {
	watchCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Override the step budget")
	watchCmd.Flags().StringVar(&sessionID, "session", "", "Session to attach the runs to")
	rootCmd.AddCommand(watchCmd)
}

func watchTasks(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The terminal belongs to the TUI, so engine logs are dropped.
	logger = zap.NewNop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.New(a.Bus, cfg, globalConfigPath(), projectConfigPath())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	tasks := make([]state.TaskState, len(args))
	for i, task := range args {
		tasks[i] = a.NewTask(task, sessionID, state.WithMaxSteps(maxSteps))
	}

	runsDone := make(chan []error, 1)
	go func() {
		var errs []error
		for _, res := range a.RunBatch(ctx, tasks) {
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", res.State.TaskID, res.Err))
			}
		}
		p.Send(tui.FinishedMsg{})
		runsDone <- errs
	}()

	_, runErr := p.Run()
	interrupted := cmd.Context().Err() != nil

	// Quitting the view cancels outstanding runs and their subprocesses
	cancel()
	if killErr := a.Processes.KillAll(); killErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error killing subprocesses: %v\n", killErr)
	}

	select {
	case errs := <-runsDone:
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), e)
		}
	case <-time.After(shutdownTimeout):
		fmt.Fprintln(cmd.ErrOrStderr(), "Shutdown timeout exceeded, forcing exit")
	}

	if runErr != nil && !interrupted {
		return runErr
	}
	return nil
}
