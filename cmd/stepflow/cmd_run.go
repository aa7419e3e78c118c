package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/stepflow/internal/state"
)

var (
	maxSteps   int
	sessionID  string
	jsonOutput bool
)

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run one task to completion",
	Long: `Runs a task through query analysis, decision rounds, provider
execution and collation, then prints the final response.

Example:
  stepflow run "Research the history of the Go gopher and write a short post"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Run every task in a file concurrently",
	Long: `Reads one task per line from file (or stdin when file is "-") and runs
them concurrently, bounded by orchestrator.concurrency. Blank lines and lines
starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, batchCmd} {
		cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Override the step budget")
		cmd.Flags().StringVar(&sessionID, "session", "", "Session to attach the run to")
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the final task state as JSON")
	}
	rootCmd.AddCommand(runCmd, batchCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.NewTask(strings.Join(args, " "), sessionID, state.WithMaxSteps(maxSteps))
	final, err := a.Run(ctx, st)
	if err != nil {
		return fmt.Errorf("run %s: %w", st.TaskID, err)
	}
	return printResult(cmd.OutOrStdout(), final)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening task file: %w", err)
		}
		defer f.Close()
		in = f
	}
	lines, err := readTasks(in)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no tasks in %s", args[0])
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks := make([]state.TaskState, len(lines))
	for i, line := range lines {
		tasks[i] = a.NewTask(line, sessionID, state.WithMaxSteps(maxSteps))
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range a.RunBatch(ctx, tasks) {
		if res.Err != nil {
			failed++
			fmt.Fprintf(out, "== %s (failed: %v)\n\n", res.State.TaskID, res.Err)
			continue
		}
		fmt.Fprintf(out, "== %s (%s)\n", res.State.TaskID, res.State.OriginalTask)
		if err := printResult(out, res.State); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
	}
	return nil
}

// readTasks returns the non-blank, non-comment lines of r.
func readTasks(r io.Reader) ([]string, error) {
	var tasks []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	return tasks, nil
}

func printResult(w io.Writer, st state.TaskState) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	if st.FinalResponse != nil {
		fmt.Fprintln(w, *st.FinalResponse)
	}
	return nil
}
