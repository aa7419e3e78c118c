package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aristath/stepflow/internal/capability"
	"github.com/aristath/stepflow/internal/state"
)

var toolInput string

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers and tools",
	Args:  cobra.NoArgs,
	RunE:  listProviders,
}

var toolCmd = &cobra.Command{
	Use:   "tool [name]",
	Short: "Execute a tool provider directly",
	Long: `Executes a registered tool with a JSON input and prints its JSON output.

Example:
  stepflow tool text --input '{"action":"word_count","text":"hello there"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runTool,
}

func init() {
	toolCmd.Flags().StringVar(&toolInput, "input", "{}", "Tool input as a JSON object")
	rootCmd.AddCommand(providersCmd, toolCmd)
}

func listProviders(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Providers")
	fmt.Fprintln(out, renderListing(a.Providers.ListAvailable()))
	fmt.Fprintln(out, "Tools")
	fmt.Fprintln(out, renderListing(a.Tools.ListAvailable()))
	return nil
}

// renderListing draws descriptor listings as a table.
func renderListing(infos []state.ProviderInfo) string {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		enabled := "yes"
		if !info.Enabled {
			enabled = "no"
		}
		rows = append(rows, []string{info.Name, enabled, info.InputContract, info.OutputContract, info.Description})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "ENABLED", "INPUT", "OUTPUT", "DESCRIPTION").
		Rows(rows...).
		String()
}

func runTool(cmd *cobra.Command, args []string) error {
	var in capability.Input
	if err := json.NewDecoder(strings.NewReader(toolInput)).Decode(&in); err != nil {
		return fmt.Errorf("parsing --input: %w", err)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Tools.Execute(cmd.Context(), args[0], in)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
