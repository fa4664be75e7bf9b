package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/neomorfeo/marketflow/internal/process"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph <process>",
	Short: "Print a process state graph",
	Long: `Print the state graph of a registered process, either as Graphviz DOT
(pipe into "dot -Tsvg") or as JSON.`,
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return process.Names(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printGraph(cmd.OutOrStdout(), args[0], graphFormat)
	},
}

func init() {
	graphCmd.Flags().StringVarP(&graphFormat, "format", "f", "dot", `output format: "dot" or "json"`)
	rootCmd.AddCommand(graphCmd)
}

func printGraph(w io.Writer, name, format string) error {
	p, err := process.Lookup(name)
	if err != nil {
		return err
	}

	switch format {
	case "dot":
		_, err = io.WriteString(w, process.DOT(p.Graph))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p.Graph)
	default:
		return fmt.Errorf("unsupported format %q (use \"dot\" or \"json\")", format)
	}
}
