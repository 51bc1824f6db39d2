package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/rule"
)

// AlgorithmsResult lists registered algorithm types per capability.
type AlgorithmsResult struct {
	Capabilities map[string][]string `json:"capabilities"`
	order        []string
}

func (r AlgorithmsResult) renderText(w io.Writer) {
	for _, c := range r.order {
		fmt.Fprintf(w, "%s:\n", c)
		for _, typ := range r.Capabilities[c] {
			fmt.Fprintf(w, "  %s\n", typ)
		}
	}
}

// NewAlgorithmsCommand creates the algorithms command.
func NewAlgorithmsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms [capability]",
		Short: "List built-in algorithm types",
		Long: `List the sharding and encryption algorithm types available to rule files.

Examples:
  sluice algorithms
  sluice algorithms encryption --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := rule.BuiltinRegistry()
			result := AlgorithmsResult{Capabilities: make(map[string][]string)}
			for _, c := range reg.Capabilities() {
				name := string(c)
				if len(args) == 1 && !strings.EqualFold(args[0], name) {
					continue
				}
				result.order = append(result.order, name)
				result.Capabilities[name] = reg.Types(c)
			}
			if len(result.order) == 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown capability %q", args[0]))
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(result)
		},
	}
}
