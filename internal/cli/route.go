package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/ir"
)

// RouteResult is the output of the route command.
type RouteResult struct {
	Table string   `json:"table"`
	Units []string `json:"units"`
}

func (r RouteResult) renderText(w io.Writer) {
	for _, u := range r.Units {
		fmt.Fprintln(w, u)
	}
}

// PlanResult is the output of the plan command.
type PlanResult struct {
	Plan *ir.ExecutionPlan `json:"plan"`
	Hash string            `json:"hash"`
}

func (r PlanResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "table: %s\n", r.Plan.Table)
	fmt.Fprintln(w, "units:")
	for _, u := range r.Plan.Units {
		fmt.Fprintf(w, "  %s\n", u)
	}
	if len(r.Plan.Literals) > 0 {
		fmt.Fprintln(w, "literals:")
		for _, l := range r.Plan.Literals {
			val, _ := ir.MarshalIRValue(l.Value)
			mark := ""
			if l.Encrypted {
				mark = " (encrypted)"
			}
			fmt.Fprintf(w, "  $%d %s = %s%s\n", l.Placeholder, l.Column, val, mark)
		}
	}
	var marked []string
	for _, c := range r.Plan.ResultColumns {
		if c.Encrypted {
			marked = append(marked, c.Name)
		}
	}
	if len(marked) > 0 {
		fmt.Fprintf(w, "decrypt: %s\n", strings.Join(marked, ", "))
	}
	fmt.Fprintf(w, "hash: %s\n", r.Hash)
}

// readFacts reads statement facts (JSON or YAML) from path, or stdin for "-".
func readFacts(cmd *cobra.Command, path string) (ir.StatementFacts, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return ir.StatementFacts{}, WrapExitError(ExitCommandError, "failed to read facts", err)
	}
	facts, err := ir.DecodeFacts(data)
	if err != nil {
		return ir.StatementFacts{}, WrapExitError(ExitCommandError, "invalid facts", err)
	}
	return facts, nil
}

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route <facts-file|->",
		Short: "Resolve the physical targets of a statement",
		Long: `Resolve the data nodes a statement must run on.

Facts are the parser's summary of a statement, as JSON or YAML:

  table: t_order
  sharding_values:
    - {column: user_id, value: 7}

Examples:
  sluice route --rules rules.yaml facts.yaml
  echo '{"table":"t_order"}' | sluice route --rules rules.yaml -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			facts, err := readFacts(cmd, args[0])
			if err != nil {
				return err
			}
			coord, err := rootOpts.coordinator(cmd)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			units, err := coord.Route(facts)
			if err != nil {
				return out.Error(err)
			}
			result := RouteResult{Table: facts.Table, Units: make([]string, len(units))}
			for i, u := range units {
				result.Units[i] = u.String()
			}
			return out.Success(result)
		},
	}
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <facts-file|->",
		Short: "Route and rewrite a statement",
		Long: `Produce the full execution plan of a statement: targets, rewritten
literals and result columns to decrypt. The hash identifies the plan and is
stable across runs.

Examples:
  sluice plan --rules rules.yaml insert.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			facts, err := readFacts(cmd, args[0])
			if err != nil {
				return err
			}
			coord, err := rootOpts.coordinator(cmd)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			plan, err := coord.Plan(facts)
			if err != nil {
				return out.Error(err)
			}
			hash, err := ir.PlanHash(plan)
			if err != nil {
				return out.Error(err)
			}
			return out.Success(PlanResult{Plan: plan, Hash: hash})
		},
	}
}
