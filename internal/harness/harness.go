package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/sluice/internal/coordinator"
	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/rule"
)

// Harness executes scenario steps against one coordinator.
type Harness struct {
	coord *coordinator.Coordinator
}

// Run executes a scenario against a coordinator built from its rule file.
//
// An error is returned only when the scenario cannot run at all; failed
// expectations and assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	coord, err := rule.BuildFile(scenario.Rules,
		coordinator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinator from %s: %w", scenario.Rules, err)
	}
	return RunWith(coord, scenario)
}

// RunWith executes a scenario against coord, ignoring the scenario's rule
// file.
func RunWith(coord *coordinator.Coordinator, scenario *Scenario) (*Result, error) {
	h := &Harness{coord: coord}
	result := NewResult()

	for i, step := range scenario.Steps {
		event, err := h.execute(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.AddTrace(event)
		for _, msg := range checkStep(i, step.Expect, event) {
			result.AddError(msg)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. Coordinator failures are recorded on the event;
// the returned error is reserved for malformed steps.
func (h *Harness) execute(step Step) (TraceEvent, error) {
	var (
		event = TraceEvent{Op: step.Op}
		err   error
	)

	switch step.Op {
	case OpRoute:
		event.Table = step.Facts.Table
		var units []ir.RouteUnit
		units, err = h.coord.Route(*step.Facts)
		event.Units = unitStrings(units)

	case OpWrite:
		event.Table = step.Facts.Table
		var lits []ir.RewrittenLiteral
		lits, err = h.coord.RewriteForWrite(*step.Facts)
		event.Columns, event.Values = literalColumns(lits)

	case OpPlan:
		event.Table = step.Facts.Table
		var plan *ir.ExecutionPlan
		plan, err = h.coord.Plan(*step.Facts)
		if plan != nil {
			event.Units = unitStrings(plan.Units)
			event.Columns, event.Values = literalColumns(plan.Literals)
		}

	case OpRead:
		event.Table = step.Read.Table
		row := make([]ir.IRValue, len(step.Read.Row))
		for i, v := range step.Read.Row {
			if row[i], err = ir.FromAny(v); err != nil {
				return TraceEvent{}, fmt.Errorf("read.row[%d]: %w", i, err)
			}
		}
		event.Columns = make([]string, len(step.Read.Columns))
		for i, c := range step.Read.Columns {
			event.Columns[i] = c.Name
		}
		event.Values, err = h.coord.RewriteForRead(step.Read.Table, step.Read.Columns, row)

	default:
		return TraceEvent{}, fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil {
		event.Error = ErrorLabel(err)
		event.kind = string(ir.KindOf(err))
		event.Message = err.Error()
		event.Units, event.Columns, event.Values = nil, nil, nil
	}
	return event, nil
}

// ErrorLabel names err for traces: the routing reason when there is one,
// else the error kind, else "ERROR".
func ErrorLabel(err error) string {
	var e *ir.Error
	if !errors.As(err, &e) {
		return "ERROR"
	}
	if e.Reason != "" {
		return e.Reason
	}
	return string(e.Kind)
}

// checkStep compares an executed step with its expect clause. A step
// without an expect clause must not fail.
func checkStep(index int, expect *Expect, event TraceEvent) []string {
	prefix := fmt.Sprintf("steps[%d] (%s %s)", index, event.Op, event.Table)
	if expect == nil {
		if event.Error != "" {
			return []string{fmt.Sprintf("%s: unexpected error: %s", prefix, event.Message)}
		}
		return nil
	}

	var msgs []string
	if expect.Error != "" {
		if !errorMatches(expect.Error, event) {
			got := "no error"
			if event.Error != "" {
				got = event.Message
			}
			msgs = append(msgs, fmt.Sprintf("%s: expected error %s, got %s", prefix, expect.Error, got))
		}
		return msgs
	}
	if event.Error != "" {
		return []string{fmt.Sprintf("%s: unexpected error: %s", prefix, event.Message)}
	}

	if expect.Units != nil && !slices.Equal(expect.Units, event.Units) {
		msgs = append(msgs, fmt.Sprintf("%s: expected units %v, got %v", prefix, expect.Units, event.Units))
	}
	if expect.Columns != nil && !slices.Equal(expect.Columns, event.Columns) {
		msgs = append(msgs, fmt.Sprintf("%s: expected columns %v, got %v", prefix, expect.Columns, event.Columns))
	}
	if expect.Values != nil {
		if msg := compareValues(expect.Values, event.Values); msg != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", prefix, msg))
		}
	}
	return msgs
}

// errorMatches accepts either the reason or the kind of a routing error.
func errorMatches(want string, event TraceEvent) bool {
	if event.Error == "" {
		return false
	}
	return strings.EqualFold(want, event.Error) || strings.EqualFold(want, event.kind)
}

func compareValues(expected []any, actual []ir.IRValue) string {
	want := make(ir.IRArray, len(expected))
	for i, v := range expected {
		val, err := ir.FromAny(v)
		if err != nil {
			return fmt.Sprintf("expect.values[%d]: %v", i, err)
		}
		want[i] = val
	}
	got := make(ir.IRArray, len(actual))
	copy(got, actual)

	wantJSON, err := ir.MarshalIRValue(want)
	if err != nil {
		return fmt.Sprintf("expect.values: %v", err)
	}
	gotJSON, err := ir.MarshalIRValue(got)
	if err != nil {
		return fmt.Sprintf("values: %v", err)
	}
	if string(wantJSON) != string(gotJSON) {
		return fmt.Sprintf("expected values %s, got %s", wantJSON, gotJSON)
	}
	return ""
}

func unitStrings(units []ir.RouteUnit) []string {
	if units == nil {
		return nil
	}
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.String()
	}
	return out
}

func literalColumns(lits []ir.RewrittenLiteral) ([]string, []ir.IRValue) {
	if lits == nil {
		return nil, nil
	}
	cols := make([]string, len(lits))
	vals := make([]ir.IRValue, len(lits))
	for i, l := range lits {
		cols[i] = l.Column
		vals[i] = l.Value
	}
	return cols, vals
}
