package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sluice/internal/ir"
)

// Scenario defines a routing conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the rule file (YAML or CUE) the coordinator is built from.
	// Relative paths are resolved against the scenario's base path.
	Rules string `yaml:"rules"`

	// Steps run in order against one coordinator.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated over the complete trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one call into the coordinator.
type Step struct {
	// Op is one of route, write, plan, read.
	Op string `yaml:"op"`

	// Facts is the statement summary for route, write and plan.
	Facts *ir.StatementFacts `yaml:"facts,omitempty"`

	// Read is the result row for read.
	Read *ReadStep `yaml:"read,omitempty"`

	// Expect is checked when the step runs. If nil, the step only records
	// its outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ReadStep is a result row as the physical data source returned it.
type ReadStep struct {
	Table   string            `yaml:"table"`
	Columns []ir.ResultColumn `yaml:"columns"`
	Row     []any             `yaml:"row"`
}

// Expect specifies the outcome of a step. Only the fields given are checked.
type Expect struct {
	// Units are the route units in order, rendered "ds.table".
	Units []string `yaml:"units,omitempty"`

	// Columns are the physical columns of rewritten literals.
	Columns []string `yaml:"columns,omitempty"`

	// Values are the rewritten literal values, or the decrypted row.
	Values []any `yaml:"values,omitempty"`

	// Error is the expected error kind or routing reason.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, units_cover.
	Type string `yaml:"type"`

	// Op filters events by operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Table filters events by logical table (trace_contains, trace_count).
	Table string `yaml:"table,omitempty"`

	// Unit requires an event that reached this "ds.table" (trace_contains).
	Unit string `yaml:"unit,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Tables is the expected order of first appearance (trace_order).
	Tables []string `yaml:"tables,omitempty"`

	// Units is the exact set of units reached by all steps (units_cover).
	Units []string `yaml:"units,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertUnitsCover    = "units_cover"
)

// LoadScenario reads a scenario file, resolving its rule file relative to
// the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving its rule file
// relative to basePath. Unknown fields are rejected so typos surface.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) && basePath != "" {
		scenario.Rules = filepath.Join(basePath, scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rules == "" {
		return fmt.Errorf("rules is required")
	}
	if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
		return fmt.Errorf("rule file not found: %s", s.Rules)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpRoute, OpWrite, OpPlan:
			if step.Facts == nil {
				return fmt.Errorf("steps[%d]: facts is required for %s", i, step.Op)
			}
			if step.Read != nil {
				return fmt.Errorf("steps[%d]: read is only valid for op read", i)
			}
		case OpRead:
			if step.Read == nil {
				return fmt.Errorf("steps[%d]: read is required for op read", i)
			}
			if step.Read.Table == "" {
				return fmt.Errorf("steps[%d].read: table is required", i)
			}
			if len(step.Read.Columns) != len(step.Read.Row) {
				return fmt.Errorf("steps[%d].read: %d columns but %d row values", i, len(step.Read.Columns), len(step.Read.Row))
			}
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" && a.Table == "" && a.Unit == "" {
			return fmt.Errorf("assertions[%d]: one of op, table or unit is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Tables) == 0 {
			return fmt.Errorf("assertions[%d]: tables list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertUnitsCover:
		if len(a.Units) == 0 {
			return fmt.Errorf("assertions[%d]: units list is required for units_cover", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
