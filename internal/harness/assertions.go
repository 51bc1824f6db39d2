package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.Table)
		if len(event.Units) > 0 {
			fmt.Fprintf(&buf, " -> %s", strings.Join(event.Units, ", "))
		}
		if event.Error != "" {
			fmt.Fprintf(&buf, " !%s", event.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// matches reports whether event satisfies the op, table and unit filters of
// assertion. Empty filters match anything.
func matches(event TraceEvent, assertion Assertion) bool {
	if assertion.Op != "" && event.Op != assertion.Op {
		return false
	}
	if assertion.Table != "" && !strings.EqualFold(event.Table, assertion.Table) {
		return false
	}
	if assertion.Unit != "" && !slices.Contains(event.Units, assertion.Unit) {
		return false
	}
	return true
}

func describe(assertion Assertion) string {
	var parts []string
	if assertion.Op != "" {
		parts = append(parts, "op "+assertion.Op)
	}
	if assertion.Table != "" {
		parts = append(parts, "table "+assertion.Table)
	}
	if assertion.Unit != "" {
		parts = append(parts, "unit "+assertion.Unit)
	}
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, ", ")
}

// assertTraceContains checks that some event matches the filters.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that tables first appear in the given order.
// Tables need not be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		key := strings.ToLower(event.Table)
		if positions[key] == 0 {
			positions[key] = i + 1
		}
	}

	for _, table := range assertion.Tables {
		if positions[strings.ToLower(table)] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all tables present: %v", assertion.Tables),
				Actual:   fmt.Sprintf("missing table: %s", table),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Tables); i++ {
		prev, curr := assertion.Tables[i-1], assertion.Tables[i]
		pp, cp := positions[strings.ToLower(prev)], positions[strings.ToLower(curr)]
		if pp >= cp {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("tables in order: %v", assertion.Tables),
				Actual:   fmt.Sprintf("%s (pos %d) should be before %s (pos %d)", prev, pp, curr, cp),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match the filters.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describe(assertion)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertUnitsCover checks that the union of reached units is exactly Units.
func assertUnitsCover(trace []TraceEvent, assertion Assertion) error {
	seen := make(map[string]bool)
	for _, event := range trace {
		for _, u := range event.Units {
			seen[u] = true
		}
	}
	got := make([]string, 0, len(seen))
	for u := range seen {
		got = append(got, u)
	}
	slices.Sort(got)

	want := slices.Clone(assertion.Units)
	slices.Sort(want)
	want = slices.Compact(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertUnitsCover,
			Expected: fmt.Sprintf("units %v", want),
			Actual:   fmt.Sprintf("units %v", got),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and returns
// a message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertUnitsCover:
			err = assertUnitsCover(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
