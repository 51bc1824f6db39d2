package sharding

import (
	"fmt"
	"strings"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// Capability is the registry capability for sharding algorithms.
const Capability algo.Capability = "sharding"

// Algorithm is the sealed base of the three variants.
type Algorithm interface {
	algo.Algorithm
	sealed()
}

// Standard routes on a single sharding column.
type Standard interface {
	Algorithm
	// RoutePrecise maps one value to exactly one target.
	RoutePrecise(targets []string, column string, value ir.IRValue) (string, error)
	// RouteRange maps a closed range to the targets that may hold it.
	RouteRange(targets []string, column string, r Range) ([]string, error)
}

// Complex routes on several sharding columns together.
type Complex interface {
	Algorithm
	Columns() []string
	RouteComplex(targets []string, columns []ColumnValues) ([]string, error)
}

// Hint routes on out-of-band values.
type Hint interface {
	Algorithm
	RouteHint(targets []string, value ir.IRValue) (string, error)
}

// base seals the variants to this package.
type base struct{}

func (base) sealed() {}

// Range is a closed interval. A nil bound is unbounded.
type Range struct {
	Lower ir.IRValue
	Upper ir.IRValue
}

// String renders the range for error messages.
func (r Range) String() string {
	lo, hi := "-inf", "+inf"
	if r.Lower != nil {
		lo, _ = ir.Text(r.Lower)
	}
	if r.Upper != nil {
		hi, _ = ir.Text(r.Upper)
	}
	return "[" + lo + ", " + hi + "]"
}

// ColumnValues holds the constraints gathered for one column.
type ColumnValues struct {
	Column string
	Values []ir.IRValue
	Range  *Range
}

func (c ColumnValues) empty() bool {
	return len(c.Values) == 0 && c.Range == nil
}

// Condition is the routing input for one strategy.
type Condition struct {
	Columns []ColumnValues
	Hints   []ir.IRValue
}

// Route resolves cond against targets using alg. The result is a subset of
// targets in targets' order. Every target an algorithm names must be one of
// targets.
func Route(alg Algorithm, targets []string, cond Condition) ([]string, error) {
	if len(targets) == 0 {
		return nil, ir.NewRoutingError(ir.ReasonNoTarget, "no available targets")
	}

	switch a := alg.(type) {
	case Standard:
		return routeStandard(a, targets, cond)
	case Complex:
		picked, err := a.RouteComplex(targets, cond.Columns)
		if err != nil {
			return nil, err
		}
		return restrict(targets, picked)
	case Hint:
		if len(cond.Hints) == 0 {
			return nil, ir.NewRoutingError(ir.ReasonMissingHint, "algorithm %s requires a hint value", a.Type())
		}
		picked := make([]string, 0, len(cond.Hints))
		for _, v := range cond.Hints {
			t, err := a.RouteHint(targets, v)
			if err != nil {
				return nil, err
			}
			picked = append(picked, t)
		}
		return restrict(targets, picked)
	default:
		return nil, fmt.Errorf("sharding: unsupported algorithm %T", alg)
	}
}

func routeStandard(a Standard, targets []string, cond Condition) ([]string, error) {
	var col *ColumnValues
	for i := range cond.Columns {
		if !cond.Columns[i].empty() {
			col = &cond.Columns[i]
			break
		}
	}
	if col == nil {
		return clone(targets), nil
	}

	if len(col.Values) == 0 {
		picked, err := a.RouteRange(targets, col.Column, *col.Range)
		if err != nil {
			return nil, err
		}
		return restrict(targets, picked)
	}

	picked := make([]string, 0, len(col.Values))
	for _, v := range col.Values {
		t, err := a.RoutePrecise(targets, col.Column, v)
		if err != nil {
			return nil, err
		}
		picked = append(picked, t)
	}
	return restrict(targets, picked)
}

// restrict returns the members of targets named in picked, in targets'
// order, failing if picked names anything outside targets.
func restrict(targets, picked []string) ([]string, error) {
	want := make(map[string]bool, len(picked))
	for _, p := range picked {
		want[p] = true
	}
	out := make([]string, 0, len(want))
	for _, t := range targets {
		if want[t] {
			out = append(out, t)
			delete(want, t)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, p := range picked {
			if want[p] {
				missing = append(missing, p)
				delete(want, p)
			}
		}
		return nil, ir.NewRoutingError(ir.ReasonNoTarget, "resolved targets %s are not available", strings.Join(missing, ", "))
	}
	return out, nil
}

func clone(targets []string) []string {
	return append([]string(nil), targets...)
}

func invalidValue(typ, column string, v ir.IRValue, want string) error {
	e := ir.NewRoutingError(ir.ReasonInvalidShardingValue, "%s needs %s, got %T", typ, want, v)
	e.Column = column
	e.Algorithm = typ
	return e
}
