package sharding

import (
	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// mod routes an integer value to the target whose trailing number equals
// value mod sharding-count.
type mod struct {
	base
	count int64
}

func (*mod) Type() string { return "MOD" }

func (a *mod) Init(props algo.Props) error {
	n, err := props.PositiveInt("sharding-count")
	if err != nil {
		return err
	}
	a.count = n
	return nil
}

func (a *mod) RoutePrecise(targets []string, column string, value ir.IRValue) (string, error) {
	n, ok := ir.AsInt(value)
	if !ok {
		return "", invalidValue(a.Type(), column, value, "an integer")
	}
	return a.target(targets, column, n)
}

func (a *mod) target(targets []string, column string, n int64) (string, error) {
	rem := ((n % a.count) + a.count) % a.count
	for _, t := range naturalOrder(targets) {
		if suffix, ok := suffixNumber(t); ok && suffix == rem {
			return t, nil
		}
	}
	e := ir.NewRoutingError(ir.ReasonNoTarget, "no target ends with %d", rem)
	e.Column = column
	return "", e
}

// RouteRange enumerates the remainders a bounded range covers and
// broadcasts once the range spans a full cycle.
func (a *mod) RouteRange(targets []string, column string, r Range) ([]string, error) {
	if r.Lower == nil || r.Upper == nil {
		return clone(targets), nil
	}
	lo, ok := ir.AsInt(r.Lower)
	if !ok {
		return nil, invalidValue(a.Type(), column, r.Lower, "an integer")
	}
	hi, ok := ir.AsInt(r.Upper)
	if !ok {
		return nil, invalidValue(a.Type(), column, r.Upper, "an integer")
	}
	if hi < lo {
		return nil, nil
	}
	if hi-lo < 0 || hi-lo >= a.count-1 {
		return clone(targets), nil
	}
	picked := make([]string, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		t, err := a.target(targets, column, v)
		if err != nil {
			return nil, err
		}
		picked = append(picked, t)
	}
	return picked, nil
}
