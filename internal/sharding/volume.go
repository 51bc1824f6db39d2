package sharding

import (
	"sort"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// rangeSharding maps integer values into buckets [b(i), b(i+1)) over the
// boundary list bounds; bucket i routes to the i-th target in natural order.
// Values outside [b0, bn) are rejected rather than folded into an edge bucket.
type rangeSharding struct {
	base
	typ    string
	bounds []int64
}

func (a *rangeSharding) Type() string { return a.typ }

func (a *rangeSharding) Init(props algo.Props) error {
	switch a.typ {
	case "BOUNDARY_RANGE":
		return a.initBoundary(props)
	case "VOLUME_RANGE":
		return a.initVolume(props)
	}
	return ir.NewConfigError("", "unknown range algorithm %q", a.typ)
}

func (a *rangeSharding) initBoundary(props algo.Props) error {
	bounds, err := props.Int64List("sharding-ranges")
	if err != nil {
		return err
	}
	if len(bounds) < 2 {
		return ir.NewConfigError("sharding-ranges", "need at least two boundaries, got %d", len(bounds))
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return ir.NewConfigError("sharding-ranges", "boundaries must be strictly increasing: %d follows %d", bounds[i], bounds[i-1])
		}
	}
	a.bounds = bounds
	return nil
}

func (a *rangeSharding) initVolume(props algo.Props) error {
	lower, err := props.Int("range-lower")
	if err != nil {
		return err
	}
	upper, err := props.Int("range-upper")
	if err != nil {
		return err
	}
	volume, err := props.PositiveInt("sharding-volume")
	if err != nil {
		return err
	}
	if upper <= lower {
		return ir.NewConfigError("range-upper", "must exceed range-lower (%d <= %d)", upper, lower)
	}
	if (upper-lower)/volume > 1<<16 {
		return ir.NewConfigError("sharding-volume", "too many buckets for range [%d, %d)", lower, upper)
	}

	bounds := []int64{lower}
	for b := lower + volume; b < upper; b += volume {
		bounds = append(bounds, b)
	}
	a.bounds = append(bounds, upper)
	return nil
}

// bucket returns the bucket index holding n, or -1.
func (a *rangeSharding) bucket(n int64) int {
	if n < a.bounds[0] || n >= a.bounds[len(a.bounds)-1] {
		return -1
	}
	return sort.Search(len(a.bounds), func(i int) bool { return a.bounds[i] > n }) - 1
}

func (a *rangeSharding) outOfRange(column string, what string) error {
	e := ir.NewRoutingError(ir.ReasonValueOutOfRange, "%s is outside [%d, %d)", what, a.bounds[0], a.bounds[len(a.bounds)-1])
	e.Column = column
	e.Algorithm = a.typ
	return e
}

func (a *rangeSharding) targetAt(targets []string, column string, i int) (string, error) {
	sorted := naturalOrder(targets)
	if i >= len(sorted) {
		e := ir.NewRoutingError(ir.ReasonNoTarget, "bucket %d has no target (%d available)", i, len(sorted))
		e.Column = column
		return "", e
	}
	return sorted[i], nil
}

func (a *rangeSharding) RoutePrecise(targets []string, column string, value ir.IRValue) (string, error) {
	n, ok := ir.AsInt(value)
	if !ok {
		return "", invalidValue(a.typ, column, value, "an integer")
	}
	i := a.bucket(n)
	if i < 0 {
		text, _ := ir.Text(value)
		return "", a.outOfRange(column, "value "+text)
	}
	return a.targetAt(targets, column, i)
}

func (a *rangeSharding) RouteRange(targets []string, column string, r Range) ([]string, error) {
	lo := a.bounds[0]
	hi := a.bounds[len(a.bounds)-1] - 1
	if r.Lower != nil {
		n, ok := ir.AsInt(r.Lower)
		if !ok {
			return nil, invalidValue(a.typ, column, r.Lower, "an integer")
		}
		lo = max(lo, n)
	}
	if r.Upper != nil {
		n, ok := ir.AsInt(r.Upper)
		if !ok {
			return nil, invalidValue(a.typ, column, r.Upper, "an integer")
		}
		hi = min(hi, n)
	}
	if lo > hi {
		return nil, a.outOfRange(column, "range "+r.String())
	}

	first, last := a.bucket(lo), a.bucket(hi)
	picked := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		t, err := a.targetAt(targets, column, i)
		if err != nil {
			return nil, err
		}
		picked = append(picked, t)
	}
	return picked, nil
}
