package sharding

import (
	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// hashMod routes hash(value) mod |targets| onto the target at that ordinal.
type hashMod struct {
	base
}

func (*hashMod) Type() string { return "HASH_MOD" }

func (*hashMod) Init(algo.Props) error { return nil }

func (a *hashMod) RoutePrecise(targets []string, column string, value ir.IRValue) (string, error) {
	h, err := ir.ShardingHash(value)
	if err != nil {
		return "", invalidValue(a.Type(), column, value, "a hashable value")
	}
	sorted := naturalOrder(targets)
	return sorted[h%uint32(len(sorted))], nil
}

// RouteRange broadcasts: hashing destroys ordering.
func (*hashMod) RouteRange(targets []string, _ string, _ Range) ([]string, error) {
	return clone(targets), nil
}
