package sharding

import (
	"fmt"

	"github.com/roach88/sluice/internal/algo"
)

// Register adds the built-in sharding algorithms to r.
func Register(r *algo.Registry) {
	r.Register(Capability,
		algo.Provider{Type: "HASH_MOD", New: func() algo.Algorithm { return &hashMod{} }},
		algo.Provider{Type: "MOD", New: func() algo.Algorithm { return &mod{} }},
		algo.Provider{Type: "BOUNDARY_RANGE", New: func() algo.Algorithm { return &rangeSharding{typ: "BOUNDARY_RANGE"} }},
		algo.Provider{Type: "VOLUME_RANGE", New: func() algo.Algorithm { return &rangeSharding{typ: "VOLUME_RANGE"} }},
		algo.Provider{Type: "INLINE", New: func() algo.Algorithm { return &inline{} }},
		algo.Provider{Type: "COMPLEX_INLINE", New: func() algo.Algorithm { return &complexInline{} }},
		algo.Provider{Type: "HINT_INLINE", New: func() algo.Algorithm { return &hintInline{} }},
	)
}

// Lookup is the subset of algo.Cache and algo.Registry used to obtain
// instances.
type Lookup interface {
	Get(c algo.Capability, d algo.Descriptor) (algo.Algorithm, error)
}

// New obtains a sharding algorithm for d from src.
func New(src Lookup, d algo.Descriptor) (Algorithm, error) {
	a, err := src.Get(Capability, d)
	if err != nil {
		return nil, err
	}
	alg, ok := a.(Algorithm)
	if !ok {
		return nil, fmt.Errorf("sharding: %s is registered but is not a sharding algorithm (%T)", d.Type(), a)
	}
	return alg, nil
}
