package algo

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/roach88/sluice/internal/ir"
)

// Capability names an algorithm family.
type Capability string

// Algorithm is implemented by every registered algorithm.
// Init is called exactly once, before the instance is shared.
type Algorithm interface {
	Type() string
	Init(props Props) error
}

// Factory constructs an uninitialized algorithm.
type Factory func() Algorithm

// Provider describes one algorithm type a family offers.
type Provider struct {
	Type    string
	Aliases []string
	New     Factory
}

// Descriptor is an immutable (type, properties) pair identifying an
// algorithm configuration.
type Descriptor struct {
	typ   string
	props Props
}

// NewDescriptor creates a Descriptor.
func NewDescriptor(typ string, props Props) Descriptor {
	return Descriptor{typ: typ, props: props}
}

// Type returns the type name as configured.
func (d Descriptor) Type() string { return d.typ }

// Props returns the properties.
func (d Descriptor) Props() Props { return d.props }

// Fingerprint identifies the descriptor by content within a capability.
func (d Descriptor) Fingerprint(c Capability) (string, error) {
	return ir.DescriptorFingerprint(string(c), Fold(d.typ), d.props.Map())
}

// Fold normalizes a type name for case-insensitive lookup.
func Fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Registry maps capabilities and type names to factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[Capability]map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Capability]map[string]Provider)}
}

// Register adds providers under capability c. Registration is a set union:
// a name already present keeps its existing provider, so calling Register
// again with the same providers changes nothing.
func (r *Registry) Register(c Capability, providers ...Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.providers[c]
	if !ok {
		byName = make(map[string]Provider)
		r.providers[c] = byName
	}
	for _, p := range providers {
		for _, name := range append([]string{p.Type}, p.Aliases...) {
			key := Fold(name)
			if _, exists := byName[key]; !exists {
				byName[key] = p
			}
		}
	}
}

// NewInstance builds and initializes a fresh algorithm for d. Lookup of
// d.Type() is case-insensitive and exact. Every call returns a new instance.
func (r *Registry) NewInstance(c Capability, d Descriptor) (Algorithm, error) {
	r.mu.RLock()
	p, ok := r.providers[c][Fold(d.Type())]
	r.mu.RUnlock()

	if !ok {
		return nil, &ir.Error{
			Kind:       ir.KindUnknownAlgorithmType,
			Message:    "no algorithm registered for type " + strings.TrimSpace(d.Type()),
			Capability: string(c),
			Algorithm:  d.Type(),
		}
	}

	alg := p.New()
	if err := alg.Init(d.Props()); err != nil {
		return nil, configError(c, p.Type, err)
	}
	return alg, nil
}

// Get is NewInstance under the name Cache uses, so either can be passed
// wherever instances are looked up.
func (r *Registry) Get(c Capability, d Descriptor) (Algorithm, error) {
	return r.NewInstance(c, d)
}

// configError normalizes an Init failure into an ALGORITHM_CONFIGURATION
// error carrying the capability and algorithm type.
func configError(c Capability, typ string, err error) error {
	var e *ir.Error
	if errors.As(err, &e) && e.Kind == ir.KindAlgorithmConfiguration {
		cp := *e
		cp.Capability = string(c)
		cp.Algorithm = typ
		return &cp
	}
	return &ir.Error{
		Kind:       ir.KindAlgorithmConfiguration,
		Message:    "initialization failed",
		Capability: string(c),
		Algorithm:  typ,
		Err:        err,
	}
}

// Types returns the canonical type names registered under c, sorted.
func (r *Registry) Types(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, p := range r.providers[c] {
		if !seen[p.Type] {
			seen[p.Type] = true
			out = append(out, p.Type)
		}
	}
	slices.Sort(out)
	return out
}

// Capabilities returns the registered capabilities, sorted.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, 0, len(r.providers))
	for c := range r.providers {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
