package algo

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/sluice/internal/ir"
)

// Props is an immutable, ordered set of string properties.
type Props struct {
	keys   []string
	values map[string]string
}

// NewProps builds Props from alternating keys and values, keeping order.
// A later duplicate key overwrites the value but keeps the first position.
// A trailing key without a value is ignored.
func NewProps(kv ...string) Props {
	p := Props{values: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		if _, ok := p.values[kv[i]]; !ok {
			p.keys = append(p.keys, kv[i])
		}
		p.values[kv[i]] = kv[i+1]
	}
	return p
}

// PropsFromMap builds Props from a map. Keys are sorted so the result does
// not depend on map iteration order.
func PropsFromMap(m map[string]string) Props {
	p := Props{keys: make([]string, 0, len(m)), values: make(map[string]string, len(m))}
	for k, v := range m {
		p.keys = append(p.keys, k)
		p.values[k] = v
	}
	slices.Sort(p.keys)
	return p
}

// Get returns the value for key.
func (p Props) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in order.
func (p Props) Keys() []string {
	return slices.Clone(p.keys)
}

// Len returns the number of properties.
func (p Props) Len() int {
	return len(p.keys)
}

// Map returns a copy of the properties as a map.
func (p Props) Map() map[string]string {
	m := make(map[string]string, len(p.values))
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// With returns a copy of p with key set to value.
func (p Props) With(key, value string) Props {
	kv := make([]string, 0, 2*len(p.keys)+2)
	for _, k := range p.keys {
		kv = append(kv, k, p.values[k])
	}
	return NewProps(append(kv, key, value)...)
}

// Require returns the trimmed value of key or a configuration error naming it.
func (p Props) Require(key string) (string, error) {
	v, ok := p.values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", ir.NewConfigError(key, "property is required")
	}
	return strings.TrimSpace(v), nil
}

// Int parses a required integer property.
func (p Props) Int(key string) (int64, error) {
	s, err := p.Require(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ir.NewConfigError(key, "%q is not an integer", s)
	}
	return n, nil
}

// PositiveInt parses a required integer property that must be > 0.
func (p Props) PositiveInt(key string) (int64, error) {
	n, err := p.Int(key)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, ir.NewConfigError(key, "must be positive, got %d", n)
	}
	return n, nil
}

// IntOr parses an optional integer property, returning def when unset.
func (p Props) IntOr(key string, def int64) (int64, error) {
	if v, ok := p.values[key]; !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	return p.Int(key)
}

// Bool parses an optional boolean property, returning def when unset.
func (p Props) Bool(key string, def bool) (bool, error) {
	v, ok := p.values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, ir.NewConfigError(key, "%q is not a boolean", v)
	}
	return b, nil
}

// StringList parses a required comma-separated list, dropping empty items.
func (p Props) StringList(key string) ([]string, error) {
	s, err := p.Require(key)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, ir.NewConfigError(key, "list is empty")
	}
	return out, nil
}

// Int64List parses a required comma-separated list of integers.
func (p Props) Int64List(key string) ([]int64, error) {
	items, err := p.StringList(key)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(items))
	for i, item := range items {
		n, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, ir.NewConfigError(key, "item %d (%q) is not an integer", i, item)
		}
		out[i] = n
	}
	return out, nil
}
