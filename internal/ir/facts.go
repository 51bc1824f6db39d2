package ir

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// rawFacts mirrors StatementFacts with untyped values so yaml.v3 can decode
// JSON and YAML documents alike before values are narrowed to IRValue.
type rawFacts struct {
	Table          string `yaml:"table"`
	ShardingValues []struct {
		Column string    `yaml:"column"`
		Role   ValueRole `yaml:"role"`
		Value  any       `yaml:"value"`
	} `yaml:"sharding_values"`
	EncryptedLiterals []struct {
		Column      string `yaml:"column"`
		Value       any    `yaml:"value"`
		Placeholder *int   `yaml:"placeholder"`
	} `yaml:"encrypted_literals"`
	ResultColumns []ResultColumn `yaml:"result_columns"`
	Hints         struct {
		Database []any `yaml:"database"`
		Table    []any `yaml:"table"`
	} `yaml:"hints"`
}

// DecodeFacts parses statement facts from JSON or YAML. Unknown fields are
// rejected so typos in hand-written fixtures surface immediately.
func DecodeFacts(data []byte) (StatementFacts, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawFacts
	if err := dec.Decode(&raw); err != nil {
		return StatementFacts{}, fmt.Errorf("decode facts: %w", err)
	}
	return raw.facts()
}

// UnmarshalYAML lets StatementFacts appear inline in YAML documents.
func (f *StatementFacts) UnmarshalYAML(node *yaml.Node) error {
	var raw rawFacts
	if err := node.Decode(&raw); err != nil {
		return err
	}
	facts, err := raw.facts()
	if err != nil {
		return err
	}
	*f = facts
	return nil
}

func (r rawFacts) facts() (StatementFacts, error) {
	if r.Table == "" {
		return StatementFacts{}, fmt.Errorf("facts: table is required")
	}
	out := StatementFacts{Table: r.Table, ResultColumns: r.ResultColumns}

	for i, sv := range r.ShardingValues {
		v, err := FromAny(sv.Value)
		if err != nil {
			return StatementFacts{}, fmt.Errorf("sharding_values[%d]: %w", i, err)
		}
		role := sv.Role
		if role == "" {
			role = RoleEqual
		}
		switch role {
		case RoleEqual, RoleLower, RoleUpper:
		default:
			return StatementFacts{}, fmt.Errorf("sharding_values[%d]: unknown role %q", i, role)
		}
		out.ShardingValues = append(out.ShardingValues, ShardingValue{Column: sv.Column, Role: role, Value: v})
	}

	for i, lit := range r.EncryptedLiterals {
		v, err := FromAny(lit.Value)
		if err != nil {
			return StatementFacts{}, fmt.Errorf("encrypted_literals[%d]: %w", i, err)
		}
		placeholder := -1
		if lit.Placeholder != nil {
			placeholder = *lit.Placeholder
		}
		out.EncryptedLiterals = append(out.EncryptedLiterals, EncryptedLiteral{Column: lit.Column, Value: v, Placeholder: placeholder})
	}

	var err error
	if out.Hints.Database, err = fromAnyList(r.Hints.Database); err != nil {
		return StatementFacts{}, fmt.Errorf("hints.database: %w", err)
	}
	if out.Hints.Table, err = fromAnyList(r.Hints.Table); err != nil {
		return StatementFacts{}, fmt.Errorf("hints.table: %w", err)
	}
	return out, nil
}

func fromAnyList(in []any) ([]IRValue, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]IRValue, len(in))
	for i, v := range in {
		val, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}
