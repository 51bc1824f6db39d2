package rule

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk rule set.
type Config struct {
	DataSources       []string                      `yaml:"data-sources,omitempty" json:"data-sources,omitempty"`
	DefaultDataSource string                        `yaml:"default-data-source,omitempty" json:"default-data-source,omitempty"`
	SingleTables      map[string]string             `yaml:"single-tables,omitempty" json:"single-tables,omitempty"`
	Tables            map[string]TableConfig        `yaml:"tables,omitempty" json:"tables,omitempty"`
	Algorithms        map[string]AlgorithmConfig    `yaml:"algorithms,omitempty" json:"algorithms,omitempty"`
	Encryptors        map[string]AlgorithmConfig    `yaml:"encryptors,omitempty" json:"encryptors,omitempty"`
	Encrypt           map[string]EncryptTableConfig `yaml:"encrypt,omitempty" json:"encrypt,omitempty"`
}

// TableConfig is one sharded logical table. ActualDataNodes holds inline
// expressions such as ds_${0..1}.t_order_${0..1}; when empty the table lives
// under its own name on every entry of DataSources.
type TableConfig struct {
	ActualDataNodes  List            `yaml:"actual-data-nodes,omitempty" json:"actual-data-nodes,omitempty"`
	DatabaseStrategy *StrategyConfig `yaml:"database-strategy,omitempty" json:"database-strategy,omitempty"`
	TableStrategy    *StrategyConfig `yaml:"table-strategy,omitempty" json:"table-strategy,omitempty"`
}

// StrategyConfig names the sharding columns and the algorithm that routes on
// them. Hint strategies set no columns.
type StrategyConfig struct {
	ShardingColumn  string `yaml:"sharding-column,omitempty" json:"sharding-column,omitempty"`
	ShardingColumns List   `yaml:"sharding-columns,omitempty" json:"sharding-columns,omitempty"`
	Algorithm       string `yaml:"algorithm" json:"algorithm"`
}

// Columns returns the configured sharding columns.
func (s *StrategyConfig) Columns() []string {
	if s.ShardingColumn != "" {
		return append([]string{s.ShardingColumn}, s.ShardingColumns...)
	}
	return s.ShardingColumns
}

// AlgorithmConfig is a named algorithm descriptor.
type AlgorithmConfig struct {
	Type  string `yaml:"type" json:"type"`
	Props Props  `yaml:"props,omitempty" json:"props,omitempty"`
}

// EncryptTableConfig lists the encrypted columns of a table.
type EncryptTableConfig struct {
	Columns map[string]EncryptColumnConfig `yaml:"columns" json:"columns"`
}

// EncryptColumnConfig binds a column to a named encryptor.
type EncryptColumnConfig struct {
	CipherColumn string `yaml:"cipher-column,omitempty" json:"cipher-column,omitempty"`
	Encryptor    string `yaml:"encryptor" json:"encryptor"`
}

// List accepts either a scalar comma-separated string or a sequence.
type List []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *List) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = splitList(node.Value)
		return nil
	case yaml.SequenceNode:
		out := make(List, 0, len(node.Content))
		for _, n := range node.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be scalars", n.Line)
			}
			out = append(out, strings.TrimSpace(n.Value))
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list", node.Line)
	}
}

// splitList splits on commas outside ${...} groups.
func splitList(s string) List {
	var out List
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

// Props holds algorithm properties. Values may be written as strings,
// numbers, booleans or lists; they are normalized to the string form the
// algorithms parse, with lists joined by commas.
type Props map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Props) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Props, len(raw))
	for k, v := range raw {
		s, err := propString(v)
		if err != nil {
			return fmt.Errorf("prop %q: %w", k, err)
		}
		out[k] = s
	}
	*p = out
	return nil
}

func propString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			s, err := propString(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
