package rule

import (
	"fmt"
	"sort"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/coordinator"
	"github.com/roach88/sluice/internal/encrypt"
	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/sharding"
)

// Lookup obtains initialized algorithm instances; *algo.Cache and
// *algo.Registry both satisfy it.
type Lookup interface {
	Get(c algo.Capability, d algo.Descriptor) (algo.Algorithm, error)
}

// Descriptor converts a named algorithm config into a registry descriptor.
func (a AlgorithmConfig) Descriptor() algo.Descriptor {
	return algo.NewDescriptor(a.Type, algo.PropsFromMap(a.Props))
}

// CoordinatorConfig resolves every algorithm reference in cfg and expands
// data nodes. Algorithm failures keep their ir.Error kind.
func CoordinatorConfig(src Lookup, cfg *Config) (coordinator.Config, error) {
	out := coordinator.Config{
		SingleTables:      cfg.SingleTables,
		DefaultDataSource: cfg.DefaultDataSource,
	}

	shardingAlgs := make(map[string]sharding.Algorithm)
	strategy := func(table string, s *StrategyConfig) (*coordinator.Strategy, error) {
		if s == nil {
			return nil, nil
		}
		alg, ok := shardingAlgs[s.Algorithm]
		if !ok {
			ac, found := cfg.Algorithms[s.Algorithm]
			if !found {
				return nil, fmt.Errorf("table %s: sharding algorithm %q is not defined", table, s.Algorithm)
			}
			var err error
			alg, err = sharding.New(src, ac.Descriptor())
			if err != nil {
				return nil, fmt.Errorf("table %s: algorithm %s: %w", table, s.Algorithm, ir.Annotate(err, table, "", s.Algorithm))
			}
			shardingAlgs[s.Algorithm] = alg
		}
		columns := s.Columns()
		if c, ok := alg.(sharding.Complex); ok && len(columns) == 0 {
			columns = c.Columns()
		}
		return &coordinator.Strategy{Columns: columns, AlgorithmName: s.Algorithm, Algorithm: alg}, nil
	}

	for _, name := range sortedKeys(cfg.Tables) {
		tc := cfg.Tables[name]
		rule := coordinator.TableRule{LogicTable: name}

		if len(tc.ActualDataNodes) > 0 {
			nodes, err := ExpandDataNodes(tc.ActualDataNodes)
			if err != nil {
				return coordinator.Config{}, fmt.Errorf("table %s: %w", name, err)
			}
			rule.DataNodes = nodes
		} else {
			for _, ds := range cfg.DataSources {
				rule.DataNodes = append(rule.DataNodes, ir.DataNode{DataSource: ds, Table: name})
			}
		}

		var err error
		if rule.DatabaseStrategy, err = strategy(name, tc.DatabaseStrategy); err != nil {
			return coordinator.Config{}, err
		}
		if rule.TableStrategy, err = strategy(name, tc.TableStrategy); err != nil {
			return coordinator.Config{}, err
		}
		out.Tables = append(out.Tables, rule)
	}

	encryptors := make(map[string]encrypt.Algorithm)
	for _, table := range sortedKeys(cfg.Encrypt) {
		et := coordinator.EncryptTable{Name: table}
		columns := cfg.Encrypt[table].Columns
		for _, column := range sortedKeys(columns) {
			cc := columns[column]
			alg, ok := encryptors[cc.Encryptor]
			if !ok {
				ac, found := cfg.Encryptors[cc.Encryptor]
				if !found {
					return coordinator.Config{}, fmt.Errorf("%s.%s: encryptor %q is not defined", table, column, cc.Encryptor)
				}
				var err error
				alg, err = encrypt.New(src, ac.Descriptor())
				if err != nil {
					return coordinator.Config{}, fmt.Errorf("%s.%s: encryptor %s: %w", table, column, cc.Encryptor, ir.Annotate(err, table, column, cc.Encryptor))
				}
				encryptors[cc.Encryptor] = alg
			}
			et.Columns = append(et.Columns, coordinator.EncryptColumn{
				Name:          column,
				CipherColumn:  cc.CipherColumn,
				AlgorithmName: cc.Encryptor,
				Algorithm:     alg,
			})
		}
		out.Encrypt = append(out.Encrypt, et)
	}
	return out, nil
}

// Build assembles a coordinator from cfg.
func Build(src Lookup, cfg *Config, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	cc, err := CoordinatorConfig(src, cfg)
	if err != nil {
		return nil, err
	}
	return coordinator.New(cc, opts...)
}

// BuiltinRegistry returns a registry holding every built-in sharding and
// encryption algorithm.
func BuiltinRegistry() *algo.Registry {
	r := algo.NewRegistry()
	sharding.Register(r)
	encrypt.Register(r)
	return r
}

// BuildFile loads a rule file and assembles a coordinator over a fresh
// instance cache of the built-in algorithms.
func BuildFile(path string, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cache, err := algo.NewCache(BuiltinRegistry(), algo.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return Build(cache, cfg, opts...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
