package coordinator

import (
	"fmt"
	"strings"

	"github.com/roach88/sluice/internal/encrypt"
	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/sharding"
)

// Strategy binds sharding columns to an algorithm.
type Strategy struct {
	Columns       []string
	AlgorithmName string
	Algorithm     sharding.Algorithm
}

// TableRule describes one sharded logical table.
type TableRule struct {
	LogicTable       string
	DataNodes        []ir.DataNode
	DatabaseStrategy *Strategy
	TableStrategy    *Strategy
}

// EncryptColumn configures one encrypted column. CipherColumn, when set, is
// the physical column holding ciphertext.
type EncryptColumn struct {
	Name          string
	CipherColumn  string
	AlgorithmName string
	Algorithm     encrypt.Algorithm
}

// EncryptTable lists the encrypted columns of a logical table.
type EncryptTable struct {
	Name    string
	Columns []EncryptColumn
}

// Config is the complete rule set a Coordinator serves.
type Config struct {
	Tables  []TableRule
	Encrypt []EncryptTable
	// SingleTables maps unsharded tables to their data source.
	SingleTables map[string]string
	// DefaultDataSource receives unsharded tables not in SingleTables.
	DefaultDataSource string
}

// fold normalizes SQL identifiers, which match case-insensitively.
func fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// tableRoute is a TableRule with its data nodes indexed.
type tableRoute struct {
	rule        TableRule
	dataSources []string
	tables      map[string][]string
}

func newTableRoute(rule TableRule) (*tableRoute, error) {
	if len(rule.DataNodes) == 0 {
		return nil, fmt.Errorf("table %s: no data nodes", rule.LogicTable)
	}
	tr := &tableRoute{rule: rule, tables: make(map[string][]string)}
	seen := make(map[ir.DataNode]bool, len(rule.DataNodes))
	for _, n := range rule.DataNodes {
		if n.DataSource == "" || n.Table == "" {
			return nil, fmt.Errorf("table %s: incomplete data node %q", rule.LogicTable, n.String())
		}
		if seen[n] {
			return nil, fmt.Errorf("table %s: duplicate data node %s", rule.LogicTable, n)
		}
		seen[n] = true
		if _, ok := tr.tables[n.DataSource]; !ok {
			tr.dataSources = append(tr.dataSources, n.DataSource)
		}
		tr.tables[n.DataSource] = append(tr.tables[n.DataSource], n.Table)
	}
	for level, s := range map[string]*Strategy{"database": rule.DatabaseStrategy, "table": rule.TableStrategy} {
		if s == nil {
			continue
		}
		if s.Algorithm == nil {
			return nil, fmt.Errorf("table %s: %s strategy %q has no algorithm", rule.LogicTable, level, s.AlgorithmName)
		}
		if _, hint := s.Algorithm.(sharding.Hint); !hint && len(s.Columns) == 0 {
			return nil, fmt.Errorf("table %s: %s strategy %q has no sharding columns", rule.LogicTable, level, s.AlgorithmName)
		}
	}
	return tr, nil
}

// condition gathers the constraints of facts that apply to s.
func condition(s *Strategy, values []ir.ShardingValue, hints []ir.IRValue) sharding.Condition {
	cond := sharding.Condition{Hints: hints}
	for _, col := range s.Columns {
		cv := sharding.ColumnValues{Column: col}
		for _, sv := range values {
			if !strings.EqualFold(sv.Column, col) {
				continue
			}
			switch sv.Role {
			case ir.RoleLower:
				cv.Range = tighten(cv.Range, sv.Value, true)
			case ir.RoleUpper:
				cv.Range = tighten(cv.Range, sv.Value, false)
			default:
				cv.Values = append(cv.Values, sv.Value)
			}
		}
		cond.Columns = append(cond.Columns, cv)
	}
	return cond
}

// tighten narrows r with a new lower or upper bound, keeping the stricter one.
func tighten(r *sharding.Range, v ir.IRValue, lower bool) *sharding.Range {
	if r == nil {
		r = &sharding.Range{}
	}
	if lower {
		if r.Lower == nil {
			r.Lower = v
		} else if c, ok := ir.Compare(v, r.Lower); ok && c > 0 {
			r.Lower = v
		}
		return r
	}
	if r.Upper == nil {
		r.Upper = v
	} else if c, ok := ir.Compare(v, r.Upper); ok && c < 0 {
		r.Upper = v
	}
	return r
}
