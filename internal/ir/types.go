package ir

import "fmt"

// ValueRole states how a sharding value constrains its column.
type ValueRole string

const (
	// RoleEqual is an equality or IN-list member.
	RoleEqual ValueRole = "EQUAL"
	// RoleLower is the inclusive lower bound of a range predicate.
	RoleLower ValueRole = "LOWER"
	// RoleUpper is the inclusive upper bound of a range predicate.
	RoleUpper ValueRole = "UPPER"
)

// ShardingValue is one constraint the parser extracted for a sharding column.
type ShardingValue struct {
	Column string    `json:"column" yaml:"column"`
	Role   ValueRole `json:"role,omitempty" yaml:"role,omitempty"`
	Value  IRValue   `json:"value" yaml:"value"`
}

// EncryptedLiteral is a literal bound to a column, in statement order.
// Placeholder is the parameter index, or -1 for an inline literal.
type EncryptedLiteral struct {
	Column      string  `json:"column" yaml:"column"`
	Value       IRValue `json:"value" yaml:"value"`
	Placeholder int     `json:"placeholder" yaml:"placeholder"`
}

// ResultColumn is a projected column. Encrypted marks columns whose values
// must be decrypted before they reach the client.
type ResultColumn struct {
	Name      string `json:"name" yaml:"name"`
	Encrypted bool   `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
}

// Hints carries sharding values supplied out of band rather than parsed from
// the statement.
type Hints struct {
	Database []IRValue `json:"database,omitempty" yaml:"database,omitempty"`
	Table    []IRValue `json:"table,omitempty" yaml:"table,omitempty"`
}

// StatementFacts is the structural summary of one statement as produced by
// the SQL parser. Routing and rewriting never see SQL text.
type StatementFacts struct {
	Table             string             `json:"table" yaml:"table"`
	ShardingValues    []ShardingValue    `json:"sharding_values,omitempty" yaml:"sharding_values,omitempty"`
	EncryptedLiterals []EncryptedLiteral `json:"encrypted_literals,omitempty" yaml:"encrypted_literals,omitempty"`
	ResultColumns     []ResultColumn     `json:"result_columns,omitempty" yaml:"result_columns,omitempty"`
	Hints             Hints              `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// EncryptContext tags an encryption call with where the value lives.
// Algorithms may not branch on it.
type EncryptContext struct {
	Table       string
	Column      string
	Placeholder int
}

// DataNode is one physical table on one data source.
type DataNode struct {
	DataSource string `json:"data_source"`
	Table      string `json:"table"`
}

// String renders the node as "ds.table".
func (n DataNode) String() string {
	return n.DataSource + "." + n.Table
}

// RouteUnit is a resolved (data source, physical table) target.
type RouteUnit struct {
	DataSource string `json:"data_source"`
	Table      string `json:"table"`
}

// String renders the unit as "ds.table".
func (u RouteUnit) String() string {
	return fmt.Sprintf("%s.%s", u.DataSource, u.Table)
}

// RewrittenLiteral is a literal after write rewriting. Column names the
// physical column the value is stored in; Encrypted reports whether the value
// was transformed.
type RewrittenLiteral struct {
	Column      string  `json:"column"`
	Value       IRValue `json:"value"`
	Placeholder int     `json:"placeholder"`
	Encrypted   bool    `json:"encrypted,omitempty"`
}

// ExecutionPlan is everything the dispatch layer needs to run a statement.
type ExecutionPlan struct {
	Table         string             `json:"table"`
	Units         []RouteUnit        `json:"units"`
	Literals      []RewrittenLiteral `json:"literals,omitempty"`
	ResultColumns []ResultColumn     `json:"result_columns,omitempty"`
}

// Object renders the plan as an IRObject for canonical serialization.
func (p *ExecutionPlan) Object() IRObject {
	units := make(IRArray, len(p.Units))
	for i, u := range p.Units {
		units[i] = IRObject{
			"data_source": IRString(u.DataSource),
			"table":       IRString(u.Table),
		}
	}
	literals := make(IRArray, len(p.Literals))
	for i, l := range p.Literals {
		val := l.Value
		if val == nil {
			val = IRNull{}
		}
		literals[i] = IRObject{
			"column":      IRString(l.Column),
			"value":       val,
			"placeholder": IRInt(l.Placeholder),
			"encrypted":   IRBool(l.Encrypted),
		}
	}
	columns := make(IRArray, len(p.ResultColumns))
	for i, c := range p.ResultColumns {
		columns[i] = IRObject{
			"name":      IRString(c.Name),
			"encrypted": IRBool(c.Encrypted),
		}
	}
	return IRObject{
		"table":          IRString(p.Table),
		"units":          units,
		"literals":       literals,
		"result_columns": columns,
	}
}
