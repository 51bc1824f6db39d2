package coordinator

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/metrics"
	"github.com/roach88/sluice/internal/sharding"
)

// Coordinator routes and rewrites statements against a frozen rule set.
type Coordinator struct {
	tables    map[string]*tableRoute
	encrypt   map[string]map[string]*EncryptColumn
	ciphers   map[string]map[string]*EncryptColumn
	single    map[string]string
	defaultDS string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Values are never logged, only shapes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics records routing and rewrite outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New validates cfg and builds a Coordinator.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		tables:    make(map[string]*tableRoute, len(cfg.Tables)),
		encrypt:   make(map[string]map[string]*EncryptColumn, len(cfg.Encrypt)),
		ciphers:   make(map[string]map[string]*EncryptColumn, len(cfg.Encrypt)),
		single:    make(map[string]string, len(cfg.SingleTables)),
		defaultDS: cfg.DefaultDataSource,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, rule := range cfg.Tables {
		key := fold(rule.LogicTable)
		if key == "" {
			return nil, fmt.Errorf("coordinator: sharded table with empty name")
		}
		if _, dup := c.tables[key]; dup {
			return nil, fmt.Errorf("coordinator: table %s configured twice", rule.LogicTable)
		}
		tr, err := newTableRoute(rule)
		if err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		c.tables[key] = tr
	}

	for _, et := range cfg.Encrypt {
		key := fold(et.Name)
		if key == "" {
			return nil, fmt.Errorf("coordinator: encrypt table with empty name")
		}
		if _, dup := c.encrypt[key]; dup {
			return nil, fmt.Errorf("coordinator: encrypt table %s configured twice", et.Name)
		}
		byName := make(map[string]*EncryptColumn, len(et.Columns))
		byCipher := make(map[string]*EncryptColumn, len(et.Columns))
		for i := range et.Columns {
			col := et.Columns[i]
			if col.Algorithm == nil {
				return nil, fmt.Errorf("coordinator: %s.%s has no encryptor", et.Name, col.Name)
			}
			name := fold(col.Name)
			if _, dup := byName[name]; dup {
				return nil, fmt.Errorf("coordinator: %s.%s configured twice", et.Name, col.Name)
			}
			byName[name] = &col
			if col.CipherColumn != "" {
				byCipher[fold(col.CipherColumn)] = &col
			}
		}
		c.encrypt[key] = byName
		c.ciphers[key] = byCipher
	}

	for table, ds := range cfg.SingleTables {
		if _, sharded := c.tables[fold(table)]; sharded {
			return nil, fmt.Errorf("coordinator: table %s is both sharded and single", table)
		}
		c.single[fold(table)] = ds
	}
	return c, nil
}

// Route resolves the physical targets of a statement.
func (c *Coordinator) Route(facts ir.StatementFacts) ([]ir.RouteUnit, error) {
	units, err := c.route(facts)
	c.metrics.ObserveRoute(facts.Table, len(units), err)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("routed statement", "table", facts.Table, "units", len(units))
	return units, nil
}

func (c *Coordinator) route(facts ir.StatementFacts) ([]ir.RouteUnit, error) {
	tr, ok := c.tables[fold(facts.Table)]
	if !ok {
		ds := c.single[fold(facts.Table)]
		if ds == "" {
			ds = c.defaultDS
		}
		if ds == "" {
			e := ir.NewRoutingError(ir.ReasonNoTarget, "no data source configured for unsharded table")
			e.Table = facts.Table
			return nil, e
		}
		return []ir.RouteUnit{{DataSource: ds, Table: facts.Table}}, nil
	}

	dataSources := tr.dataSources
	if s := tr.rule.DatabaseStrategy; s != nil {
		picked, err := sharding.Route(s.Algorithm, dataSources, condition(s, facts.ShardingValues, facts.Hints.Database))
		if err != nil {
			return nil, ir.Annotate(err, tr.rule.LogicTable, strings.Join(s.Columns, ","), s.AlgorithmName)
		}
		dataSources = picked
	}

	var units []ir.RouteUnit
	for _, ds := range dataSources {
		tables := tr.tables[ds]
		if s := tr.rule.TableStrategy; s != nil {
			picked, err := sharding.Route(s.Algorithm, tables, condition(s, facts.ShardingValues, facts.Hints.Table))
			if err != nil {
				return nil, ir.Annotate(err, tr.rule.LogicTable, strings.Join(s.Columns, ","), s.AlgorithmName)
			}
			tables = picked
		}
		for _, t := range tables {
			units = append(units, ir.RouteUnit{DataSource: ds, Table: t})
		}
	}

	if len(units) == 0 {
		e := ir.NewRoutingError(ir.ReasonNoTarget, "no data node matched")
		e.Table = tr.rule.LogicTable
		return nil, e
	}
	return units, nil
}

// RewriteForWrite encrypts every literal bound for an encrypted column and
// passes the rest through. The rewrite is all-or-nothing: on error no
// literals are returned and facts is left untouched.
func (c *Coordinator) RewriteForWrite(facts ir.StatementFacts) ([]ir.RewrittenLiteral, error) {
	out, n, err := c.rewriteForWrite(facts)
	c.metrics.ObserveRewrite("write", n, err)
	return out, err
}

func (c *Coordinator) rewriteForWrite(facts ir.StatementFacts) ([]ir.RewrittenLiteral, int, error) {
	columns := c.encrypt[fold(facts.Table)]
	out := make([]ir.RewrittenLiteral, 0, len(facts.EncryptedLiterals))
	encrypted := 0
	for _, lit := range facts.EncryptedLiterals {
		col := columns[fold(lit.Column)]
		if col == nil {
			out = append(out, ir.RewrittenLiteral{Column: lit.Column, Value: lit.Value, Placeholder: lit.Placeholder})
			continue
		}

		ctx := ir.EncryptContext{Table: facts.Table, Column: lit.Column, Placeholder: lit.Placeholder}
		v, err := col.Algorithm.Encrypt(lit.Value, ctx)
		if err != nil {
			return nil, 0, ir.Annotate(err, facts.Table, lit.Column, col.AlgorithmName)
		}
		target := lit.Column
		if col.CipherColumn != "" {
			target = col.CipherColumn
		}
		out = append(out, ir.RewrittenLiteral{Column: target, Value: v, Placeholder: lit.Placeholder, Encrypted: true})
		encrypted++
	}
	return out, encrypted, nil
}

// MarkResultColumns returns columns with Encrypted set on every column that
// is configured for encryption, under either its logical or cipher name.
func (c *Coordinator) MarkResultColumns(table string, columns []ir.ResultColumn) []ir.ResultColumn {
	out := make([]ir.ResultColumn, len(columns))
	for i, col := range columns {
		out[i] = col
		if c.column(table, col.Name) != nil {
			out[i].Encrypted = true
		}
	}
	return out
}

func (c *Coordinator) column(table, name string) *EncryptColumn {
	if col := c.encrypt[fold(table)][fold(name)]; col != nil {
		return col
	}
	return c.ciphers[fold(table)][fold(name)]
}

// RewriteForRead decrypts the values of row whose column is marked
// encrypted and has a configured algorithm. row is not modified.
func (c *Coordinator) RewriteForRead(table string, columns []ir.ResultColumn, row []ir.IRValue) ([]ir.IRValue, error) {
	out, n, err := c.rewriteForRead(table, columns, row)
	c.metrics.ObserveRewrite("read", n, err)
	return out, err
}

func (c *Coordinator) rewriteForRead(table string, columns []ir.ResultColumn, row []ir.IRValue) ([]ir.IRValue, int, error) {
	if len(columns) != len(row) {
		return nil, 0, fmt.Errorf("coordinator: row has %d values for %d columns", len(row), len(columns))
	}
	out := make([]ir.IRValue, len(row))
	decrypted := 0
	for i, v := range row {
		out[i] = v
		if !columns[i].Encrypted {
			continue
		}
		col := c.column(table, columns[i].Name)
		if col == nil {
			continue
		}
		ctx := ir.EncryptContext{Table: table, Column: columns[i].Name, Placeholder: -1}
		plain, err := col.Algorithm.Decrypt(v, ctx)
		if err != nil {
			return nil, 0, ir.Annotate(err, table, columns[i].Name, col.AlgorithmName)
		}
		out[i] = plain
		decrypted++
	}
	return out, decrypted, nil
}

// Plan routes and rewrites a statement in one step. Nothing is returned
// unless every step succeeded.
func (c *Coordinator) Plan(facts ir.StatementFacts) (*ir.ExecutionPlan, error) {
	units, err := c.Route(facts)
	if err != nil {
		return nil, err
	}
	literals, err := c.RewriteForWrite(facts)
	if err != nil {
		return nil, err
	}
	return &ir.ExecutionPlan{
		Table:         facts.Table,
		Units:         units,
		Literals:      literals,
		ResultColumns: c.MarkResultColumns(facts.Table, facts.ResultColumns),
	}, nil
}

// Tables returns the configured sharded logical tables.
func (c *Coordinator) Tables() []string {
	out := make([]string, 0, len(c.tables))
	for _, tr := range c.tables {
		out = append(out, tr.rule.LogicTable)
	}
	slices.Sort(out)
	return out
}
