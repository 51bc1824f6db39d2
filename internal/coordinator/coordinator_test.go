package coordinator

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/encrypt"
	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/metrics"
	"github.com/roach88/sluice/internal/sharding"
)

func registry() *algo.Registry {
	r := algo.NewRegistry()
	sharding.Register(r)
	encrypt.Register(r)
	return r
}

func shardingAlg(t *testing.T, typ string, kv ...string) sharding.Algorithm {
	t.Helper()
	alg, err := sharding.New(registry(), algo.NewDescriptor(typ, algo.NewProps(kv...)))
	require.NoError(t, err)
	return alg
}

func encryptAlg(t *testing.T, typ string, kv ...string) encrypt.Algorithm {
	t.Helper()
	alg, err := encrypt.New(registry(), algo.NewDescriptor(typ, algo.NewProps(kv...)))
	require.NoError(t, err)
	return alg
}

func nodes(pairs ...string) []ir.DataNode {
	out := make([]ir.DataNode, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ir.DataNode{DataSource: pairs[i], Table: pairs[i+1]})
	}
	return out
}

func units(pairs ...string) []ir.RouteUnit {
	out := make([]ir.RouteUnit, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ir.RouteUnit{DataSource: pairs[i], Table: pairs[i+1]})
	}
	return out
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Tables: []TableRule{
			{
				LogicTable: "t_order",
				DataNodes: nodes(
					"ds_0", "t_order_0", "ds_0", "t_order_1",
					"ds_1", "t_order_0", "ds_1", "t_order_1",
				),
				DatabaseStrategy: &Strategy{
					Columns:       []string{"user_id"},
					AlgorithmName: "database_mod",
					Algorithm:     shardingAlg(t, "MOD", "sharding-count", "2"),
				},
				TableStrategy: &Strategy{
					Columns:       []string{"order_id"},
					AlgorithmName: "table_mod",
					Algorithm:     shardingAlg(t, "MOD", "sharding-count", "2"),
				},
			},
			{
				LogicTable: "t_log",
				DataNodes:  nodes("ds_0", "t_log_0", "ds_0", "t_log_1"),
				TableStrategy: &Strategy{
					AlgorithmName: "log_hint",
					Algorithm:     shardingAlg(t, "HINT_INLINE", "algorithm-expression", "t_log_${value % 2}"),
				},
			},
		},
		Encrypt: []EncryptTable{
			{
				Name: "t_user",
				Columns: []EncryptColumn{
					{
						Name:          "pwd",
						CipherColumn:  "pwd_cipher",
						AlgorithmName: "pwd_aes",
						Algorithm:     encryptAlg(t, "AES", "aes-key-value", "test"),
					},
				},
			},
		},
		SingleTables:      map[string]string{"t_config": "ds_1"},
		DefaultDataSource: "ds_0",
	}
}

func newCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(testConfig(t), opts...)
	require.NoError(t, err)
	return c
}

func value(column string, v ir.IRValue) ir.ShardingValue {
	return ir.ShardingValue{Column: column, Role: ir.RoleEqual, Value: v}
}

func TestRoutePrecise(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{
		Table:          "t_order",
		ShardingValues: []ir.ShardingValue{value("user_id", ir.IRInt(3)), value("order_id", ir.IRInt(4))},
	})
	require.NoError(t, err)
	assert.Equal(t, units("ds_1", "t_order_0"), got)
}

func TestRouteDatabaseOnly(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{
		Table:          "T_ORDER",
		ShardingValues: []ir.ShardingValue{value("USER_ID", ir.IRInt(2))},
	})
	require.NoError(t, err)
	assert.Equal(t, units("ds_0", "t_order_0", "ds_0", "t_order_1"), got)
}

func TestRouteBroadcast(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{Table: "t_order"})
	require.NoError(t, err)
	assert.Equal(t, units(
		"ds_0", "t_order_0", "ds_0", "t_order_1",
		"ds_1", "t_order_0", "ds_1", "t_order_1",
	), got)
}

func TestRouteInList(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{
		Table: "t_order",
		ShardingValues: []ir.ShardingValue{
			value("user_id", ir.IRInt(1)),
			value("user_id", ir.IRInt(2)),
			value("order_id", ir.IRInt(7)),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, units("ds_0", "t_order_1", "ds_1", "t_order_1"), got)
}

func TestRouteRange(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{
		Table: "t_order",
		ShardingValues: []ir.ShardingValue{
			value("user_id", ir.IRInt(0)),
			{Column: "order_id", Role: ir.RoleLower, Value: ir.IRInt(5)},
			{Column: "order_id", Role: ir.RoleUpper, Value: ir.IRInt(5)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, units("ds_0", "t_order_1"), got)
}

func TestRouteEmptyRangeHasNoTarget(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.Route(ir.StatementFacts{
		Table: "t_order",
		ShardingValues: []ir.ShardingValue{
			{Column: "order_id", Role: ir.RoleLower, Value: ir.IRInt(9)},
			{Column: "order_id", Role: ir.RoleUpper, Value: ir.IRInt(3)},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrNoTarget)
}

func TestRouteTightensRange(t *testing.T) {
	r := tighten(nil, ir.IRInt(1), true)
	r = tighten(r, ir.IRInt(4), true)
	r = tighten(r, ir.IRInt(9), false)
	r = tighten(r, ir.IRInt(6), false)
	assert.Equal(t, ir.IRInt(4), r.Lower)
	assert.Equal(t, ir.IRInt(6), r.Upper)
}

func TestRouteHint(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{
		Table: "t_log",
		Hints: ir.Hints{Table: []ir.IRValue{ir.IRInt(3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, units("ds_0", "t_log_1"), got)

	_, err = c.Route(ir.StatementFacts{Table: "t_log"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrMissingHint)

	var e *ir.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "t_log", e.Table)
	assert.Equal(t, "log_hint", e.Algorithm)
}

func TestRouteErrorCarriesContext(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.Route(ir.StatementFacts{
		Table:          "t_order",
		ShardingValues: []ir.ShardingValue{value("user_id", ir.IRString("abc"))},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrInvalidShardingValue)

	var e *ir.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "t_order", e.Table)
	assert.Equal(t, "user_id", e.Column)
}

func TestRouteSingleTables(t *testing.T) {
	c := newCoordinator(t)

	got, err := c.Route(ir.StatementFacts{Table: "t_config"})
	require.NoError(t, err)
	assert.Equal(t, units("ds_1", "t_config"), got)

	got, err = c.Route(ir.StatementFacts{Table: "t_other"})
	require.NoError(t, err)
	assert.Equal(t, units("ds_0", "t_other"), got)
}

func TestRouteUnshardedWithoutDefault(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	_, err = c.Route(ir.StatementFacts{Table: "t_other"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrNoTarget)
}

func TestRewriteForWrite(t *testing.T) {
	c := newCoordinator(t)

	facts := ir.StatementFacts{
		Table: "t_user",
		EncryptedLiterals: []ir.EncryptedLiteral{
			{Column: "name", Value: ir.IRString("alice"), Placeholder: 0},
			{Column: "pwd", Value: ir.IRString("test"), Placeholder: 1},
			{Column: "pwd", Value: ir.IRNull{}, Placeholder: -1},
		},
	}
	got, err := c.RewriteForWrite(facts)
	require.NoError(t, err)
	assert.Equal(t, []ir.RewrittenLiteral{
		{Column: "name", Value: ir.IRString("alice"), Placeholder: 0},
		{Column: "pwd_cipher", Value: ir.IRString("dSpPiyENQGDUXMKFMJPGWA=="), Placeholder: 1, Encrypted: true},
		{Column: "pwd_cipher", Value: ir.IRNull{}, Placeholder: -1, Encrypted: true},
	}, got)
	assert.Equal(t, ir.IRString("test"), facts.EncryptedLiterals[1].Value)
}

func TestRewriteForWriteIsAllOrNothing(t *testing.T) {
	c := newCoordinator(t)

	facts := ir.StatementFacts{
		Table: "t_user",
		EncryptedLiterals: []ir.EncryptedLiteral{
			{Column: "pwd", Value: ir.IRString("ok"), Placeholder: 0},
			{Column: "pwd", Value: ir.IRArray{ir.IRInt(1)}, Placeholder: 1},
		},
	}
	got, err := c.RewriteForWrite(facts)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ir.ErrEncryption)

	var e *ir.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "t_user", e.Table)
	assert.Equal(t, "pwd", e.Column)
	assert.Equal(t, ir.IRString("ok"), facts.EncryptedLiterals[0].Value)
}

func TestRewriteForRead(t *testing.T) {
	c := newCoordinator(t)

	columns := c.MarkResultColumns("t_user", []ir.ResultColumn{{Name: "name"}, {Name: "pwd_cipher"}})
	assert.Equal(t, []ir.ResultColumn{{Name: "name"}, {Name: "pwd_cipher", Encrypted: true}}, columns)

	row := []ir.IRValue{ir.IRString("alice"), ir.IRString("dSpPiyENQGDUXMKFMJPGWA==")}
	got, err := c.RewriteForRead("t_user", columns, row)
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{ir.IRString("alice"), ir.IRString("test")}, got)
	assert.Equal(t, ir.IRString("dSpPiyENQGDUXMKFMJPGWA=="), row[1])
}

func TestRewriteForReadSkipsUnconfigured(t *testing.T) {
	c := newCoordinator(t)

	columns := []ir.ResultColumn{{Name: "secret", Encrypted: true}}
	got, err := c.RewriteForRead("t_user", columns, []ir.IRValue{ir.IRString("raw")})
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{ir.IRString("raw")}, got)
}

func TestRewriteForReadErrors(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.RewriteForRead("t_user", []ir.ResultColumn{{Name: "pwd"}}, nil)
	require.Error(t, err)

	_, err = c.RewriteForRead("t_user",
		[]ir.ResultColumn{{Name: "pwd", Encrypted: true}},
		[]ir.IRValue{ir.IRString("not base64!")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrEncryption)
}

func TestPlan(t *testing.T) {
	c := newCoordinator(t)

	plan, err := c.Plan(ir.StatementFacts{
		Table:             "t_user",
		EncryptedLiterals: []ir.EncryptedLiteral{{Column: "pwd", Value: ir.IRString("test"), Placeholder: -1}},
		ResultColumns:     []ir.ResultColumn{{Name: "pwd"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "t_user", plan.Table)
	assert.Equal(t, units("ds_0", "t_user"), plan.Units)
	assert.True(t, plan.Literals[0].Encrypted)
	assert.True(t, plan.ResultColumns[0].Encrypted)
}

func TestPlanAbortsOnRoutingFailure(t *testing.T) {
	c := newCoordinator(t)

	plan, err := c.Plan(ir.StatementFacts{Table: "t_log"})
	require.Error(t, err)
	assert.Nil(t, plan)
}

func TestNewValidates(t *testing.T) {
	alg := shardingAlg(t, "MOD", "sharding-count", "2")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no data nodes", Config{Tables: []TableRule{{LogicTable: "t"}}}},
		{"duplicate table", Config{Tables: []TableRule{
			{LogicTable: "t", DataNodes: nodes("ds", "t_0")},
			{LogicTable: "T", DataNodes: nodes("ds", "t_0")},
		}}},
		{"duplicate node", Config{Tables: []TableRule{
			{LogicTable: "t", DataNodes: nodes("ds", "t_0", "ds", "t_0")},
		}}},
		{"strategy without algorithm", Config{Tables: []TableRule{
			{LogicTable: "t", DataNodes: nodes("ds", "t_0"), TableStrategy: &Strategy{Columns: []string{"id"}}},
		}}},
		{"strategy without columns", Config{Tables: []TableRule{
			{LogicTable: "t", DataNodes: nodes("ds", "t_0"), TableStrategy: &Strategy{Algorithm: alg}},
		}}},
		{"encryptor missing", Config{Encrypt: []EncryptTable{
			{Name: "t", Columns: []EncryptColumn{{Name: "c"}}},
		}}},
		{"sharded and single", Config{
			Tables:       []TableRule{{LogicTable: "t", DataNodes: nodes("ds", "t_0")}},
			SingleTables: map[string]string{"t": "ds"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestTables(t *testing.T) {
	assert.Equal(t, []string{"t_log", "t_order"}, newCoordinator(t).Tables())
}

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := newCoordinator(t, WithMetrics(m))

	_, err := c.Route(ir.StatementFacts{Table: "t_order"})
	require.NoError(t, err)
	_, err = c.Route(ir.StatementFacts{Table: "t_log"})
	require.Error(t, err)
	_, err = c.RewriteForWrite(ir.StatementFacts{
		Table:             "t_user",
		EncryptedLiterals: []ir.EncryptedLiteral{{Column: "pwd", Value: ir.IRString("x"), Placeholder: -1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutesTotal.WithLabelValues("t_order", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutesTotal.WithLabelValues("t_log", "routing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewritesTotal.WithLabelValues("write", "ok")))
}
