package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/testutil"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry(nil)
	src := testutil.NewFakeSource()

	require.NoError(t, r.Register("ds_1", src, map[string]string{"sales": "sales_prod"}, nil))
	require.NoError(t, r.Register("ds_0", testutil.NewFakeSource(), nil, nil))

	got, err := r.Source("ds_1")
	require.NoError(t, err)
	assert.Same(t, src, got)
	assert.Equal(t, []string{"ds_0", "ds_1"}, r.Names())

	_, err = r.Source("ds_9")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("ds", testutil.NewFakeSource(), nil, nil))

	assert.Error(t, r.Register("ds", testutil.NewFakeSource(), nil, nil))
	assert.Error(t, r.Register("", testutil.NewFakeSource(), nil, nil))
	assert.Error(t, r.Register("x", nil, nil, nil))
}

func TestActualSchema(t *testing.T) {
	r := NewRegistry(nil)
	schemas := map[string]string{"sales": "sales_prod"}
	require.NoError(t, r.Register("ds", testutil.NewFakeSource(), schemas, nil))
	schemas["sales"] = "mutated"

	assert.Equal(t, "sales_prod", r.ActualSchema("ds", "sales"))
	assert.Equal(t, "public", r.ActualSchema("ds", "public"))
	assert.Equal(t, "sales", r.ActualSchema("missing", "sales"))
}

func TestClose(t *testing.T) {
	r := NewRegistry(nil)
	closed := 0
	closer := func() error { closed++; return nil }
	failing := func() error { return errors.New("busy") }

	require.NoError(t, r.Register("a", testutil.NewFakeSource(), nil, closer))
	require.NoError(t, r.Register("b", testutil.NewFakeSource(), nil, failing))

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
	assert.Equal(t, 1, closed)
	assert.Empty(t, r.Names())
}

func TestOpenRejectsBadConfig(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Open(context.Background(), Config{Name: "x", Driver: "oracle", DSN: "whatever"})
	assert.Error(t, err)

	err = r.Open(context.Background(), Config{Name: "y", Driver: DriverPgx, DSN: "postgres://u:p@localhost:notaport/db"})
	assert.Error(t, err)
	assert.Empty(t, r.Names())
}
