package algo

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/ir"
)

const testCapability Capability = "test"

// counterAlg requires a positive "count" property.
type counterAlg struct {
	count int64
}

func (a *counterAlg) Type() string { return "COUNTER" }

func (a *counterAlg) Init(props Props) error {
	n, err := props.PositiveInt("count")
	if err != nil {
		return err
	}
	a.count = n
	return nil
}

// brokenAlg fails Init with an untyped error.
type brokenAlg struct{}

func (brokenAlg) Type() string     { return "BROKEN" }
func (brokenAlg) Init(Props) error { return errors.New("disk on fire") }

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(testCapability,
		Provider{Type: "COUNTER", Aliases: []string{"CNT"}, New: func() Algorithm { return &counterAlg{} }},
		Provider{Type: "BROKEN", New: func() Algorithm { return brokenAlg{} }},
	)
	return r
}

func TestNewInstanceCaseInsensitive(t *testing.T) {
	r := testRegistry()

	for _, name := range []string{"COUNTER", "counter", "Counter", " counter ", "cnt"} {
		t.Run(name, func(t *testing.T) {
			alg, err := r.NewInstance(testCapability, NewDescriptor(name, NewProps("count", "3")))
			require.NoError(t, err)
			assert.Equal(t, int64(3), alg.(*counterAlg).count)
		})
	}
}

func TestNewInstanceReturnsFreshInstances(t *testing.T) {
	r := testRegistry()
	d := NewDescriptor("COUNTER", NewProps("count", "1"))

	a, err := r.NewInstance(testCapability, d)
	require.NoError(t, err)
	b, err := r.NewInstance(testCapability, d)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
}

func TestNewInstanceUnknownType(t *testing.T) {
	r := testRegistry()

	_, err := r.NewInstance(testCapability, NewDescriptor("NOPE", NewProps()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrUnknownAlgorithmType)

	var e *ir.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "test", e.Capability)
	assert.Equal(t, "NOPE", e.Algorithm)

	_, err = r.NewInstance("other", NewDescriptor("COUNTER", NewProps("count", "1")))
	assert.ErrorIs(t, err, ir.ErrUnknownAlgorithmType)
}

func TestNewInstanceConfigError(t *testing.T) {
	r := testRegistry()

	_, err := r.NewInstance(testCapability, NewDescriptor("counter", NewProps("count", "-1")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrAlgorithmConfiguration)

	var e *ir.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "count", e.Property)
	assert.Equal(t, "COUNTER", e.Algorithm)
	assert.Equal(t, "test", e.Capability)

	_, err = r.NewInstance(testCapability, NewDescriptor("broken", NewProps()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrAlgorithmConfiguration)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRegisterIsIdempotentUnion(t *testing.T) {
	r := testRegistry()
	r.Register(testCapability, Provider{Type: "COUNTER", New: func() Algorithm { return brokenAlg{} }})
	r.Register(testCapability, Provider{Type: "EXTRA", New: func() Algorithm { return &counterAlg{} }})

	assert.Equal(t, []string{"BROKEN", "COUNTER", "EXTRA"}, r.Types(testCapability))

	// The first COUNTER provider is kept.
	alg, err := r.NewInstance(testCapability, NewDescriptor("counter", NewProps("count", "2")))
	require.NoError(t, err)
	assert.IsType(t, &counterAlg{}, alg)
}

func TestRegisterConcurrent(t *testing.T) {
	r := NewRegistry()
	p := Provider{Type: "COUNTER", New: func() Algorithm { return &counterAlg{} }}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(testCapability, p)
			_, _ = r.NewInstance(testCapability, NewDescriptor("COUNTER", NewProps("count", "1")))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"COUNTER"}, r.Types(testCapability))
	assert.Equal(t, []Capability{testCapability}, r.Capabilities())
}
