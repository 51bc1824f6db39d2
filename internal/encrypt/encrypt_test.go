package encrypt

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

var testCtx = ir.EncryptContext{Table: "t_user", Column: "pwd", Placeholder: 0}

func newRegistry() *algo.Registry {
	r := algo.NewRegistry()
	Register(r)
	return r
}

func mustAlgorithm(t *testing.T, typ string, kv ...string) Algorithm {
	t.Helper()
	alg, err := New(newRegistry(), algo.NewDescriptor(typ, algo.NewProps(kv...)))
	require.NoError(t, err)
	return alg
}

func TestRegisteredTypes(t *testing.T) {
	assert.Equal(t, []string{"AES", "MD5", "RC4", "XCHACHA20-POLY1305"}, newRegistry().Types(Capability))
}

func TestAESKnownVector(t *testing.T) {
	alg := mustAlgorithm(t, "AES", "aes-key-value", "test")

	got, err := alg.Encrypt(ir.IRString("test"), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("dSpPiyENQGDUXMKFMJPGWA=="), got)

	plain, err := alg.Decrypt(ir.IRString("dSpPiyENQGDUXMKFMJPGWA=="), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("test"), plain)
}

func TestAESLookupIsCaseInsensitive(t *testing.T) {
	alg := mustAlgorithm(t, "aes", "aes-key-value", "test")
	assert.Equal(t, "AES", alg.Type())
}

func TestRC4KnownVector(t *testing.T) {
	alg := mustAlgorithm(t, "Rc4", "rc4-key-value", "test-sharding")

	got, err := alg.Encrypt(ir.IRString("test"), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("4Tn7lQ=="), got)

	plain, err := alg.Decrypt(ir.IRString("4Tn7lQ=="), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("test"), plain)
}

func TestRC4ZeroKeyVector(t *testing.T) {
	// Ciphertexts written by deployments that never applied their configured
	// key were produced with 255 zero bytes; they still decrypt.
	alg := mustAlgorithm(t, "RC4", "rc4-key-value", strings.Repeat("\x00", 255))

	got, err := alg.Encrypt(ir.IRString("test"), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("qn36NQ=="), got)

	plain, err := alg.Decrypt(ir.IRString("qn36NQ=="), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("test"), plain)
}

func TestRC4KeyLength(t *testing.T) {
	for _, key := range []string{strings.Repeat("test", 100), "abcd", ""} {
		_, err := New(newRegistry(), algo.NewDescriptor("RC4", algo.NewProps("rc4-key-value", key)))
		require.Error(t, err)
		assert.ErrorIs(t, err, ir.ErrAlgorithmConfiguration)
		assert.Contains(t, err.Error(), "property=rc4-key-value")
	}

	_, err := New(newRegistry(), algo.NewDescriptor("RC4", algo.NewProps("rc4-key-value", strings.Repeat("k", 255))))
	assert.NoError(t, err)
}

func TestNullPassthrough(t *testing.T) {
	algs := map[string]Algorithm{
		"AES":     mustAlgorithm(t, "AES", "aes-key-value", "test"),
		"RC4":     mustAlgorithm(t, "RC4", "rc4-key-value", "test-sharding"),
		"MD5":     mustAlgorithm(t, "MD5"),
		"XCHACHA": mustAlgorithm(t, "XCHACHA20-POLY1305", "xchacha-key-value", "0123456789abcdef"),
	}
	for name, alg := range algs {
		t.Run(name, func(t *testing.T) {
			for _, v := range []ir.IRValue{nil, ir.IRNull{}} {
				enc, err := alg.Encrypt(v, testCtx)
				require.NoError(t, err)
				assert.Equal(t, v, enc)

				dec, err := alg.Decrypt(v, testCtx)
				require.NoError(t, err)
				assert.Equal(t, v, dec)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	algs := map[string]Algorithm{
		"AES":         mustAlgorithm(t, "AES", "aes-key-value", "123456abc"),
		"AES-256":     mustAlgorithm(t, "AES", "aes-key-value", "123456abc", "digest-algorithm-name", "SHA-256", "aes-key-length", "32"),
		"RC4":         mustAlgorithm(t, "RC4", "rc4-key-value", "test-sharding"),
		"XCHACHA":     mustAlgorithm(t, "XCHACHA20-POLY1305", "xchacha-key-value", "0123456789abcdef"),
		"XCHACHA-alt": mustAlgorithm(t, "xchacha20", "xchacha-key-value", "another-secret-value"),
	}
	inputs := []ir.IRValue{
		ir.IRString(""),
		ir.IRString("test"),
		ir.IRString("exactly16bytes!!"),
		ir.IRString("unicode: héllo wörld"),
		ir.IRInt(42),
		ir.IRBool(true),
	}
	for name, alg := range algs {
		t.Run(name, func(t *testing.T) {
			for _, in := range inputs {
				enc, err := alg.Encrypt(in, testCtx)
				require.NoError(t, err)

				dec, err := alg.Decrypt(enc, testCtx)
				require.NoError(t, err)

				text, err := ir.Text(in)
				require.NoError(t, err)
				assert.Equal(t, ir.IRString(text), dec)
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	aes := mustAlgorithm(t, "AES", "aes-key-value", "k")
	a, err := aes.Encrypt(ir.IRString("same"), testCtx)
	require.NoError(t, err)
	b, err := aes.Encrypt(ir.IRString("same"), ir.EncryptContext{Table: "other", Column: "col"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "context must not change the ciphertext")
	assert.True(t, aes.Deterministic())

	x := mustAlgorithm(t, "XCHACHA20-POLY1305", "xchacha-key-value", "0123456789abcdef")
	c, err := x.Encrypt(ir.IRString("same"), testCtx)
	require.NoError(t, err)
	d, err := x.Encrypt(ir.IRString("same"), testCtx)
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
	assert.False(t, x.Deterministic())
}

func TestMD5OneWay(t *testing.T) {
	alg := mustAlgorithm(t, "MD5")

	got, err := alg.Encrypt(ir.IRString("test"), testCtx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("098f6bcd4621d373cade4e832627b4f6"), got)

	dec, err := alg.Decrypt(got, testCtx)
	require.NoError(t, err)
	assert.Equal(t, got, dec)

	salted := mustAlgorithm(t, "MD5", "salt", "pepper")
	s, err := salted.Encrypt(ir.IRString("test"), testCtx)
	require.NoError(t, err)
	assert.NotEqual(t, got, s)
}

func TestDecryptFailures(t *testing.T) {
	aes := mustAlgorithm(t, "AES", "aes-key-value", "test")
	rc4 := mustAlgorithm(t, "RC4", "rc4-key-value", "test-sharding")
	x := mustAlgorithm(t, "XCHACHA20-POLY1305", "xchacha-key-value", "0123456789abcdef")

	enc, err := x.Encrypt(ir.IRString("secret"), testCtx)
	require.NoError(t, err)
	tampered := []byte(string(enc.(ir.IRString)))
	tampered[len(tampered)-3] ^= 0x01

	tests := []struct {
		name  string
		alg   Algorithm
		value ir.IRValue
	}{
		{"aes not base64", aes, ir.IRString("***")},
		{"aes bad length", aes, ir.IRString("AAAA")},
		{"aes bad padding", aes, ir.IRString("AAAAAAAAAAAAAAAAAAAAAA==")},
		{"aes non-string", aes, ir.IRInt(1)},
		{"rc4 not base64", rc4, ir.IRString("%%%")},
		{"xchacha short", x, ir.IRString("AAAA")},
		{"xchacha tampered", x, ir.IRString(tampered)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.alg.Decrypt(tt.value, testCtx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ir.ErrEncryption)
			assert.Contains(t, err.Error(), "table=t_user")
		})
	}
}

func TestEncryptRejectsCompositeValues(t *testing.T) {
	alg := mustAlgorithm(t, "AES", "aes-key-value", "test")
	_, err := alg.Encrypt(ir.IRArray{ir.IRInt(1)}, testCtx)
	assert.ErrorIs(t, err, ir.ErrEncryption)
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		typ      string
		props    []string
		property string
	}{
		{"AES", nil, "aes-key-value"},
		{"AES", []string{"aes-key-value", "k", "digest-algorithm-name", "MD4"}, "digest-algorithm-name"},
		{"AES", []string{"aes-key-value", "k", "aes-key-length", "24"}, "aes-key-length"},
		{"AES", []string{"aes-key-value", "k", "aes-key-length", "20"}, "aes-key-length"},
		{"XCHACHA20-POLY1305", []string{"xchacha-key-value", "short"}, "xchacha-key-value"},
		{"XCHACHA20-POLY1305", nil, "xchacha-key-value"},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.property, func(t *testing.T) {
			_, err := New(newRegistry(), algo.NewDescriptor(tt.typ, algo.NewProps(tt.props...)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ir.ErrAlgorithmConfiguration)
			assert.Contains(t, err.Error(), "property="+tt.property)
			assert.NotContains(t, err.Error(), "short", "secrets must not leak into errors")
		})
	}
}

func TestConcurrentUse(t *testing.T) {
	alg := mustAlgorithm(t, "AES", "aes-key-value", "test")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := alg.Encrypt(ir.IRString("test"), testCtx)
			assert.NoError(t, err)
			assert.Equal(t, ir.IRString("dSpPiyENQGDUXMKFMJPGWA=="), got)
		}()
	}
	wg.Wait()
}
