package encrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

const (
	xchachaMinSecret = 16
	xchachaInfo      = "sluice/encrypt/xchacha20poly1305"
	// xchachaVersion prefixes every ciphertext so the layout can change later.
	xchachaVersion uint32 = 1
)

// xchachaAlgorithm is randomized authenticated encryption. Output is
// Base64(version || nonce || sealed). Equal plaintexts give different
// ciphertexts, so cipher columns using it cannot serve equality lookups.
type xchachaAlgorithm struct {
	aead cipher.AEAD
}

func (*xchachaAlgorithm) Type() string        { return "XCHACHA20-POLY1305" }
func (*xchachaAlgorithm) Deterministic() bool { return false }

func (a *xchachaAlgorithm) Init(props algo.Props) error {
	secret, err := props.Require("xchacha-key-value")
	if err != nil {
		return err
	}
	if len(secret) < xchachaMinSecret {
		return ir.NewConfigError("xchacha-key-value", "secret must be at least %d bytes", xchachaMinSecret)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(xchachaInfo)), key); err != nil {
		return ir.NewConfigError("xchacha-key-value", "derive key: %v", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return ir.NewConfigError("xchacha-key-value", "%v", err)
	}
	a.aead = aead
	return nil
}

func (a *xchachaAlgorithm) Encrypt(plain ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
	if ir.IsNull(plain) {
		return plain, nil
	}
	text, err := plaintext(a.Type(), plain, ctx)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 4+a.aead.NonceSize(), 4+a.aead.NonceSize()+len(text)+a.aead.Overhead())
	binary.BigEndian.PutUint32(out, xchachaVersion)
	nonce := out[4:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, withContext(ir.NewEncryptionError(err, "read nonce"), a.Type(), ctx)
	}
	out = a.aead.Seal(out, nonce, []byte(text), nil)
	return ir.IRString(base64.StdEncoding.EncodeToString(out)), nil
}

func (a *xchachaAlgorithm) Decrypt(value ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
	if ir.IsNull(value) {
		return value, nil
	}
	text, err := ciphertext(a.Type(), value, ctx)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, withContext(ir.NewEncryptionError(err, "ciphertext is not base64"), a.Type(), ctx)
	}

	header := 4 + a.aead.NonceSize()
	if len(raw) < header+a.aead.Overhead() {
		return nil, withContext(ir.NewEncryptionError(nil, "ciphertext too short"), a.Type(), ctx)
	}
	if v := binary.BigEndian.Uint32(raw); v != xchachaVersion {
		return nil, withContext(ir.NewEncryptionError(nil, "unsupported ciphertext version %d", v), a.Type(), ctx)
	}
	plain, err := a.aead.Open(nil, raw[4:header], raw[header:], nil)
	if err != nil {
		return nil, withContext(ir.NewEncryptionError(fmt.Errorf("open: %w", err), "authentication failed"), a.Type(), ctx)
	}
	return ir.IRString(plain), nil
}
