package encrypt

import (
	"crypto/rc4"
	"encoding/base64"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

const (
	rc4MinKey = 5
	rc4MaxKey = 255
)

// rc4Algorithm is deterministic RC4 over the raw key bytes with Base64
// output. A fresh keystream is started for every value.
type rc4Algorithm struct {
	key []byte
}

func (*rc4Algorithm) Type() string        { return "RC4" }
func (*rc4Algorithm) Deterministic() bool { return true }

func (a *rc4Algorithm) Init(props algo.Props) error {
	secret, ok := props.Get("rc4-key-value")
	if !ok || secret == "" {
		return ir.NewConfigError("rc4-key-value", "property is required")
	}
	if n := len(secret); n < rc4MinKey || n > rc4MaxKey {
		return ir.NewConfigError("rc4-key-value", "key must be %d to %d bytes, got %d", rc4MinKey, rc4MaxKey, n)
	}
	a.key = []byte(secret)
	return nil
}

func (a *rc4Algorithm) stream(data []byte) []byte {
	// NewCipher only fails on key length, which Init has already checked.
	c, _ := rc4.NewCipher(a.key)
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

func (a *rc4Algorithm) Encrypt(plain ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
	if ir.IsNull(plain) {
		return plain, nil
	}
	text, err := plaintext(a.Type(), plain, ctx)
	if err != nil {
		return nil, err
	}
	return ir.IRString(base64.StdEncoding.EncodeToString(a.stream([]byte(text)))), nil
}

func (a *rc4Algorithm) Decrypt(value ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
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
	return ir.IRString(a.stream(raw)), nil
}
