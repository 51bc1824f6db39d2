package encrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// aesAlgorithm is deterministic AES in ECB mode with PKCS#5 padding over a
// key digested from the configured secret. Output is standard Base64.
type aesAlgorithm struct {
	block cipher.Block
}

func (*aesAlgorithm) Type() string        { return "AES" }
func (*aesAlgorithm) Deterministic() bool { return true }

func (a *aesAlgorithm) Init(props algo.Props) error {
	secret, err := props.Require("aes-key-value")
	if err != nil {
		return err
	}

	var digest []byte
	name, _ := props.Get("digest-algorithm-name")
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "SHA-1", "SHA1":
		sum := sha1.Sum([]byte(secret))
		digest = sum[:]
	case "SHA-256", "SHA256":
		sum := sha256.Sum256([]byte(secret))
		digest = sum[:]
	default:
		return ir.NewConfigError("digest-algorithm-name", "unsupported digest %q", name)
	}

	length, err := props.IntOr("aes-key-length", 16)
	if err != nil {
		return err
	}
	switch length {
	case 16, 24, 32:
	default:
		return ir.NewConfigError("aes-key-length", "must be 16, 24 or 32 bytes, got %d", length)
	}
	if int(length) > len(digest) {
		return ir.NewConfigError("aes-key-length", "digest yields %d bytes, need %d", len(digest), length)
	}

	block, err := aes.NewCipher(digest[:length])
	if err != nil {
		return ir.NewConfigError("aes-key-value", "%v", err)
	}
	a.block = block
	return nil
}

func (a *aesAlgorithm) Encrypt(plain ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
	if ir.IsNull(plain) {
		return plain, nil
	}
	text, err := plaintext(a.Type(), plain, ctx)
	if err != nil {
		return nil, err
	}

	padded := pkcs5Pad([]byte(text), a.block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += a.block.BlockSize() {
		a.block.Encrypt(out[i:], padded[i:])
	}
	return ir.IRString(base64.StdEncoding.EncodeToString(out)), nil
}

func (a *aesAlgorithm) Decrypt(value ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
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
	size := a.block.BlockSize()
	if len(raw) == 0 || len(raw)%size != 0 {
		return nil, withContext(ir.NewEncryptionError(nil, "ciphertext length %d is not a multiple of %d", len(raw), size), a.Type(), ctx)
	}

	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += size {
		a.block.Decrypt(out[i:], raw[i:])
	}
	plain, err := pkcs5Unpad(out, size)
	if err != nil {
		return nil, withContext(ir.NewEncryptionError(err, "bad padding"), a.Type(), ctx)
	}
	return ir.IRString(plain), nil
}

func pkcs5Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs5Unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, errors.New("invalid padding length")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:len(data)-n], nil
}
