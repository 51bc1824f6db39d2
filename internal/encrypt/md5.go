package encrypt

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// md5Algorithm is a one-way digest. Decrypt hands stored values back as-is.
type md5Algorithm struct {
	salt string
}

func (*md5Algorithm) Type() string        { return "MD5" }
func (*md5Algorithm) Deterministic() bool { return true }

func (a *md5Algorithm) Init(props algo.Props) error {
	a.salt, _ = props.Get("salt")
	return nil
}

func (a *md5Algorithm) Encrypt(plain ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error) {
	if ir.IsNull(plain) {
		return plain, nil
	}
	text, err := plaintext(a.Type(), plain, ctx)
	if err != nil {
		return nil, err
	}
	sum := md5.Sum([]byte(text + a.salt))
	return ir.IRString(hex.EncodeToString(sum[:])), nil
}

func (*md5Algorithm) Decrypt(value ir.IRValue, _ ir.EncryptContext) (ir.IRValue, error) {
	return value, nil
}
