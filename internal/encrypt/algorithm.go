// Package encrypt implements the column encryption algorithm family.
//
// Every algorithm passes NULL through untouched in both directions and turns
// non-null input into text before it reaches a cipher. Key material is
// derived once in Init and never leaves the instance.
package encrypt

import (
	"fmt"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

// Capability is the registry capability for encryption algorithms.
const Capability algo.Capability = "encryption"

// Algorithm transforms column values. Implementations are pure functions of
// (value, context) after Init and are safe for concurrent use.
type Algorithm interface {
	algo.Algorithm
	Encrypt(plain ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error)
	Decrypt(cipher ir.IRValue, ctx ir.EncryptContext) (ir.IRValue, error)
	// Deterministic reports whether equal plaintexts always produce equal
	// ciphertexts, which is what allows equality predicates on cipher columns.
	Deterministic() bool
}

// Register adds the built-in encryption algorithms to r.
func Register(r *algo.Registry) {
	r.Register(Capability,
		algo.Provider{Type: "AES", New: func() algo.Algorithm { return &aesAlgorithm{} }},
		algo.Provider{Type: "RC4", New: func() algo.Algorithm { return &rc4Algorithm{} }},
		algo.Provider{Type: "MD5", New: func() algo.Algorithm { return &md5Algorithm{} }},
		algo.Provider{Type: "XCHACHA20-POLY1305", Aliases: []string{"XCHACHA20"}, New: func() algo.Algorithm { return &xchachaAlgorithm{} }},
	)
}

// Lookup is the subset of algo.Cache and algo.Registry used to obtain
// instances.
type Lookup interface {
	Get(c algo.Capability, d algo.Descriptor) (algo.Algorithm, error)
}

// New obtains an encryption algorithm for d from src.
func New(src Lookup, d algo.Descriptor) (Algorithm, error) {
	a, err := src.Get(Capability, d)
	if err != nil {
		return nil, err
	}
	alg, ok := a.(Algorithm)
	if !ok {
		return nil, fmt.Errorf("encrypt: %s is registered but is not an encryption algorithm (%T)", d.Type(), a)
	}
	return alg, nil
}

// plaintext renders v as cipher input.
func plaintext(typ string, v ir.IRValue, ctx ir.EncryptContext) (string, error) {
	s, err := ir.Text(v)
	if err != nil {
		return "", withContext(ir.NewEncryptionError(err, "cannot encrypt value"), typ, ctx)
	}
	return s, nil
}

// ciphertext extracts the stored text of an encrypted value.
func ciphertext(typ string, v ir.IRValue, ctx ir.EncryptContext) (string, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return "", withContext(ir.NewEncryptionError(nil, "ciphertext must be a string, got %T", v), typ, ctx)
	}
	return string(s), nil
}

func withContext(e *ir.Error, typ string, ctx ir.EncryptContext) *ir.Error {
	e.Algorithm = typ
	e.Table = ctx.Table
	e.Column = ctx.Column
	return e
}
