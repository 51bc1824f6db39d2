package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for migrating the hash layout.
const (
	DomainDescriptor = "sluice/descriptor/v1"
	DomainPlan       = "sluice/plan/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte keeps the domain/data
// boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ShardingHash returns the FNV-1a hash of the canonical form of v. It is
// stable across processes and releases for the same logical value.
func ShardingHash(v IRValue) (uint32, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return 0, fmt.Errorf("ShardingHash: %w", err)
	}
	h := fnv.New32a()
	h.Write(canonical)
	return h.Sum32(), nil
}

// DescriptorFingerprint identifies an algorithm descriptor by content. Two
// descriptors with the same capability, folded type and properties share a
// fingerprint regardless of how their properties were assembled.
func DescriptorFingerprint(capability, typ string, props map[string]string) (string, error) {
	p := make(IRObject, len(props))
	for k, v := range props {
		p[k] = IRString(v)
	}
	obj := IRObject{
		"capability": IRString(capability),
		"type":       IRString(typ),
		"props":      p,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DescriptorFingerprint: %w", err)
	}
	return hashWithDomain(DomainDescriptor, canonical), nil
}

// PlanHash identifies an execution plan by its route units and rewritten
// literals. Harness traces record it so golden files catch silent routing drift.
func PlanHash(plan *ExecutionPlan) (string, error) {
	canonical, err := MarshalCanonical(plan.Object())
	if err != nil {
		return "", fmt.Errorf("PlanHash: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}
