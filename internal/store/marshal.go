package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sluice/internal/cdc"
	"github.com/roach88/sluice/internal/ir"
)

// marshalPosition converts a position to its BLOB form. The zero position
// is stored as NULL.
func marshalPosition(p cdc.Position) ([]byte, error) {
	if p.IsZero() {
		return nil, nil
	}
	data, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal position: %w", err)
	}
	return data, nil
}

// unmarshalPosition parses a BLOB written by marshalPosition.
func unmarshalPosition(data []byte) (cdc.Position, error) {
	if len(data) == 0 {
		return cdc.Position{}, nil
	}
	p, err := cdc.UnmarshalPosition(data)
	if err != nil {
		return cdc.Position{}, fmt.Errorf("unmarshal position: %w", err)
	}
	return p, nil
}

// marshalDetail converts an event detail to canonical JSON TEXT.
func marshalDetail(detail ir.IRObject) (string, error) {
	if detail == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// unmarshalDetail parses canonical JSON TEXT to IRObject.
func unmarshalDetail(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return obj, nil
}
