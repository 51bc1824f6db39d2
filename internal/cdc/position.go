package cdc

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pglogrepl"
)

// Kind identifies the source family a position belongs to.
type Kind uint8

// KindPostgreSQL tags positions read from a PostgreSQL WAL.
const KindPostgreSQL Kind = 0x01

// positionSize is the tag byte plus a big-endian uint64.
const positionSize = 9

func (k Kind) String() string {
	switch k {
	case KindPostgreSQL:
		return "postgresql"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Position is a point in a source's change stream. Positions are totally
// ordered: by kind, then by log sequence number.
type Position struct {
	Kind Kind
	LSN  pglogrepl.LSN
}

// NewPosition returns a PostgreSQL position at lsn.
func NewPosition(lsn pglogrepl.LSN) Position {
	return Position{Kind: KindPostgreSQL, LSN: lsn}
}

// IsZero reports whether p is the zero value.
func (p Position) IsZero() bool {
	return p.Kind == 0 && p.LSN == 0
}

// Compare returns -1, 0 or +1.
func (p Position) Compare(o Position) int {
	if c := cmp.Compare(p.Kind, o.Kind); c != 0 {
		return c
	}
	return cmp.Compare(p.LSN, o.LSN)
}

// String renders the position in PostgreSQL's XXX/XXX notation.
func (p Position) String() string {
	return p.LSN.String()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p Position) MarshalBinary() ([]byte, error) {
	if p.Kind != KindPostgreSQL {
		return nil, fmt.Errorf("cdc: cannot serialize position of %s", p.Kind)
	}
	out := make([]byte, positionSize)
	out[0] = byte(p.Kind)
	binary.BigEndian.PutUint64(out[1:], uint64(p.LSN))
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Position) UnmarshalBinary(data []byte) error {
	if len(data) != positionSize {
		return fmt.Errorf("cdc: serialized position must be %d bytes, got %d", positionSize, len(data))
	}
	if Kind(data[0]) != KindPostgreSQL {
		return fmt.Errorf("cdc: unknown position kind 0x%02x", data[0])
	}
	p.Kind = Kind(data[0])
	p.LSN = pglogrepl.LSN(binary.BigEndian.Uint64(data[1:]))
	return nil
}

// UnmarshalPosition decodes the output of MarshalBinary.
func UnmarshalPosition(data []byte) (Position, error) {
	var p Position
	if err := p.UnmarshalBinary(data); err != nil {
		return Position{}, err
	}
	return p, nil
}

// ParsePosition accepts XXX/XXX notation or a decimal byte offset.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		lsn, err := pglogrepl.ParseLSN(s)
		if err != nil {
			return Position{}, fmt.Errorf("cdc: parse position %q: %w", s, err)
		}
		return NewPosition(lsn), nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("cdc: parse position %q: %w", s, err)
	}
	return NewPosition(pglogrepl.LSN(n)), nil
}
