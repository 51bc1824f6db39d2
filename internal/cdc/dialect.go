package cdc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/roach88/sluice/internal/ir"
)

// Dialect is the set of version-specific SQL a tracker issues.
type Dialect struct {
	Name string
	// CurrentLSN returns the current WAL write position as text.
	CurrentLSN string
}

var (
	dialectXLog = Dialect{Name: "9.6", CurrentLSN: "SELECT pg_current_xlog_location()::text"}
	dialectWAL  = Dialect{Name: "10+", CurrentLSN: "SELECT pg_current_wal_lsn()::text"}
)

// DialectFor selects the dialect for a server_version_num value.
func DialectFor(versionNum int) (Dialect, error) {
	switch {
	case versionNum >= 100000:
		return dialectWAL, nil
	case versionNum >= 90600:
		return dialectXLog, nil
	default:
		return Dialect{}, &ir.Error{
			Kind:    ir.KindUnsupportedSourceVersion,
			Message: fmt.Sprintf("server_version_num %d is not supported, need 90600 or later", versionNum),
		}
	}
}

// SQLSTATEs PostgreSQL raises for an existing and a missing slot.
const (
	duplicateObject = "42710"
	undefinedObject = "42704"
)

// isDuplicateObject recognizes duplicate_object from either driver.
func isDuplicateObject(err error) bool {
	return sqlState(err) == duplicateObject
}

// isUndefinedObject recognizes undefined_object from either driver.
func isUndefinedObject(err error) bool {
	return sqlState(err) == undefinedObject
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// maxSlotName is PostgreSQL's NAMEDATALEN - 1.
const maxSlotName = 63

// SlotName derives the replication slot name for a scope. The result is
// lower case, limited to [a-z0-9_] and at most 63 bytes; longer names keep
// a prefix and gain a hash suffix of the full name.
func SlotName(prefix, catalog, scope string) string {
	parts := []string{prefix, catalog}
	if scope != "" {
		parts = append(parts, scope)
	}
	name := sanitize(strings.Join(parts, "_"))
	if len(name) <= maxSlotName {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:4])
	return name[:maxSlotName-len(suffix)-1] + "_" + suffix
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
