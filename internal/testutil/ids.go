package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable job IDs shaped like UUIDv7 strings.
//
// This keeps store contents and golden output byte-identical across runs,
// where real UUIDv7 values embed the wall clock.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu sync.Mutex
	n  int
}

// Generate returns the next ID, starting at ...0001.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.n)
}
