package testutil

import (
	"sync"

	"github.com/jackc/pglogrepl"
)

// LSNClock is a thread-safe, resettable source of WAL positions for tests.
//
// Each call to Next advances the position by a fixed step, so a scenario
// that runs twice observes the same positions both times.
type LSNClock struct {
	mu    sync.Mutex
	start pglogrepl.LSN
	step  pglogrepl.LSN
	lsn   pglogrepl.LSN
}

// NewLSNClock creates a clock at start that advances by step.
//
// A zero step is treated as 1.
func NewLSNClock(start, step pglogrepl.LSN) *LSNClock {
	if step == 0 {
		step = 1
	}
	return &LSNClock{start: start, step: step, lsn: start}
}

// Next advances the clock and returns the new position.
func (c *LSNClock) Next() pglogrepl.LSN {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lsn += c.step
	return c.lsn
}

// Current returns the position without advancing.
func (c *LSNClock) Current() pglogrepl.LSN {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lsn
}

// Reset returns the clock to its start position.
func (c *LSNClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lsn = c.start
}
