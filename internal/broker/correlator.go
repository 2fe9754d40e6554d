// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"sync"
	"time"
)

// correlator matches outbound input events to their exactly-once
// completions. Each tracked operation carries a session-locally unique
// sequence number and a timeout after which it resolves as not handled.
// Flush force-completes everything outstanding; a flushed correlator
// accepts no further work, so no completion can ever fire after session
// teardown.
type correlator struct {
	timeout time.Duration

	mu      sync.Mutex
	next    uint32
	pending map[uint32]*pendingOp
	flushed bool
}

type pendingOp struct {
	seq   uint32
	done  func(handled bool)
	timer *time.Timer
}

func newCorrelator(timeout time.Duration) *correlator {
	return &correlator{
		timeout: timeout,
		pending: make(map[uint32]*pendingOp),
	}
}

// track allocates a sequence number and arms the timeout. It returns
// ok=false after flush.
func (c *correlator) track(done func(handled bool)) (uint32, bool) {
	c.mu.Lock()
	if c.flushed {
		c.mu.Unlock()
		return 0, false
	}
	c.next++
	seq := c.next
	op := &pendingOp{seq: seq, done: done}
	c.pending[seq] = op
	op.timer = time.AfterFunc(c.timeout, func() {
		if c.complete(seq, false) {
			pendingOpsTotal.WithLabelValues("timeout").Inc()
		}
	})
	c.mu.Unlock()
	return seq, true
}

// complete resolves one pending operation. Spurious completions (unknown,
// already timed out, already flushed) report false and have no effect.
func (c *correlator) complete(seq uint32, handled bool) bool {
	c.mu.Lock()
	op, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
		op.timer.Stop()
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	op.done(handled)
	return true
}

// flush force-completes all outstanding operations with handled=false and
// seals the correlator.
func (c *correlator) flush() {
	c.mu.Lock()
	if c.flushed {
		c.mu.Unlock()
		return
	}
	c.flushed = true
	ops := make([]*pendingOp, 0, len(c.pending))
	for _, op := range c.pending {
		op.timer.Stop()
		ops = append(ops, op)
	}
	c.pending = make(map[uint32]*pendingOp)
	c.mu.Unlock()

	for _, op := range ops {
		op.done(false)
		pendingOpsTotal.WithLabelValues("flushed").Inc()
	}
}

// outstanding reports the number of pending operations.
func (c *correlator) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
