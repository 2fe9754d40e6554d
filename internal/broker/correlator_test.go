// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCorrelatorCompletesOnce(t *testing.T) {
	c := newCorrelator(time.Minute)

	var fired atomic.Int32
	seq, ok := c.track(func(handled bool) {
		require.True(t, handled)
		fired.Add(1)
	})
	require.True(t, ok)
	require.Equal(t, 1, c.outstanding())

	require.True(t, c.complete(seq, true))
	require.False(t, c.complete(seq, true), "second completion must be spurious")
	require.Equal(t, int32(1), fired.Load())
	require.Equal(t, 0, c.outstanding())
}

func TestCorrelatorTimeout(t *testing.T) {
	c := newCorrelator(20 * time.Millisecond)

	result := make(chan bool, 1)
	seq, ok := c.track(func(handled bool) { result <- handled })
	require.True(t, ok)

	select {
	case handled := <-result:
		require.False(t, handled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}
	require.False(t, c.complete(seq, true), "completion after timeout must be spurious")
}

func TestCorrelatorSequenceNumbersAreUnique(t *testing.T) {
	c := newCorrelator(time.Minute)
	seen := make(map[uint32]bool)
	for i := 0; i < 100; i++ {
		seq, ok := c.track(func(bool) {})
		require.True(t, ok)
		require.False(t, seen[seq])
		seen[seq] = true
	}
	c.flush()
}

func TestCorrelatorFlush(t *testing.T) {
	c := newCorrelator(time.Minute)

	var unhandled atomic.Int32
	for i := 0; i < 5; i++ {
		_, ok := c.track(func(handled bool) {
			require.False(t, handled)
			unhandled.Add(1)
		})
		require.True(t, ok)
	}

	c.flush()
	require.Equal(t, int32(5), unhandled.Load(), "flush must complete everything synchronously")
	require.Equal(t, 0, c.outstanding())

	// A flushed correlator accepts no new work and repeated flushes are
	// no-ops.
	_, ok := c.track(func(bool) {})
	require.False(t, ok)
	c.flush()
	require.Equal(t, int32(5), unhandled.Load())
}

func TestCorrelatorUnknownSeqIsSpurious(t *testing.T) {
	c := newCorrelator(time.Minute)
	require.False(t, c.complete(99, true))
}
