// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcherPreservesPerOwnerOrder(t *testing.T) {
	d := newDispatcher(256)
	defer d.close()

	var mu sync.Mutex
	got := make(map[string][]int)

	for i := 0; i < 100; i++ {
		for _, owner := range []string{"a", "b"} {
			owner, i := owner, i
			d.post(owner, func() {
				mu.Lock()
				got[owner] = append(got[owner], i)
				mu.Unlock()
			})
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["a"]) == 100 && len(got["b"]) == 100
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, owner := range []string{"a", "b"} {
		for i, v := range got[owner] {
			require.Equal(t, i, v, "owner %s out of order at %d", owner, i)
		}
	}
}

func TestDispatcherIsolatesPanics(t *testing.T) {
	d := newDispatcher(16)
	defer d.close()

	done := make(chan struct{})
	d.post("a", func() { panic("client misbehaved") })
	d.post("a", func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled after a panicking callback")
	}
}

func TestDispatcherCloseDrainsBacklog(t *testing.T) {
	d := newDispatcher(64)

	var mu sync.Mutex
	count := 0
	for i := 0; i < 20; i++ {
		d.post("a", func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	d.close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 20, count)

	// Posts after close are dropped, not executed.
	d.post("a", func() { t.Error("post after close executed") })
}

func TestDispatcherRemoveThenRepost(t *testing.T) {
	d := newDispatcher(16)
	defer d.close()

	first := make(chan struct{})
	d.post("a", func() { close(first) })
	<-first
	d.remove("a")

	// A new post for the same owner gets a fresh queue.
	second := make(chan struct{})
	d.post("a", func() { close(second) })
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("post after remove never ran")
	}
}
