// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOpenAndClose(t *testing.T) {
	store := NewMemoryStore()
	w := NewWorker(store, 16)
	defer w.Stop()

	start := time.Now().Add(-time.Minute)
	id := w.Open("hdmi1", "7", start)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		e, err := store.Get(context.Background(), id)
		return err == nil && e.Channel == "7"
	}, 2*time.Second, 10*time.Millisecond)

	end := time.Now()
	w.Close(id, end)
	require.Eventually(t, func() bool {
		e, err := store.Get(context.Background(), id)
		return err == nil && e.EndAt.Equal(end)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseUnknownEntryIsIgnored(t *testing.T) {
	store := NewMemoryStore()
	w := NewWorker(store, 16)
	defer w.Stop()

	w.Close("no-such-entry", time.Now())
	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProgramBoundarySplitsEntry(t *testing.T) {
	store := NewMemoryStore()
	w := NewWorker(store, 16)
	defer w.Stop()

	id := w.Open("hdmi1", "7", time.Now().Add(-time.Hour))

	// The program ended in the past, so the split happens immediately.
	boundary := time.Now().Add(-time.Minute)
	w.SetProgram(id, "Evening News", boundary)

	require.Eventually(t, func() bool {
		entries, err := store.List(context.Background(), 0)
		return err == nil && len(entries) == 2
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	first, cont := entries[0], entries[1]
	require.Equal(t, "Evening News", first.Title)
	require.True(t, first.EndAt.Equal(boundary))
	require.Equal(t, first.ID, cont.ContinuedFrom)
	require.True(t, cont.StartAt.Equal(boundary))
	require.True(t, cont.EndAt.IsZero())

	// Closing the external id closes the continuation, not the split-off
	// predecessor.
	end := time.Now()
	w.Close(id, end)
	require.Eventually(t, func() bool {
		e, err := store.Get(context.Background(), cont.ID)
		return err == nil && e.EndAt.Equal(end)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProgramBoundaryTimer(t *testing.T) {
	store := NewMemoryStore()
	w := NewWorker(store, 16)
	defer w.Stop()

	id := w.Open("hdmi1", "7", time.Now())
	w.SetProgram(id, "Short Program", time.Now().Add(50*time.Millisecond))

	require.Eventually(t, func() bool {
		entries, err := store.List(context.Background(), 0)
		return err == nil && len(entries) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopDiscardsLateCommands(t *testing.T) {
	store := NewMemoryStore()
	w := NewWorker(store, 16)

	id := w.Open("hdmi1", "7", time.Now())
	w.Stop()

	// Posts after Stop are dropped without panicking.
	w.Close(id, time.Now())
	w.Stop()
}
