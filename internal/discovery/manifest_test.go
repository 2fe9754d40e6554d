// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tvbroker/internal/transport"
)

func writeManifest(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEnumerateProviders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	writeManifest(t, path, `
providers:
  - id: hdmi1
    name: Living Room HDMI
    kind: hdmi
  - id: tuner0
`)
	m := NewManifest(path)
	providers, err := m.EnumerateProviders()
	require.NoError(t, err)
	require.Len(t, providers, 2)
	require.Equal(t, "hdmi", providers[0].Kind)
	// Defaults applied to sparse entries.
	require.Equal(t, "tuner", providers[1].Kind)
	require.Equal(t, "tuner0", providers[1].Name)
}

func TestEnumerateRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	writeManifest(t, path, `
providers:
  - id: hdmi1
  - id: hdmi1
`)
	_, err := NewManifest(path).EnumerateProviders()
	require.ErrorContains(t, err, "duplicate provider id")
}

func TestEnumerateRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	writeManifest(t, path, `
providers:
  - name: nameless
`)
	_, err := NewManifest(path).EnumerateProviders()
	require.ErrorContains(t, err, "has no id")
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	writeManifest(t, path, "providers:\n  - id: hdmi1\n")

	var mu sync.Mutex
	var got []transport.ProviderDescriptor
	w := NewWatcher(NewManifest(path), func(p []transport.ProviderDescriptor) {
		mu.Lock()
		got = p
		mu.Unlock()
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeManifest(t, path, "providers:\n  - id: hdmi1\n  - id: tuner0\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherKeepsPreviousSetOnBrokenEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	writeManifest(t, path, "providers:\n  - id: hdmi1\n")

	calls := make(chan int, 8)
	w := NewWatcher(NewManifest(path), func(p []transport.ProviderDescriptor) {
		calls <- len(p)
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeManifest(t, path, "providers:\n  - id: hdmi1\n  - id: hdmi1\n")

	select {
	case n := <-calls:
		t.Fatalf("broken manifest must not reach onChange, got %d providers", n)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWriteSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	providers := []transport.ProviderDescriptor{
		{ID: "hdmi1", Name: "Living Room HDMI", Kind: "hdmi"},
	}
	require.NoError(t, WriteSnapshot(path, providers))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap struct {
		GeneratedAt time.Time                      `json:"generated_at"`
		Providers   []transport.ProviderDescriptor `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, providers, snap.Providers)
	require.False(t, snap.GeneratedAt.IsZero())
}
