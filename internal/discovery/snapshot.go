// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/tvbroker/internal/transport"
)

// snapshot is the resolved provider set as written to disk.
type snapshot struct {
	GeneratedAt time.Time                      `json:"generated_at"`
	Providers   []transport.ProviderDescriptor `json:"providers"`
}

// WriteSnapshot atomically writes the resolved provider set to path. The
// file is fsynced before the rename, so readers never observe a partial
// snapshot even across a power failure.
func WriteSnapshot(path string, providers []transport.ProviderDescriptor) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending snapshot: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot{GeneratedAt: time.Now().UTC(), Providers: providers}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
