// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package discovery enumerates providers from a YAML manifest and watches
// it for changes, standing in for a platform package monitor.
package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/tvbroker/internal/transport"
)

// manifestFile is the on-disk shape of providers.yaml.
type manifestFile struct {
	Providers []transport.ProviderDescriptor `yaml:"providers"`
}

// Manifest enumerates providers from a YAML file. Every call re-reads the
// file, so it is safe to call repeatedly and always reflects the current
// content.
type Manifest struct {
	path string
}

func NewManifest(path string) *Manifest {
	return &Manifest{path: path}
}

// EnumerateProviders reads and validates the manifest.
func (m *Manifest) EnumerateProviders() ([]transport.ProviderDescriptor, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var mf manifestFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validate(mf.Providers); err != nil {
		return nil, err
	}
	out := make([]transport.ProviderDescriptor, len(mf.Providers))
	copy(out, mf.Providers)
	for i := range out {
		if out[i].Kind == "" {
			out[i].Kind = "tuner"
		}
		if out[i].Name == "" {
			out[i].Name = out[i].ID
		}
	}
	return out, nil
}

func validate(providers []transport.ProviderDescriptor) error {
	seen := make(map[string]bool, len(providers))
	for i, p := range providers {
		if p.ID == "" {
			return fmt.Errorf("manifest: provider %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("manifest: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
