// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestWithComponent(t *testing.T) {
	l := WithComponent("broker")
	// The component field is attached at build time; this is a smoke test
	// for wiring only.
	l.Debug().Str(FieldEvent, "test.component").Msg("component logger works")
}

func TestDerive(t *testing.T) {
	l := Derive(func(c *zerolog.Context) {
		*c = c.Str(FieldProviderID, "hdmi:1")
	})
	l.Debug().Msg("derived logger works")
}

func TestDeriveNilBuilder(t *testing.T) {
	l := Derive(nil)
	l.Debug().Msg("nil builder falls back to base")
}
