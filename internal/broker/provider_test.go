// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tvbroker/internal/transport"
)

func newTestProvider() *providerState {
	return newProviderState(transport.ProviderDescriptor{ID: "p1", Name: "P1", Kind: "tuner"})
}

func TestBindingTransitions(t *testing.T) {
	svc := transport.NewFakeService()

	t.Run("happy path", func(t *testing.T) {
		p := newTestProvider()
		require.NoError(t, p.transition(BindingBinding, nil))
		require.NoError(t, p.transition(BindingBound, svc))
		require.Same(t, transport.Service(svc), p.service)
		require.NoError(t, p.transition(BindingReconnecting, nil))
		require.Nil(t, p.service)
		require.NoError(t, p.transition(BindingBound, svc))
		require.NoError(t, p.transition(BindingUnbound, nil))
	})

	t.Run("bound requires service", func(t *testing.T) {
		p := newTestProvider()
		require.NoError(t, p.transition(BindingBinding, nil))
		require.Error(t, p.transition(BindingBound, nil))
	})

	t.Run("no direct unbound to bound", func(t *testing.T) {
		p := newTestProvider()
		require.Error(t, p.transition(BindingBound, svc))
	})

	t.Run("no reconnecting from unbound", func(t *testing.T) {
		p := newTestProvider()
		require.Error(t, p.transition(BindingReconnecting, nil))
	})

	t.Run("unbound is always reachable", func(t *testing.T) {
		p := newTestProvider()
		require.NoError(t, p.transition(BindingUnbound, nil))
		require.NoError(t, p.transition(BindingBinding, nil))
		require.NoError(t, p.transition(BindingUnbound, nil))
	})
}

func TestProviderRefcount(t *testing.T) {
	p := newTestProvider()
	require.Equal(t, 0, p.refcount())
	require.True(t, p.isStateEmpty())

	p.addSessionToken("s1")
	p.addClientToken("c1")
	p.addClientToken("c1") // idempotent
	require.Equal(t, 2, p.refcount())

	p.removeSessionToken("s1")
	p.removeClientToken("c1")
	require.Equal(t, 0, p.refcount())
	require.True(t, p.isStateEmpty())
}
