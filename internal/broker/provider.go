// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"fmt"

	"github.com/ManuGH/tvbroker/internal/transport"
)

// BindingState is the broker-internal connection lifecycle of a provider.
// Transitions happen only through the providerState methods below; ad hoc
// writes elsewhere are a bug.
type BindingState string

const (
	BindingUnbound      BindingState = "UNBOUND"
	BindingBinding      BindingState = "BINDING"
	BindingBound        BindingState = "BOUND"
	BindingReconnecting BindingState = "RECONNECTING"
)

// providerState is the broker's record for one logical provider. The record
// outlives individual bindings: it is created when the provider is first
// enumerated and destroyed only when the provider disappears from the
// manifest.
type providerState struct {
	info    transport.ProviderDescriptor
	binding BindingState

	// service is non-nil iff binding == BindingBound.
	service transport.Service

	// callbackRegistered tracks whether a provider-level observer is live
	// on the bound service.
	callbackRegistered bool

	// connected is the externally observable status, independent of binding.
	connected transport.ConnectedState

	// clientTokens holds the subscription holders, sessionTokens the live
	// and pending sessions. Their union is the binding refcount.
	clientTokens  []string
	sessionTokens []string
}

func newProviderState(info transport.ProviderDescriptor) *providerState {
	return &providerState{
		info:      info,
		binding:   BindingUnbound,
		connected: transport.StateConnected,
	}
}

func (p *providerState) refcount() int {
	return len(p.clientTokens) + len(p.sessionTokens)
}

func (p *providerState) isStateEmpty() bool {
	return len(p.clientTokens) == 0 && len(p.sessionTokens) == 0
}

// transition is the single mutation point for the binding state machine.
func (p *providerState) transition(to BindingState, svc transport.Service) error {
	from := p.binding
	valid := false
	switch to {
	case BindingBinding:
		valid = from == BindingUnbound
	case BindingBound:
		valid = from == BindingBinding || from == BindingReconnecting
	case BindingReconnecting:
		valid = from == BindingBound || from == BindingBinding
	case BindingUnbound:
		valid = true // always a legal reset
	}
	if !valid {
		return fmt.Errorf("broker: invalid binding transition %s -> %s for %s", from, to, p.info.ID)
	}
	if to == BindingBound && svc == nil {
		return fmt.Errorf("broker: BOUND requires a service handle for %s", p.info.ID)
	}
	if to != BindingBound && svc != nil {
		return fmt.Errorf("broker: service handle only valid for BOUND (%s)", p.info.ID)
	}
	p.binding = to
	p.service = svc
	if to != BindingBound {
		p.callbackRegistered = false
	}
	fsmTransitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

func (p *providerState) addSessionToken(token string) {
	p.sessionTokens = append(p.sessionTokens, token)
}

func (p *providerState) removeSessionToken(token string) {
	p.sessionTokens = removeString(p.sessionTokens, token)
}

func (p *providerState) addClientToken(token string) {
	for _, t := range p.clientTokens {
		if t == token {
			return
		}
	}
	p.clientTokens = append(p.clientTokens, token)
}

func (p *providerState) removeClientToken(token string) {
	p.clientTokens = removeString(p.clientTokens, token)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
