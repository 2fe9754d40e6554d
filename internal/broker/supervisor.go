// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"github.com/ManuGH/tvbroker/internal/log"
	"github.com/ManuGH/tvbroker/internal/transport"
)

// Connection supervision. Binding is purely refcount-driven: a provider is
// bound while it has consumers and unbound when the last one goes away.
// Bind triggers only consider consumers of the active user; unbind looks at
// the total refcount so a user switch never yanks live sessions.

// activeRefcountLocked counts consumers belonging to the current user.
func (b *Broker) activeRefcountLocked(p *providerState) int {
	n := 0
	for _, tok := range p.sessionTokens {
		if s, ok := b.sessions[tok]; ok && s.userID == b.currentUser {
			n++
		}
	}
	for _, tok := range p.clientTokens {
		if c, ok := b.clients[tok]; ok && c.userID == b.currentUser {
			n++
		}
	}
	return n
}

// updateConnectionLocked is the single decision point for bind, unbind and
// provider-level callback registration. Call it after any change to a
// provider's refcount, binding state or the active user.
func (b *Broker) updateConnectionLocked(p *providerState) {
	if b.closed {
		if p.binding != BindingUnbound {
			b.unbindLocked(p)
		}
		return
	}

	total := p.refcount()
	active := b.activeRefcountLocked(p)

	switch p.binding {
	case BindingUnbound:
		if active > 0 {
			b.bindLocked(p)
		}
	case BindingBinding, BindingReconnecting:
		if total == 0 {
			b.unbindLocked(p)
		}
	case BindingBound:
		if total == 0 {
			b.unbindLocked(p)
			return
		}
		b.syncCallbackLocked(p)
	}
}

func (b *Broker) bindLocked(p *providerState) {
	if err := p.transition(BindingBinding, nil); err != nil {
		b.logger.Error().Err(err).Str(log.FieldProviderID, p.info.ID).Msg("bind transition rejected")
		return
	}
	b.logger.Info().
		Str("event", "provider.bind").
		Str(log.FieldProviderID, p.info.ID).
		Int(log.FieldRefcount, p.refcount()).
		Msg("binding provider backend")
	if !b.connector.Bind(p.info.ID, connObserver{b}) {
		// The bind could not even be issued. Reset and wait for the next
		// refcount trigger.
		bindAttempts.WithLabelValues("refused").Inc()
		if err := p.transition(BindingUnbound, nil); err != nil {
			b.logger.Error().Err(err).Str(log.FieldProviderID, p.info.ID).Msg("unbind transition rejected")
		}
		return
	}
	bindAttempts.WithLabelValues("issued").Inc()
}

func (b *Broker) unbindLocked(p *providerState) {
	from := p.binding
	if p.service != nil && p.callbackRegistered {
		if err := p.service.UnregisterCallback(); err != nil {
			b.logger.Warn().Err(err).Str(log.FieldProviderID, p.info.ID).Msg("callback unregister failed")
		}
	}
	if err := p.transition(BindingUnbound, nil); err != nil {
		b.logger.Error().Err(err).Str(log.FieldProviderID, p.info.ID).Msg("unbind transition rejected")
		return
	}
	b.connector.Unbind(p.info.ID)
	b.logger.Info().
		Str("event", "provider.unbind").
		Str(log.FieldProviderID, p.info.ID).
		Str(log.FieldOldState, string(from)).
		Msg("provider backend unbound")
}

// syncCallbackLocked keeps the provider-level observer registration in step
// with subscription interest. Registration is established only while at
// least one subscriber exists, and re-established after a rebind.
func (b *Broker) syncCallbackLocked(p *providerState) {
	if p.service == nil {
		return
	}
	wantCallback := len(p.clientTokens) > 0
	switch {
	case wantCallback && !p.callbackRegistered:
		if err := p.service.RegisterCallback(svcObserver{b: b, providerID: p.info.ID}); err != nil {
			b.logger.Warn().Err(err).Str(log.FieldProviderID, p.info.ID).Msg("callback register failed")
			return
		}
		p.callbackRegistered = true
	case !wantCallback && p.callbackRegistered:
		if err := p.service.UnregisterCallback(); err != nil {
			b.logger.Warn().Err(err).Str(log.FieldProviderID, p.info.ID).Msg("callback unregister failed")
		}
		p.callbackRegistered = false
	}
}

// connObserver feeds bind lifecycle events back into the broker.
type connObserver struct{ b *Broker }

func (o connObserver) ServiceConnected(providerID string, svc transport.Service) {
	o.b.serviceConnected(providerID, svc)
}

func (o connObserver) ServiceDisconnected(providerID string) {
	o.b.serviceDisconnected(providerID)
}

// svcObserver feeds provider-level backend callbacks into the broker.
type svcObserver struct {
	b          *Broker
	providerID string
}

func (o svcObserver) ConnectedStateChanged(state transport.ConnectedState) {
	o.b.SetConnectedState(o.providerID, state)
}

func (b *Broker) serviceConnected(providerID string, svc transport.Service) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.providers[providerID]
	if !ok || b.closed {
		// Provider disappeared (or shutdown) while the bind was in flight.
		b.connector.Unbind(providerID)
		return
	}
	if p.binding != BindingBinding && p.binding != BindingReconnecting {
		b.logger.Warn().
			Str(log.FieldProviderID, providerID).
			Str(log.FieldBinding, string(p.binding)).
			Msg("unexpected service connect, ignoring")
		return
	}
	if err := p.transition(BindingBound, svc); err != nil {
		b.logger.Error().Err(err).Str(log.FieldProviderID, providerID).Msg("bound transition rejected")
		return
	}
	bindAttempts.WithLabelValues("connected").Inc()
	b.logger.Info().
		Str("event", "provider.connected").
		Str(log.FieldProviderID, providerID).
		Int(log.FieldRefcount, p.refcount()).
		Msg("provider backend connected")

	// Issue the deferred create calls for every session that was waiting on
	// this bind. CreateSession is a non-blocking post; confirmations arrive
	// through sessionObserver. A failed create removes its session from
	// p.sessionTokens, so iterate a snapshot.
	for _, tok := range append([]string(nil), p.sessionTokens...) {
		s, ok := b.sessions[tok]
		if !ok || s.phase != SessionPending {
			continue
		}
		b.issueCreateLocked(p, s)
	}

	b.updateConnectionLocked(p)
}

func (b *Broker) serviceDisconnected(providerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.providers[providerID]
	if !ok {
		return
	}
	if p.binding != BindingBound && p.binding != BindingBinding {
		return
	}
	backendDisconnects.Inc()
	b.logger.Warn().
		Str("event", "provider.disconnected").
		Str(log.FieldProviderID, providerID).
		Int(log.FieldRefcount, p.refcount()).
		Msg("provider backend disconnected")

	// Every session still awaiting creation confirmation must be resolved
	// now. Waiting for a reconnect that may never come would leave callers
	// hanging forever.
	for _, tok := range append([]string(nil), p.sessionTokens...) {
		s, ok := b.sessions[tok]
		if !ok {
			continue
		}
		if s.phase == SessionPending {
			b.notifyCreateFailedLocked(s)
			b.removeSessionLocked(s, false)
		}
	}

	// Surface the loss to state observers before entering RECONNECTING;
	// further backend-driven state changes are suppressed until rebound.
	if p.connected != transport.StateDisconnected {
		p.connected = transport.StateDisconnected
		b.fanoutStateLocked(providerID, transport.StateDisconnected)
	}

	// Resolving pending sessions may already have drained the refcount and
	// unbound the provider through updateConnectionLocked.
	if p.binding == BindingUnbound {
		return
	}
	if p.refcount() > 0 {
		if err := p.transition(BindingReconnecting, nil); err != nil {
			b.logger.Error().Err(err).Str(log.FieldProviderID, providerID).Msg("reconnecting transition rejected")
		}
		return
	}
	b.unbindLocked(p)
}
