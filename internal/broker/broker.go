// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package broker mediates between many client processes and a set of
// dynamically bound backend providers. It owns the provider, session and
// client registries behind a single mutex; all calls out to backends and
// clients are non-blocking posts whose completions re-enter the broker as
// ordinary method calls.
package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tvbroker/internal/log"
	"github.com/ManuGH/tvbroker/internal/transport"
)

// DefaultOpTimeout bounds how long a correlated input operation may stay
// unanswered before it resolves as not handled.
const DefaultOpTimeout = 2500 * time.Millisecond

// HistoryRecorder records watch activity as a fire-and-forget side effect.
// Implementations must not block; the broker ignores every failure beyond
// the recorder's own logging.
type HistoryRecorder interface {
	// Open starts an entry and returns its id immediately.
	Open(providerID, channel string, start time.Time) string
	// Close finalizes an entry.
	Close(entryID string, end time.Time)
}

// Options configures a Broker.
type Options struct {
	Connector transport.Connector

	// History receives watch-log entries. Optional.
	History HistoryRecorder

	// OpTimeout overrides DefaultOpTimeout when positive.
	OpTimeout time.Duration

	// DispatchQueue bounds each client's notification queue.
	DispatchQueue int

	// CurrentUser is the initially active user.
	CurrentUser int
}

// Broker is the session broker core.
type Broker struct {
	connector transport.Connector
	history   HistoryRecorder
	opTimeout time.Duration
	dispatch  *dispatcher
	logger    zerolog.Logger

	mu          sync.Mutex
	providers   map[string]*providerState
	providerIDs []string // enumeration order, drives replay order
	sessions    map[string]*sessionState
	clients     map[string]*clientState
	observers   []*stateObserver // registration order
	currentUser int
	closed      bool
	startedAt   time.Time
}

// stateObserver is one registered provider-state callback.
type stateObserver struct {
	token       string
	cb          transport.StateCallback
	cancelDeath func()
}

// New returns a Broker ready to accept providers via SetProviders.
func New(opts Options) *Broker {
	if opts.Connector == nil {
		panic("broker: Options.Connector is required")
	}
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &Broker{
		connector:   opts.Connector,
		history:     opts.History,
		opTimeout:   timeout,
		dispatch:    newDispatcher(opts.DispatchQueue),
		logger:      log.WithComponent("broker"),
		providers:   make(map[string]*providerState),
		sessions:    make(map[string]*sessionState),
		clients:     make(map[string]*clientState),
		currentUser: opts.CurrentUser,
		startedAt:   time.Now(),
	}
}

// SetProviders replaces the known provider set with the given enumeration.
// State for surviving providers is kept; removed providers have their
// sessions force-released and their bindings dropped.
func (b *Broker) SetProviders(list []transport.ProviderDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	seen := make(map[string]bool, len(list))
	order := make([]string, 0, len(list))
	for _, info := range list {
		if info.ID == "" || seen[info.ID] {
			continue
		}
		seen[info.ID] = true
		order = append(order, info.ID)
		if p, ok := b.providers[info.ID]; ok {
			p.info = info
			continue
		}
		b.providers[info.ID] = newProviderState(info)
		b.logger.Info().
			Str("event", "provider.added").
			Str(log.FieldProviderID, info.ID).
			Str("kind", info.Kind).
			Msg("provider discovered")
	}

	for id, p := range b.providers {
		if seen[id] {
			continue
		}
		b.logger.Info().
			Str("event", "provider.removed").
			Str(log.FieldProviderID, id).
			Msg("provider withdrawn")
		for _, tok := range append([]string(nil), p.sessionTokens...) {
			if s, ok := b.sessions[tok]; ok {
				b.forceReleaseLocked(s)
			}
		}
		for _, tok := range append([]string(nil), p.clientTokens...) {
			if c, ok := b.clients[tok]; ok {
				c.removeSubscription(id)
				p.removeClientToken(tok)
				b.maybeDropClientLocked(c)
			}
		}
		if p.binding != BindingUnbound {
			b.unbindLocked(p)
		}
		delete(b.providers, id)
	}

	b.providerIDs = order
	for _, id := range order {
		b.updateConnectionLocked(b.providers[id])
	}
}

// CreateSession asks the provider's backend to materialize a session for
// the given client. The result arrives asynchronously via the client's
// SessionCreated notification; an error return means the request was
// rejected before anything happened.
func (b *Broker) CreateSession(providerID string, client transport.Client, seq int32, userID int, caller Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrShuttingDown
	}
	p, ok := b.providers[providerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	// While waiting for a crashed backend to come back, new sessions are
	// rejected outright rather than queued.
	if p.binding == BindingReconnecting {
		sessionsCreated.WithLabelValues("rejected_reconnecting").Inc()
		return fmt.Errorf("%w: %s", ErrReconnecting, providerID)
	}

	c := b.ensureClientLocked(client, userID)

	token := uuid.NewString()
	clientEnd, backendEnd := transport.NewEndpointPair(token)
	s := &sessionState{
		token:           token,
		providerID:      providerID,
		seq:             seq,
		client:          client,
		caller:          caller,
		userID:          userID,
		phase:           SessionPending,
		clientEndpoint:  clientEnd,
		backendEndpoint: backendEnd,
		ops:             newCorrelator(b.opTimeout),
		createdAt:       time.Now(),
	}
	b.sessions[token] = s
	p.addSessionToken(token)
	c.addSessionToken(token)
	sessionsActive.Inc()

	b.logger.Info().
		Str("event", "session.create").
		Str(log.FieldProviderID, providerID).
		Str(log.FieldSessionToken, token).
		Str(log.FieldClientToken, client.Token()).
		Int(log.FieldUserID, userID).
		Msg("session requested")

	b.updateConnectionLocked(p)
	if p.binding == BindingBound {
		b.issueCreateLocked(p, s)
	}
	return nil
}

// issueCreateLocked forwards the backend create call for a pending session.
func (b *Broker) issueCreateLocked(p *providerState, s *sessionState) {
	ep := s.backendEndpoint
	s.backendEndpoint = nil
	if err := p.service.CreateSession(ep, sessObserver{b: b, token: s.token}); err != nil {
		b.logger.Warn().Err(err).
			Str(log.FieldProviderID, p.info.ID).
			Str(log.FieldSessionToken, s.token).
			Msg("backend create call failed")
		b.notifyCreateFailedLocked(s)
		b.removeSessionLocked(s, false)
	}
}

// sessionCreated completes a pending creation. A nil handle means the
// backend could not materialize the session.
func (b *Broker) sessionCreated(token string, handle transport.SessionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[token]
	if !ok {
		// The session was released (or resolved by a crash) while the
		// confirmation was in flight. Tear the orphan handle down.
		if handle != nil {
			if err := handle.Release(); err != nil {
				b.logger.Warn().Err(err).Str(log.FieldSessionToken, token).Msg("orphan handle release failed")
			}
		}
		return
	}
	if s.phase != SessionPending {
		// Duplicate or stale confirmation for a session that was already
		// resolved. The owner was notified once; drop this one.
		if handle != nil && handle != s.handle {
			if err := handle.Release(); err != nil {
				b.logger.Warn().Err(err).Str(log.FieldSessionToken, token).Msg("duplicate handle release failed")
			}
		}
		return
	}
	if handle == nil {
		sessionsCreated.WithLabelValues("backend_failed").Inc()
		b.notifyCreateFailedLocked(s)
		b.removeSessionLocked(s, false)
		return
	}

	s.phase = SessionActive
	s.handle = handle
	sessionsCreated.WithLabelValues("ok").Inc()
	b.logger.Info().
		Str("event", "session.active").
		Str(log.FieldSessionToken, token).
		Str(log.FieldProviderID, s.providerID).
		Msg("session confirmed")

	client, providerID, seq, ep := s.client, s.providerID, s.seq, s.clientEndpoint
	b.dispatch.post(client.Token(), func() {
		client.SessionCreated(providerID, token, ep, seq)
	})
}

// notifyCreateFailedLocked delivers the null-token completion for a session
// whose creation can no longer succeed. The caller removes the record.
func (b *Broker) notifyCreateFailedLocked(s *sessionState) {
	client, providerID, seq := s.client, s.providerID, s.seq
	b.dispatch.post(client.Token(), func() {
		client.SessionCreated(providerID, "", nil, seq)
	})
}

// ReleaseSession tears a session down. Only the creating identity (or the
// system identity) may release it. The first call performs the teardown;
// the token is forgotten afterwards, so a second call reports not found.
func (b *Broker) ReleaseSession(token string, caller Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, token)
	}
	if !s.ownedBy(caller) {
		return ErrAccessDenied
	}
	b.logger.Info().
		Str("event", "session.release").
		Str(log.FieldSessionToken, token).
		Str(log.FieldProviderID, s.providerID).
		Msg("session released by owner")
	b.removeSessionLocked(s, false)
	return nil
}

// forceReleaseLocked tears a session down on behalf of the system (backend
// gone, user removed, provider withdrawn) and tells the owner about it.
func (b *Broker) forceReleaseLocked(s *sessionState) {
	b.logger.Info().
		Str("event", "session.force_release").
		Str(log.FieldSessionToken, s.token).
		Str(log.FieldProviderID, s.providerID).
		Msg("session force released")
	b.removeSessionLocked(s, true)
}

// removeSessionLocked is the single teardown path. It flushes pending
// operations, releases the backend handle, closes the watch-log entry and
// the endpoints, and drops every reference to the record.
func (b *Broker) removeSessionLocked(s *sessionState, notifyOwner bool) {
	if _, ok := b.sessions[s.token]; !ok {
		return
	}
	delete(b.sessions, s.token)
	sessionsActive.Dec()
	sessionsReleased.Inc()

	s.ops.flush()

	if s.handle != nil {
		if err := s.handle.Release(); err != nil {
			b.logger.Warn().Err(err).Str(log.FieldSessionToken, s.token).Msg("backend release failed")
		}
		s.handle = nil
	}
	if s.logEntry != "" && b.history != nil {
		b.history.Close(s.logEntry, time.Now())
		s.logEntry = ""
	}
	if s.clientEndpoint != nil {
		s.clientEndpoint.Close()
	}
	if s.backendEndpoint != nil {
		s.backendEndpoint.Close()
	}

	if notifyOwner {
		client, seq := s.client, s.seq
		b.dispatch.post(client.Token(), func() {
			client.SessionReleased(seq)
		})
	}

	if p, ok := b.providers[s.providerID]; ok {
		p.removeSessionToken(s.token)
		b.updateConnectionLocked(p)
	}
	if c, ok := b.clients[s.client.Token()]; ok {
		c.removeSessionToken(s.token)
		b.maybeDropClientLocked(c)
	}
}

// Tune points an active session at a channel and rolls the watch-log entry
// over to it.
func (b *Broker) Tune(token string, caller Identity, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.activeSessionLocked(token, caller)
	if err != nil {
		return err
	}
	if err := s.handle.Tune(channel); err != nil {
		return fmt.Errorf("%w: tune: %v", ErrBackendUnavailable, err)
	}
	b.rollLogEntryLocked(s, channel)
	b.logger.Debug().
		Str("event", "session.tune").
		Str(log.FieldSessionToken, token).
		Str("channel", channel).
		Msg("tune forwarded")
	return nil
}

// rollLogEntryLocked closes the session's open watch-log entry, if any, and
// opens a new one for the given channel.
func (b *Broker) rollLogEntryLocked(s *sessionState, channel string) {
	if b.history == nil {
		return
	}
	now := time.Now()
	if s.logEntry != "" {
		b.history.Close(s.logEntry, now)
	}
	s.logEntry = b.history.Open(s.providerID, channel, now)
}

// DispatchOp forwards an uncorrelated control operation to an active
// session's backend.
func (b *Broker) DispatchOp(token string, caller Identity, op transport.Op) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.activeSessionLocked(token, caller)
	if err != nil {
		return err
	}
	if err := s.handle.Dispatch(op); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op.Name, err)
	}
	return nil
}

// SendInput forwards a correlated input event. done fires exactly once:
// with the backend's answer, with handled=false on timeout, or with
// handled=false when the session is torn down first. done may run on an
// internal goroutine or inside teardown and must not call back into the
// broker.
func (b *Broker) SendInput(token string, caller Identity, ev transport.InputEvent, done func(handled bool)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.activeSessionLocked(token, caller)
	if err != nil {
		return err
	}
	if done == nil {
		done = func(bool) {}
	}
	seq, ok := s.ops.track(done)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, token)
	}
	if err := s.handle.SendInput(seq, ev); err != nil {
		if s.ops.complete(seq, false) {
			pendingOpsTotal.WithLabelValues("transport_error").Inc()
		}
		return fmt.Errorf("%w: input: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// inputFinished completes a correlated input event. Late or unknown
// completions are counted and otherwise ignored.
func (b *Broker) inputFinished(token string, seq uint32, handled bool) {
	b.mu.Lock()
	s, ok := b.sessions[token]
	b.mu.Unlock()
	if !ok {
		pendingOpsTotal.WithLabelValues("spurious").Inc()
		return
	}
	if !s.ops.complete(seq, handled) {
		pendingOpsTotal.WithLabelValues("spurious").Inc()
		return
	}
	if handled {
		pendingOpsTotal.WithLabelValues("handled").Inc()
	} else {
		pendingOpsTotal.WithLabelValues("unhandled").Inc()
	}
}

// sessionEvent routes a backend session event to the owning client. Events
// for a token that is no longer tracked are dropped.
func (b *Broker) sessionEvent(token string, ev transport.SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[token]
	if !ok {
		eventsDropped.WithLabelValues("released").Inc()
		return
	}
	if ev.Type == transport.EventRetuned && ev.Channel != "" {
		// Backend-initiated retune moves the watch-log entry too.
		b.rollLogEntryLocked(s, ev.Channel)
	}
	client, seq := s.client, s.seq
	b.dispatch.post(client.Token(), func() {
		client.SessionEventReceived(ev, seq)
	})
}

// activeSessionLocked resolves a token to an active, caller-owned session.
func (b *Broker) activeSessionLocked(token string, caller Identity) (*sessionState, error) {
	if b.closed {
		return nil, ErrShuttingDown
	}
	s, ok := b.sessions[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, token)
	}
	if !s.ownedBy(caller) {
		return nil, ErrAccessDenied
	}
	if s.phase != SessionActive {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotReady, token)
	}
	return s, nil
}

// RegisterStateCallback subscribes cb to provider connected-state changes.
// The current state of every known provider is replayed, in enumeration
// order, before any live change reaches cb. Registering the same client
// again is a no-op; no duplicate replay is generated.
func (b *Broker) RegisterStateCallback(client transport.Client, cb transport.StateCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrShuttingDown
	}
	token := client.Token()
	for _, o := range b.observers {
		if o.token == token {
			return nil
		}
	}
	o := &stateObserver{token: token, cb: cb}
	o.cancelDeath = client.OnDeath(func() { b.clientDied(token) })
	b.observers = append(b.observers, o)

	// Replay is enqueued under the lock, so any live change generated later
	// lands behind it on the same per-client queue.
	for _, id := range b.providerIDs {
		p := b.providers[id]
		providerID, state := id, p.connected
		b.dispatch.post(token, func() {
			cb.ProviderStateChanged(providerID, state)
		})
	}
	return nil
}

// UnregisterStateCallback removes the client's state callback. For a client
// with no sessions or subscriptions this also retires its dispatch queue,
// which the replay posts created.
func (b *Broker) UnregisterStateCallback(clientToken string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeObserverLocked(clientToken)
	if _, ok := b.clients[clientToken]; !ok {
		b.dispatch.remove(clientToken)
	}
}

func (b *Broker) removeObserverLocked(clientToken string) {
	for i, o := range b.observers {
		if o.token != clientToken {
			continue
		}
		if o.cancelDeath != nil {
			o.cancelDeath()
		}
		b.observers = append(b.observers[:i], b.observers[i+1:]...)
		return
	}
}

// Subscribe registers the client's interest in a provider. Interest counts
// toward the provider's binding refcount and keeps a provider-level backend
// callback registered while the provider is bound.
func (b *Broker) Subscribe(client transport.Client, providerID string, userID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrShuttingDown
	}
	p, ok := b.providers[providerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	c := b.ensureClientLocked(client, userID)
	if c.hasSubscription(providerID) {
		return nil
	}
	c.addSubscription(providerID)
	p.addClientToken(c.token)
	b.updateConnectionLocked(p)
	return nil
}

// Unsubscribe drops the client's interest in a provider.
func (b *Broker) Unsubscribe(clientToken, providerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.clients[clientToken]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientToken)
	}
	if !c.hasSubscription(providerID) {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	c.removeSubscription(providerID)
	if p, ok := b.providers[providerID]; ok {
		p.removeClientToken(clientToken)
		b.updateConnectionLocked(p)
	}
	b.maybeDropClientLocked(c)
	return nil
}

// SetConnectedState records a provider's externally observable status and
// fans it out to state observers. Changes arriving while the provider is
// waiting for its backend to come back are recorded but not fanned out.
func (b *Broker) SetConnectedState(providerID string, state transport.ConnectedState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.providers[providerID]
	if !ok || p.connected == state {
		return
	}
	p.connected = state
	if p.binding == BindingReconnecting {
		return
	}
	b.fanoutStateLocked(providerID, state)
}

// fanoutStateLocked delivers a state change to every registered observer
// in registration order. The observer list is snapshotted so an unregister
// during delivery cannot disturb iteration.
func (b *Broker) fanoutStateLocked(providerID string, state transport.ConnectedState) {
	observers := append([]*stateObserver(nil), b.observers...)
	for _, o := range observers {
		cb := o.cb
		b.dispatch.post(o.token, func() {
			cb.ProviderStateChanged(providerID, state)
		})
	}
}

// SetCurrentUser switches the active user and re-evaluates every provider
// binding. Sessions of the previous user stay alive; their providers unbind
// only when the total refcount drains.
func (b *Broker) SetCurrentUser(userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.currentUser == userID {
		return
	}
	b.logger.Info().
		Str("event", "user.switch").
		Int("from", b.currentUser).
		Int("to", userID).
		Msg("active user changed")
	b.currentUser = userID
	for _, id := range b.providerIDs {
		b.updateConnectionLocked(b.providers[id])
	}
}

// RemoveUser force-releases every session and subscription belonging to the
// user and forgets their clients.
func (b *Broker) RemoveUser(userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.sessionsOfUserLocked(userID) {
		b.forceReleaseLocked(s)
	}
	for _, c := range b.clientsOfUserLocked(userID) {
		for _, id := range append([]string(nil), c.subscriptions...) {
			c.removeSubscription(id)
			if p, ok := b.providers[id]; ok {
				p.removeClientToken(c.token)
				b.updateConnectionLocked(p)
			}
		}
		b.removeObserverLocked(c.token)
		b.maybeDropClientLocked(c)
	}
	b.logger.Info().
		Str("event", "user.removed").
		Int(log.FieldUserID, userID).
		Msg("user state cleared")
}

func (b *Broker) sessionsOfUserLocked(userID int) []*sessionState {
	var out []*sessionState
	for _, s := range b.sessions {
		if s.userID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (b *Broker) clientsOfUserLocked(userID int) []*clientState {
	var out []*clientState
	for _, c := range b.clients {
		if c.userID == userID {
			out = append(out, c)
		}
	}
	return out
}

// ensureClientLocked returns the client's record, creating it and wiring
// the death watch on first contact.
func (b *Broker) ensureClientLocked(client transport.Client, userID int) *clientState {
	token := client.Token()
	if c, ok := b.clients[token]; ok {
		return c
	}
	c := &clientState{client: client, token: token, userID: userID}
	c.cancelDeath = client.OnDeath(func() { b.clientDied(token) })
	b.clients[token] = c
	b.logger.Debug().
		Str("event", "client.tracked").
		Str(log.FieldClientToken, token).
		Int(log.FieldUserID, userID).
		Msg("client registered")
	return c
}

// maybeDropClientLocked forgets a client record once it owns nothing.
func (b *Broker) maybeDropClientLocked(c *clientState) {
	if !c.isEmpty() {
		return
	}
	if c.cancelDeath != nil {
		c.cancelDeath()
	}
	delete(b.clients, c.token)
	b.dispatch.remove(c.token)
}

// clientDied runs the full cleanup for a client whose liveness watch fired.
// It walks the same paths as explicit release/unsubscribe.
func (b *Broker) clientDied(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeObserverLocked(token)

	c, ok := b.clients[token]
	if !ok {
		b.dispatch.remove(token)
		return
	}
	b.logger.Warn().
		Str("event", "client.died").
		Str(log.FieldClientToken, token).
		Int("sessions", len(c.sessionTokens)).
		Msg("client lost, reclaiming resources")

	for _, tok := range append([]string(nil), c.sessionTokens...) {
		if s, ok := b.sessions[tok]; ok {
			b.removeSessionLocked(s, false)
		}
	}
	for _, id := range append([]string(nil), c.subscriptions...) {
		c.removeSubscription(id)
		if p, ok := b.providers[id]; ok {
			p.removeClientToken(token)
			b.updateConnectionLocked(p)
		}
	}
	b.maybeDropClientLocked(c)
	b.dispatch.remove(token)
}

// Shutdown tears down every session, drops all bindings and drains the
// dispatcher. The broker accepts no work afterwards.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.allSessionsLocked() {
		b.removeSessionLocked(s, true)
	}
	for _, o := range b.observers {
		if o.cancelDeath != nil {
			o.cancelDeath()
		}
	}
	b.observers = nil
	for _, p := range b.providers {
		if p.binding != BindingUnbound {
			b.unbindLocked(p)
		}
	}
	for _, c := range b.clients {
		if c.cancelDeath != nil {
			c.cancelDeath()
		}
		delete(b.clients, c.token)
	}
	b.mu.Unlock()

	b.dispatch.close()
	b.logger.Info().Str("event", "broker.shutdown").Msg("broker stopped")
}

func (b *Broker) allSessionsLocked() []*sessionState {
	out := make([]*sessionState, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	return out
}

// sessObserver feeds backend session callbacks for one token into the
// broker.
type sessObserver struct {
	b     *Broker
	token string
}

func (o sessObserver) SessionCreated(handle transport.SessionHandle) {
	o.b.sessionCreated(o.token, handle)
}

func (o sessObserver) SessionEvent(ev transport.SessionEvent) {
	o.b.sessionEvent(o.token, ev)
}

func (o sessObserver) InputFinished(seq uint32, handled bool) {
	o.b.inputFinished(o.token, seq, handled)
}
