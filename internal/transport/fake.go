// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transport

import (
	"errors"
	"sync"
	"time"
)

// FakeConnector is an in-memory Connector used by tests and by the daemon's
// virtual mode. Bind completion is driven either automatically (AutoConnect)
// or manually via Connect/Disconnect.
type FakeConnector struct {
	// AutoConnect completes every Bind after ConnectDelay.
	AutoConnect  bool
	ConnectDelay time.Duration

	// RefuseBind makes Bind return false without side effects.
	RefuseBind bool

	// HangBind accepts the bind but never completes it.
	HangBind bool

	// HoldCreate, FailCreate and RejectCreate are copied onto every
	// FakeService this connector materializes.
	HoldCreate   bool
	FailCreate   bool
	RejectCreate bool

	mu       sync.Mutex
	bound    map[string]*binding
	binds    map[string]int
	unbinds  map[string]int
	services map[string]*FakeService
}

type binding struct {
	obs ConnectionObserver
	svc *FakeService
}

// NewFakeConnector returns a connector that completes binds immediately.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{AutoConnect: true}
}

func (c *FakeConnector) Bind(providerID string, obs ConnectionObserver) bool {
	c.mu.Lock()
	if c.RefuseBind {
		c.mu.Unlock()
		return false
	}
	if c.bound == nil {
		c.bound = make(map[string]*binding)
		c.binds = make(map[string]int)
		c.unbinds = make(map[string]int)
		c.services = make(map[string]*FakeService)
	}
	c.binds[providerID]++
	b := &binding{obs: obs}
	c.bound[providerID] = b
	auto := c.AutoConnect && !c.HangBind
	delay := c.ConnectDelay
	c.mu.Unlock()

	if auto {
		go func() {
			if delay > 0 {
				time.Sleep(delay)
			}
			c.Connect(providerID)
		}()
	}
	return true
}

func (c *FakeConnector) Unbind(providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unbinds == nil {
		c.unbinds = make(map[string]int)
	}
	c.unbinds[providerID]++
	delete(c.bound, providerID)
}

// Connect completes an outstanding bind, creating a FakeService for the
// provider. No-op when the provider is not bound.
func (c *FakeConnector) Connect(providerID string) *FakeService {
	c.mu.Lock()
	b, ok := c.bound[providerID]
	if !ok || b.svc != nil {
		c.mu.Unlock()
		return nil
	}
	svc := NewFakeService()
	svc.HoldCreate = c.HoldCreate
	svc.FailCreate = c.FailCreate
	svc.RejectCreate = c.RejectCreate
	b.svc = svc
	c.services[providerID] = svc
	obs := b.obs
	c.mu.Unlock()

	obs.ServiceConnected(providerID, svc)
	return svc
}

// Disconnect simulates a backend crash: the connection observer is told the
// service is gone, but the connector still considers a bind outstanding
// (mirroring OS service managers that will restart the process).
func (c *FakeConnector) Disconnect(providerID string) {
	c.mu.Lock()
	b, ok := c.bound[providerID]
	if !ok {
		c.mu.Unlock()
		return
	}
	b.svc = nil
	delete(c.services, providerID)
	obs := b.obs
	c.mu.Unlock()

	obs.ServiceDisconnected(providerID)
}

// Service returns the live FakeService for a provider, or nil.
func (c *FakeConnector) Service(providerID string) *FakeService {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.services[providerID]
}

// BindCount reports how many times Bind was called for the provider.
func (c *FakeConnector) BindCount(providerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binds[providerID]
}

// UnbindCount reports how many times Unbind was called for the provider.
func (c *FakeConnector) UnbindCount(providerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unbinds[providerID]
}

// FakeService is an in-memory backend session transport.
type FakeService struct {
	// FailCreate makes CreateSession confirm with a nil handle.
	FailCreate bool

	// HoldCreate accepts CreateSession but never confirms, leaving the
	// session pending until the service disconnects.
	HoldCreate bool

	// RejectCreate makes CreateSession fail synchronously, the way a dead
	// transport would.
	RejectCreate bool

	mu       sync.Mutex
	observer ServiceObserver
	sessions []*FakeSession
	pending  []SessionObserver
}

func NewFakeService() *FakeService {
	return &FakeService{}
}

func (s *FakeService) CreateSession(ep *Endpoint, obs SessionObserver) error {
	s.mu.Lock()
	if s.RejectCreate {
		s.mu.Unlock()
		return errors.New("fake: create rejected")
	}
	if s.HoldCreate {
		s.pending = append(s.pending, obs)
		s.mu.Unlock()
		return nil
	}
	fail := s.FailCreate
	var sess *FakeSession
	if !fail {
		sess = &FakeSession{observer: obs, endpoint: ep}
		s.sessions = append(s.sessions, sess)
	}
	s.mu.Unlock()

	go func() {
		if fail {
			obs.SessionCreated(nil)
			return
		}
		obs.SessionCreated(sess)
	}()
	return nil
}

func (s *FakeService) RegisterCallback(obs ServiceObserver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = obs
	return nil
}

func (s *FakeService) UnregisterCallback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = nil
	return nil
}

// HasCallback reports whether a provider-level observer is registered.
func (s *FakeService) HasCallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observer != nil
}

// PushState delivers a connected-state change to the registered observer.
func (s *FakeService) PushState(state ConnectedState) {
	s.mu.Lock()
	obs := s.observer
	s.mu.Unlock()
	if obs != nil {
		obs.ConnectedStateChanged(state)
	}
}

// Sessions returns the sessions materialized so far.
func (s *FakeService) Sessions() []*FakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FakeSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// FakeSession implements SessionHandle and records everything forwarded to it.
type FakeSession struct {
	observer SessionObserver
	endpoint *Endpoint

	mu sync.Mutex

	// silentInput suppresses InputFinished completions, forcing timeouts.
	silentInput bool

	// inputHandled is the handled flag reported for completed inputs.
	inputHandled bool

	tunes    []string
	ops      []Op
	inputs   []uint32
	released int
}

func (f *FakeSession) Tune(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tunes = append(f.tunes, channel)
	return nil
}

func (f *FakeSession) Dispatch(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	return nil
}

func (f *FakeSession) SendInput(seq uint32, ev InputEvent) error {
	f.mu.Lock()
	f.inputs = append(f.inputs, seq)
	silent := f.silentInput
	handled := f.inputHandled
	obs := f.observer
	f.mu.Unlock()

	if !silent && obs != nil {
		go obs.InputFinished(seq, handled)
	}
	return nil
}

func (f *FakeSession) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

// PushEvent delivers a session event to the broker-side observer.
func (f *FakeSession) PushEvent(ev SessionEvent) {
	f.observer.SessionEvent(ev)
}

// FinishInput delivers a late or manual input completion.
func (f *FakeSession) FinishInput(seq uint32, handled bool) {
	f.observer.InputFinished(seq, handled)
}

// SetSilentInput toggles suppression of input completions.
func (f *FakeSession) SetSilentInput(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silentInput = v
}

// SetInputHandled sets the handled flag reported for completed inputs.
func (f *FakeSession) SetInputHandled(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputHandled = v
}

// Inputs returns the recorded input sequence numbers.
func (f *FakeSession) Inputs() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint32, len(f.inputs))
	copy(out, f.inputs)
	return out
}

// Tunes returns the recorded tune targets.
func (f *FakeSession) Tunes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.tunes))
	copy(out, f.tunes)
	return out
}

// Ops returns the recorded control operations.
func (f *FakeSession) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Op, len(f.ops))
	copy(out, f.ops)
	return out
}

// ReleaseCount reports how many times Release was called.
func (f *FakeSession) ReleaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// FakeClient records notifications in arrival order.
type FakeClient struct {
	token string

	mu       sync.Mutex
	created  []CreatedNotification
	released []int32
	events   []EventNotification
	handlers []func()
	dead     bool
}

// CreatedNotification is one recorded SessionCreated call.
type CreatedNotification struct {
	ProviderID string
	Token      string
	Seq        int32
}

// EventNotification is one recorded SessionEventReceived call.
type EventNotification struct {
	Event SessionEvent
	Seq   int32
}

func NewFakeClient(token string) *FakeClient {
	return &FakeClient{token: token}
}

func (c *FakeClient) Token() string { return c.token }

func (c *FakeClient) SessionCreated(providerID, sessionToken string, _ *Endpoint, seq int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, CreatedNotification{ProviderID: providerID, Token: sessionToken, Seq: seq})
}

func (c *FakeClient) SessionReleased(seq int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, seq)
}

func (c *FakeClient) SessionEventReceived(ev SessionEvent, seq int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, EventNotification{Event: ev, Seq: seq})
}

func (c *FakeClient) OnDeath(fn func()) func() {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		go fn()
		return func() {}
	}
	c.handlers = append(c.handlers, fn)
	idx := len(c.handlers) - 1
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.handlers) {
			c.handlers[idx] = nil
		}
	}
}

// Die fires all registered death handlers, once.
func (c *FakeClient) Die() {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return
	}
	c.dead = true
	handlers := make([]func(), 0, len(c.handlers))
	for _, h := range c.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	c.handlers = nil
	c.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Created returns the recorded creation notifications.
func (c *FakeClient) Created() []CreatedNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CreatedNotification, len(c.created))
	copy(out, c.created)
	return out
}

// Released returns the recorded release notifications.
func (c *FakeClient) Released() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int32, len(c.released))
	copy(out, c.released)
	return out
}

// Events returns the recorded session events.
func (c *FakeClient) Events() []EventNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventNotification, len(c.events))
	copy(out, c.events)
	return out
}

// FakeStateCallback records provider state changes in delivery order.
type FakeStateCallback struct {
	mu      sync.Mutex
	changes []StateChange
}

// StateChange is one recorded ProviderStateChanged call.
type StateChange struct {
	ProviderID string
	State      ConnectedState
}

func NewFakeStateCallback() *FakeStateCallback {
	return &FakeStateCallback{}
}

func (f *FakeStateCallback) ProviderStateChanged(providerID string, state ConnectedState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, StateChange{ProviderID: providerID, State: state})
}

// Changes returns the recorded state changes.
func (f *FakeStateCallback) Changes() []StateChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StateChange, len(f.changes))
	copy(out, f.changes)
	return out
}
