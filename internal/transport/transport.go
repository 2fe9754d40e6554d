// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package transport defines the collaborator contracts between the broker
// core and the outside world: provider discovery, backend connections,
// backend sessions and connected clients. All implementations must be safe
// for concurrent use; asynchronous completions may arrive on any goroutine.
package transport

// ProviderDescriptor describes one discoverable backend provider.
type ProviderDescriptor struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // e.g. "tuner", "hdmi"
}

// ConnectedState is the externally observable status of a provider,
// independent of whether the broker currently holds a binding to it.
type ConnectedState string

const (
	StateConnected        ConnectedState = "CONNECTED"
	StateConnectedStandby ConnectedState = "CONNECTED_STANDBY"
	StateDisconnected     ConnectedState = "DISCONNECTED"
)

// SessionEventType identifies a session-scoped backend event.
type SessionEventType string

const (
	EventRetuned          SessionEventType = "retuned"
	EventTracksChanged    SessionEventType = "tracks_changed"
	EventVideoAvailable   SessionEventType = "video_available"
	EventVideoUnavailable SessionEventType = "video_unavailable"
	EventCustom           SessionEventType = "custom"
)

// TrackInfo describes one media track offered by a tuned channel.
type TrackInfo struct {
	Type     string `json:"type"` // "audio", "video", "subtitle"
	ID       string `json:"id"`
	Language string `json:"language,omitempty"`
}

// SessionEvent is a session-scoped event pushed by a backend.
type SessionEvent struct {
	Type    SessionEventType  `json:"type"`
	Channel string            `json:"channel,omitempty"` // retune target
	Tracks  []TrackInfo       `json:"tracks,omitempty"`
	Reason  int               `json:"reason,omitempty"` // video-unavailable reason
	Name    string            `json:"name,omitempty"`   // custom event name
	Args    map[string]string `json:"args,omitempty"`
}

// Op is an uncorrelated control operation forwarded to a backend session
// (volume, captions, track selection and similar).
type Op struct {
	Name string
	Args map[string]string
}

// InputEvent is a correlated request that requires a handled/unhandled
// completion from the backend within the operation timeout.
type InputEvent struct {
	Kind    string
	Payload []byte
}

// SessionHandle is a live backend session. All methods are best-effort
// forwards over the backend transport.
type SessionHandle interface {
	// Tune requests the session to tune to the given channel.
	Tune(channel string) error

	// Dispatch forwards an uncorrelated control operation.
	Dispatch(op Op) error

	// SendInput forwards a correlated input event. The completion arrives
	// via SessionObserver.InputFinished with the same seq.
	SendInput(seq uint32, ev InputEvent) error

	// Release tears the backend session down. Best effort.
	Release() error
}

// SessionObserver receives asynchronous results for one session.
type SessionObserver interface {
	// SessionCreated delivers the backend session handle, or nil when the
	// backend failed to materialize the session.
	SessionCreated(handle SessionHandle)

	// SessionEvent delivers a session-scoped backend event.
	SessionEvent(ev SessionEvent)

	// InputFinished completes a correlated input event.
	InputFinished(seq uint32, handled bool)
}

// ServiceObserver receives provider-level callbacks from a bound backend.
type ServiceObserver interface {
	ConnectedStateChanged(state ConnectedState)
}

// Service is the backend session transport of a bound provider.
type Service interface {
	// CreateSession asks the backend to materialize a session. The result
	// arrives asynchronously via obs.SessionCreated. The backend end of the
	// endpoint pair is handed over here; the client end travels back with
	// the creation notification.
	CreateSession(ep *Endpoint, obs SessionObserver) error

	// RegisterCallback subscribes to provider-level state callbacks.
	// At most one observer is registered per bound service.
	RegisterCallback(obs ServiceObserver) error

	// UnregisterCallback removes the provider-level observer.
	UnregisterCallback() error
}

// ConnectionObserver receives bind lifecycle notifications. Connected and
// Disconnected may be invoked at any time after Bind returns.
type ConnectionObserver interface {
	ServiceConnected(providerID string, svc Service)
	ServiceDisconnected(providerID string)
}

// Connector establishes connections to provider backends. Bind is
// asynchronous and may never complete; the broker must tolerate that.
type Connector interface {
	// Bind requests a connection. It returns false when the bind could not
	// even be issued (e.g. the backend binary is being replaced); in that
	// case no observer callback will ever fire for this attempt.
	Bind(providerID string, obs ConnectionObserver) bool

	// Unbind drops the connection. Safe to call when not bound.
	Unbind(providerID string)
}

// Client is the outbound notification surface for one connected client
// process. Implementations must not block the caller; slow clients are the
// dispatcher's problem, not the broker's.
type Client interface {
	// Token returns the client's stable, death-watchable identity.
	Token() string

	// SessionCreated completes a session creation request. An empty session
	// token signals failure; ep is nil in that case.
	SessionCreated(providerID, sessionToken string, ep *Endpoint, seq int32)

	// SessionReleased notifies that the session identified by seq was torn
	// down by the broker (client death of the backend, user removal, etc.).
	SessionReleased(seq int32)

	// SessionEventReceived delivers a session event, demultiplexed by the
	// client-supplied seq.
	SessionEventReceived(ev SessionEvent, seq int32)

	// OnDeath registers a liveness handler. The returned cancel func
	// unregisters it; both are idempotent.
	OnDeath(fn func()) (cancel func())
}

// StateCallback observes provider connected-state changes.
type StateCallback interface {
	ProviderStateChanged(providerID string, state ConnectedState)
}

// Discovery enumerates the currently installed providers. Must be
// idempotent and safe to call repeatedly.
type Discovery interface {
	EnumerateProviders() ([]ProviderDescriptor, error)
}
