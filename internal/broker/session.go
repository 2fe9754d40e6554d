// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"time"

	"github.com/ManuGH/tvbroker/internal/transport"
)

// Identity is the principal a call is made under. Every session remembers
// its creator; only that identity or SystemIdentity may operate on it.
type Identity string

// SystemIdentity is the privileged principal used by internal cleanup paths
// (client death, user removal).
const SystemIdentity Identity = "system"

// SessionPhase is the client-visible lifecycle of a session record.
type SessionPhase string

const (
	// SessionPending means the backend has not confirmed creation yet.
	SessionPending SessionPhase = "PENDING"
	// SessionActive means the backend handle is live.
	SessionActive SessionPhase = "ACTIVE"
)

// sessionState is the Session Table's record for one client session. A
// record exists only while the session is PENDING or ACTIVE; released
// sessions leave no tombstone.
type sessionState struct {
	token      string
	providerID string
	seq        int32
	client     transport.Client
	caller     Identity
	userID     int

	phase SessionPhase

	// handle is non-nil iff phase == SessionActive.
	handle transport.SessionHandle

	// clientEndpoint is the client end of the session's endpoint pair,
	// held until the creation notification carries it out. backendEndpoint
	// is handed to the backend; it is kept here while the provider is still
	// binding so the create call can be issued once the service arrives.
	clientEndpoint  *transport.Endpoint
	backendEndpoint *transport.Endpoint

	// logEntry is the open watch-history entry id, or "" when none.
	logEntry string

	// ops correlates outstanding input events for this session.
	ops *correlator

	createdAt time.Time
}

func (s *sessionState) ownedBy(caller Identity) bool {
	return caller == SystemIdentity || caller == s.caller
}
