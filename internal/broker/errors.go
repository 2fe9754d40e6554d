// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import "errors"

// Expected failures. These are recovered locally and surfaced to the caller
// as typed results; they never abort the control path.
var (
	// ErrProviderNotFound reports an unknown provider id.
	ErrProviderNotFound = errors.New("broker: provider not found")

	// ErrSessionNotFound reports an unknown or already released session token.
	ErrSessionNotFound = errors.New("broker: session not found")

	// ErrClientNotFound reports an unknown client token.
	ErrClientNotFound = errors.New("broker: client not found")

	// ErrAccessDenied reports a caller that neither owns the session nor
	// holds the system identity.
	ErrAccessDenied = errors.New("broker: access denied")

	// ErrReconnecting reports a provider that is waiting for its backend to
	// come back. New session creation is rejected outright in this state.
	ErrReconnecting = errors.New("broker: provider reconnecting")

	// ErrSessionNotReady reports an operation on a session whose backend
	// creation has not been confirmed yet.
	ErrSessionNotReady = errors.New("broker: session not yet created")

	// ErrBackendUnavailable reports that the provider has no live backend.
	ErrBackendUnavailable = errors.New("broker: backend unavailable")

	// ErrShuttingDown reports that the broker no longer accepts work.
	ErrShuttingDown = errors.New("broker: shutting down")
)
