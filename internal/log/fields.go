// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldProviderID    = "provider_id"
	FieldSessionToken  = "session_token"
	FieldClientToken   = "client_token"
	FieldUserID        = "user_id"
	FieldSeq           = "seq"
	FieldEntryID       = "entry_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldBinding  = "binding"
	FieldRefcount = "refcount"
)
