// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package watchlog keeps a history of what was watched on which provider.
// Writes are fire and forget: the broker posts open/update/close commands
// to a single worker goroutine that owns the store handle exclusively, so
// a slow persistence write never stalls session operations.
package watchlog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports an unknown entry id.
var ErrNotFound = errors.New("watchlog: entry not found")

// Entry is one watch-history row. An entry is open while EndAt is zero.
type Entry struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	Channel    string    `json:"channel"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at,omitempty"`

	// Program metadata, when known. ProgramEnd drives the split of an open
	// entry at the program boundary.
	Title      string    `json:"title,omitempty"`
	ProgramEnd time.Time `json:"program_end,omitempty"`

	// ContinuedFrom links a boundary-split continuation to its predecessor.
	ContinuedFrom string `json:"continued_from,omitempty"`
}

// Store persists watch-history entries.
type Store interface {
	Put(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	Update(ctx context.Context, id string, fn func(*Entry) error) (*Entry, error)
	List(ctx context.Context, limit int) ([]*Entry, error)
	Close() error
}
