// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transport

import (
	"errors"
	"sync"
)

// ErrEndpointClosed is returned by Endpoint operations after Close.
var ErrEndpointClosed = errors.New("transport: endpoint closed")

// Endpoint is one end of a linked in-process conduit. A pair is created per
// session: the backend writes media/input frames into its end and the client
// reads them from the other. The broker never consumes endpoint traffic; it
// only plumbs the ends to the right parties.
type Endpoint struct {
	name string

	mu     sync.Mutex
	closed bool
	peer   *Endpoint
	ch     chan []byte
}

// NewEndpointPair returns two linked endpoints named after the owning
// session token.
func NewEndpointPair(name string) (client, backend *Endpoint) {
	a := &Endpoint{name: name + "/client", ch: make(chan []byte, 32)}
	b := &Endpoint{name: name + "/backend", ch: make(chan []byte, 32)}
	a.peer = b
	b.peer = a
	return a, b
}

// Name returns the endpoint's diagnostic name.
func (e *Endpoint) Name() string { return e.name }

// Send queues a frame for the peer. It drops the frame and reports no error
// when the peer's buffer is full; endpoint traffic is lossy by contract.
func (e *Endpoint) Send(frame []byte) error {
	e.mu.Lock()
	closed := e.closed
	peer := e.peer
	e.mu.Unlock()
	if closed || peer == nil {
		return ErrEndpointClosed
	}
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return ErrEndpointClosed
	}
	select {
	case peer.ch <- frame:
	default:
		// drop on backpressure
	}
	return nil
}

// Recv returns the channel frames arrive on. The channel is closed when the
// endpoint is closed.
func (e *Endpoint) Recv() <-chan []byte { return e.ch }

// Close disposes this end. Idempotent; the peer end stays usable for reads
// already queued but further Sends to it fail.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
