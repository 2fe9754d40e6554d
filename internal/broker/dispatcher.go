// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tvbroker/internal/log"
)

// dispatcher delivers client notifications off the broker lock while
// preserving per-owner FIFO order. Each owner (one per client token) gets
// a serialized queue drained by a single goroutine, so everything posted
// for one client arrives in post order, and a slow client never stalls
// another.
type dispatcher struct {
	queueSize int
	logger    zerolog.Logger

	mu     sync.Mutex
	queues map[string]*ownerQueue
	closed bool
	wg     sync.WaitGroup
}

type ownerQueue struct {
	ch chan func()
}

func newDispatcher(queueSize int) *dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &dispatcher{
		queueSize: queueSize,
		logger:    log.WithComponent("dispatcher"),
		queues:    make(map[string]*ownerQueue),
	}
}

// post enqueues fn on the owner's queue. Safe to call while holding the
// broker mutex; fn runs later on the owner's drain goroutine. Posts are
// dropped when the queue is full or the dispatcher is closed.
func (d *dispatcher) post(owner string, fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		eventsDropped.WithLabelValues("closed").Inc()
		return
	}
	q, ok := d.queues[owner]
	if !ok {
		q = &ownerQueue{ch: make(chan func(), d.queueSize)}
		d.queues[owner] = q
		d.wg.Add(1)
		go d.drain(owner, q)
	}
	d.mu.Unlock()

	select {
	case q.ch <- fn:
	default:
		eventsDropped.WithLabelValues("backpressure").Inc()
		d.logger.Warn().
			Str("event", "dispatch.drop").
			Str(log.FieldClientToken, owner).
			Msg("client queue full, notification dropped")
	}
}

func (d *dispatcher) drain(owner string, q *ownerQueue) {
	defer d.wg.Done()
	for fn := range q.ch {
		d.run(owner, fn)
	}
}

func (d *dispatcher) run(owner string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("event", "dispatch.panic").
				Str(log.FieldClientToken, owner).
				Interface("panic", r).
				Msg("client callback panicked")
		}
	}()
	fn()
	eventsDelivered.Inc()
}

// remove tears down the owner's queue once its backlog drains. Later
// posts for the same owner lazily create a fresh queue.
func (d *dispatcher) remove(owner string) {
	d.mu.Lock()
	q, ok := d.queues[owner]
	if ok {
		delete(d.queues, owner)
	}
	d.mu.Unlock()
	if ok {
		close(q.ch)
	}
}

// close stops accepting posts and waits for every queue to drain.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for owner, q := range d.queues {
		delete(d.queues, owner)
		close(q.ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
