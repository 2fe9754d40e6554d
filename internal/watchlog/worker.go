// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package watchlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tvbroker/internal/log"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvbroker_watchlog_commands_total",
		Help: "Watch-log commands processed by kind.",
	}, []string{"kind"})

	commandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvbroker_watchlog_commands_dropped_total",
		Help: "Watch-log commands dropped on a full queue.",
	})

	storeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvbroker_watchlog_store_errors_total",
		Help: "Watch-log store failures (logged and ignored).",
	})
)

type cmdKind string

const (
	cmdOpen    cmdKind = "open"
	cmdProgram cmdKind = "program"
	cmdSplit   cmdKind = "split"
	cmdClose   cmdKind = "close"
)

type command struct {
	kind  cmdKind
	id    string // external entry id
	entry *Entry
	title string
	end   time.Time
}

// Worker serializes all watch-log writes onto one goroutine that owns the
// Store handle exclusively. It satisfies the broker's HistoryRecorder
// contract: Open returns an id immediately and every store interaction
// happens later, off the caller's path.
type Worker struct {
	store  Store
	logger zerolog.Logger

	mu     sync.Mutex
	cmds   chan command
	closed bool
	done   chan struct{}

	// Worker-goroutine state. active maps the external id handed to the
	// broker onto the current physical entry, which advances when an entry
	// is split at a program boundary.
	active map[string]string
	timers map[string]*time.Timer
}

// NewWorker starts the worker goroutine.
func NewWorker(store Store, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &Worker{
		store:  store,
		logger: log.WithComponent("watchlog"),
		cmds:   make(chan command, queueSize),
		done:   make(chan struct{}),
		active: make(map[string]string),
		timers: make(map[string]*time.Timer),
	}
	go w.run()
	return w
}

// Open starts a new entry and returns its id immediately.
func (w *Worker) Open(providerID, channel string, start time.Time) string {
	id := uuid.NewString()
	w.post(command{kind: cmdOpen, id: id, entry: &Entry{
		ID:         id,
		ProviderID: providerID,
		Channel:    channel,
		StartAt:    start,
	}})
	return id
}

// Close finalizes an entry.
func (w *Worker) Close(entryID string, end time.Time) {
	w.post(command{kind: cmdClose, id: entryID, end: end})
}

// SetProgram attaches program metadata to an open entry and schedules a
// split at the program boundary: when the program ends while the entry is
// still open, the entry is closed at the boundary and a linked continuation
// entry is opened under the same external id.
func (w *Worker) SetProgram(entryID, title string, end time.Time) {
	w.post(command{kind: cmdProgram, id: entryID, title: title, end: end})
}

// Stop drains the queue and stops the worker. Pending boundary timers are
// discarded; open entries stay open in the store.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.cmds)
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) post(c command) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		commandsDropped.Inc()
		return
	}
	select {
	case w.cmds <- c:
	default:
		commandsDropped.Inc()
		w.logger.Warn().Str("event", "watchlog.drop").Str("kind", string(c.kind)).Msg("command queue full")
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for c := range w.cmds {
		commandsTotal.WithLabelValues(string(c.kind)).Inc()
		switch c.kind {
		case cmdOpen:
			w.handleOpen(c)
		case cmdProgram:
			w.handleProgram(c)
		case cmdSplit:
			w.handleSplit(c, time.Time{})
		case cmdClose:
			w.handleClose(c)
		}
	}
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *Worker) handleOpen(c command) {
	if err := w.store.Put(context.Background(), c.entry); err != nil {
		w.storeError("open", c.id, err)
		return
	}
	w.active[c.id] = c.id
}

func (w *Worker) handleProgram(c command) {
	cur, ok := w.active[c.id]
	if !ok {
		return
	}
	_, err := w.store.Update(context.Background(), cur, func(e *Entry) error {
		e.Title = c.title
		e.ProgramEnd = c.end
		return nil
	})
	if err != nil {
		w.storeError("program", c.id, err)
		return
	}
	if t, ok := w.timers[c.id]; ok {
		t.Stop()
	}
	if until := time.Until(c.end); until > 0 {
		id := c.id
		w.timers[c.id] = time.AfterFunc(until, func() {
			w.post(command{kind: cmdSplit, id: id})
		})
	} else {
		// Program already over; split right away.
		w.handleSplit(command{kind: cmdSplit, id: c.id}, c.end)
	}
}

// handleSplit closes the current physical entry at the program boundary and
// opens a continuation under the same external id.
func (w *Worker) handleSplit(c command, boundary time.Time) {
	cur, ok := w.active[c.id]
	if !ok {
		return
	}
	prev, err := w.store.Get(context.Background(), cur)
	if err != nil {
		w.storeError("split", c.id, err)
		return
	}
	if boundary.IsZero() {
		boundary = prev.ProgramEnd
	}
	if boundary.IsZero() {
		boundary = time.Now()
	}
	if _, err := w.store.Update(context.Background(), cur, func(e *Entry) error {
		e.EndAt = boundary
		return nil
	}); err != nil {
		w.storeError("split", c.id, err)
		return
	}
	next := &Entry{
		ID:            uuid.NewString(),
		ProviderID:    prev.ProviderID,
		Channel:       prev.Channel,
		StartAt:       boundary,
		ContinuedFrom: cur,
	}
	if err := w.store.Put(context.Background(), next); err != nil {
		w.storeError("split", c.id, err)
		return
	}
	w.active[c.id] = next.ID
	w.logger.Debug().
		Str("event", "watchlog.split").
		Str(log.FieldEntryID, c.id).
		Str("continuation", next.ID).
		Msg("entry split at program boundary")
}

func (w *Worker) handleClose(c command) {
	cur, ok := w.active[c.id]
	if !ok {
		return
	}
	delete(w.active, c.id)
	if t, ok := w.timers[c.id]; ok {
		t.Stop()
		delete(w.timers, c.id)
	}
	end := c.end
	if end.IsZero() {
		end = time.Now()
	}
	if _, err := w.store.Update(context.Background(), cur, func(e *Entry) error {
		e.EndAt = end
		return nil
	}); err != nil {
		w.storeError("close", c.id, err)
	}
}

func (w *Worker) storeError(op, id string, err error) {
	storeErrors.Inc()
	w.logger.Warn().Err(err).
		Str("event", "watchlog.store_error").
		Str("op", op).
		Str(log.FieldEntryID, id).
		Msg("watch-log write failed")
}
