package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentfelt/agentfelt/internal/game"
	"github.com/agentfelt/agentfelt/internal/store"
)

const (
	eventLogBuffer  = 256
	eventLogTimeout = 5 * time.Second
)

type logEntry struct {
	rec   store.EventRecord
	await chan error
}

// EventLog is the append-only durable record for one table. A single writer
// goroutine serializes all writes, so callers never block on the database:
// street and action events are fire-and-forget, lifecycle events are awaited
// with one retry. Append after Close drops the events; table teardown can
// race in-flight action and timer paths that already released the action
// lock.
type EventLog struct {
	tableID string
	store   store.Store
	logger  *log.Logger
	ch      chan logEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewEventLog starts the writer goroutine for a table.
func NewEventLog(tableID string, st store.Store, logger *log.Logger) *EventLog {
	l := &EventLog{
		tableID: tableID,
		store:   st,
		logger:  logger.WithPrefix("eventlog").With("table_id", tableID),
		ch:      make(chan logEntry, eventLogBuffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLog) record(ev game.Event) (store.EventRecord, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return store.EventRecord{}, err
	}
	return store.EventRecord{
		TableID:    l.tableID,
		Seq:        ev.Seq,
		HandNumber: ev.HandNumber,
		Type:       string(ev.Type),
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Append writes all events in order. Lifecycle events block until durable;
// everything else is enqueued fire-and-forget. The first lifecycle write
// failure is returned. A closed log drops everything and returns nil.
func (l *EventLog) Append(events []game.Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		if len(events) > 0 {
			l.logger.Debug("append after close, dropping events", "count", len(events))
		}
		return nil
	}

	var firstErr error
	for _, ev := range events {
		rec, err := l.record(ev)
		if err != nil {
			l.logger.Error("encode event", "type", ev.Type, "error", err)
			continue
		}

		if ev.Type.Lifecycle() {
			await := make(chan error, 1)
			l.ch <- logEntry{rec: rec, await: await}
			if err := <-await; err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		select {
		case l.ch <- logEntry{rec: rec}:
		default:
			l.logger.Error("event log buffer full, dropping event", "seq", ev.Seq, "type", ev.Type)
		}
	}
	return firstErr
}

// Range reads a slice of the durable log.
func (l *EventLog) Range(ctx context.Context, fromSeq uint64, limit int) ([]store.EventRecord, error) {
	return l.store.Events(ctx, l.tableID, fromSeq, limit)
}

// Close drains pending writes and stops the writer. Idempotent; any Append
// in flight finishes its sends before the channel closes.
func (l *EventLog) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.ch)
	<-l.done
}

func (l *EventLog) run() {
	defer close(l.done)
	for entry := range l.ch {
		err := l.write(entry.rec)
		if err != nil && entry.await != nil {
			// Lifecycle events get one retry before the failure surfaces.
			err = l.write(entry.rec)
		}
		if err != nil {
			l.logger.Error("append event", "seq", entry.rec.Seq, "type", entry.rec.Type, "error", err)
		}
		if entry.await != nil {
			entry.await <- err
		}
	}
}

func (l *EventLog) write(rec store.EventRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), eventLogTimeout)
	defer cancel()
	return l.store.AppendEvent(ctx, rec)
}
