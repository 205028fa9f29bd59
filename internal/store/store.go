package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrExists is returned when creating a record whose key is taken.
	ErrExists = errors.New("store: already exists")
)

// TableStatus is the persistent lifecycle state of a table.
type TableStatus string

const (
	TableWaiting TableStatus = "waiting"
	TableRunning TableStatus = "running"
	TableEnded   TableStatus = "ended"
)

// TableRecord is the persisted form of a table. ConfigJSON is the serialized
// game configuration; the store does not interpret it.
type TableRecord struct {
	ID         string
	Status     TableStatus
	ConfigJSON []byte
	Seed       string
	BucketKey  string
	CreatedAt  time.Time
}

// SeatRecord is one persisted seat assignment.
type SeatRecord struct {
	TableID  string
	SeatID   int
	AgentID  string
	Stack    int
	IsActive bool
}

// SessionRecord binds an agent to a seat at a table for a bounded time.
type SessionRecord struct {
	ID        string
	AgentID   string
	TableID   string
	SeatID    int
	ExpiresAt time.Time
}

// EventRecord is one durable event log entry. Seq is unique and dense per
// table.
type EventRecord struct {
	TableID    string
	Seq        uint64
	HandNumber int
	Type       string
	Payload    []byte
	CreatedAt  time.Time
}

// AgentRecord is a registered agent. Only the hash of the API key is stored.
type AgentRecord struct {
	ID         string
	Name       string
	APIKeyHash string
	LastSeenAt time.Time
}

// Store is the persistence boundary of the server. Implementations must be
// safe for concurrent use.
type Store interface {
	CreateTable(ctx context.Context, t TableRecord) error
	TableByID(ctx context.Context, id string) (TableRecord, error)
	// ListTables filters by status; an empty status returns every table.
	ListTables(ctx context.Context, status TableStatus) ([]TableRecord, error)
	UpdateTableStatus(ctx context.Context, id string, status TableStatus) error

	UpsertSeat(ctx context.Context, s SeatRecord) error
	SeatsForTable(ctx context.Context, tableID string) ([]SeatRecord, error)
	// UpdateSeatStacks persists final stacks in one transaction.
	UpdateSeatStacks(ctx context.Context, tableID string, seats []SeatRecord) error
	ClearSeat(ctx context.Context, tableID string, seatID int) error

	CreateSession(ctx context.Context, s SessionRecord) error
	SessionByID(ctx context.Context, id string) (SessionRecord, error)
	RevokeSessions(ctx context.Context, agentID, tableID string) error

	AppendEvent(ctx context.Context, e EventRecord) error
	// Events returns entries with seq >= fromSeq, ascending, at most limit.
	Events(ctx context.Context, tableID string, fromSeq uint64, limit int) ([]EventRecord, error)

	CreateAgent(ctx context.Context, a AgentRecord) error
	AgentByID(ctx context.Context, id string) (AgentRecord, error)
	AgentByKeyHash(ctx context.Context, hash string) (AgentRecord, error)
	TouchAgent(ctx context.Context, id string, seen time.Time) error

	Close() error
}
