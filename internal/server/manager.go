package server

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/agentfelt/agentfelt/internal/game"
	"github.com/agentfelt/agentfelt/internal/store"
)

// ErrTableExists is returned when creating a runtime for a table that
// already has one.
var ErrTableExists = errors.New("table runtime already exists")

// ManagedTable bundles one live runtime with its action lock and event log.
// Every mutation of the runtime must hold Lock; the log and lock are owned
// here and die with the table.
type ManagedTable struct {
	Runtime *game.Runtime
	Lock    sync.Mutex
	Log     *EventLog
}

// Manager is the process-wide registry of live tables and the single source
// of truth for "table is live in this process".
type Manager struct {
	logger *log.Logger
	store  store.Store
	timers *TimerFabric

	mu     sync.RWMutex
	tables map[string]*ManagedTable
}

// NewManager creates an empty table manager.
func NewManager(st store.Store, timers *TimerFabric, logger *log.Logger) *Manager {
	return &Manager{
		logger: logger.WithPrefix("manager"),
		store:  st,
		timers: timers,
		tables: make(map[string]*ManagedTable),
	}
}

// Create builds the runtime and event log for a table. Fails with
// ErrTableExists if the table is already live.
func (m *Manager) Create(tableID string, cfg game.Config) (*ManagedTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[tableID]; ok {
		return nil, ErrTableExists
	}
	mt := &ManagedTable{
		Runtime: game.NewRuntime(tableID, cfg, m.logger),
		Log:     NewEventLog(tableID, m.store, m.logger),
	}
	m.tables[tableID] = mt
	m.logger.Info("table runtime created", "table_id", tableID, "seed", cfg.Seed != "")
	return mt, nil
}

// Get returns the live table, if any.
func (m *Manager) Get(tableID string) (*ManagedTable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.tables[tableID]
	return mt, ok
}

// Has reports whether the table is live.
func (m *Manager) Has(tableID string) bool {
	_, ok := m.Get(tableID)
	return ok
}

// Count returns the number of live tables.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// Destroy cancels the table's timers, stops its event log and removes it.
// Idempotent; synchronous from the caller's perspective.
func (m *Manager) Destroy(tableID string) {
	m.mu.Lock()
	mt, ok := m.tables[tableID]
	delete(m.tables, tableID)
	m.mu.Unlock()
	if !ok {
		return
	}

	m.timers.CancelAll(tableID)
	mt.Log.Close()
	m.logger.Info("table runtime destroyed", "table_id", tableID)
}
