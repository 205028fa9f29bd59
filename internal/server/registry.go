package server

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/agentfelt/agentfelt/internal/game"
)

// PlayerRef identifies one registered player socket.
type PlayerRef struct {
	Seat    int
	AgentID string
	Conn    *Conn
}

type playerConn struct {
	agentID string
	conn    *Conn
}

type tableConns struct {
	mu        sync.Mutex
	players   map[int]*playerConn
	observers map[*Conn]bool // value: showCards
}

// Registry owns every live socket, grouped per table. It is the only
// component that writes to socket sinks; everything else enqueues through it.
type Registry struct {
	logger *log.Logger

	mu     sync.Mutex
	tables map[string]*tableConns
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		logger: logger.WithPrefix("registry"),
		tables: make(map[string]*tableConns),
	}
}

func (r *Registry) table(tableID string) *tableConns {
	r.mu.Lock()
	defer r.mu.Unlock()
	tc, ok := r.tables[tableID]
	if !ok {
		tc = &tableConns{
			players:   make(map[int]*playerConn),
			observers: make(map[*Conn]bool),
		}
		r.tables[tableID] = tc
	}
	return tc
}

func (r *Registry) lookup(tableID string) *tableConns {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tables[tableID]
}

// Register attaches a player socket to a seat. A prior socket for the same
// seat is replaced and closed (last-writer-wins on reconnect).
func (r *Registry) Register(tableID, agentID string, seatID int, c *Conn) {
	tc := r.table(tableID)

	tc.mu.Lock()
	prior := tc.players[seatID]
	tc.players[seatID] = &playerConn{agentID: agentID, conn: c}
	tc.mu.Unlock()

	if prior != nil {
		prior.conn.CloseWithReason("replaced by reconnect")
	}
}

// Unregister detaches a player socket. A no-op when the seat has already
// been taken over by a newer socket.
func (r *Registry) Unregister(tableID string, seatID int, c *Conn) {
	tc := r.lookup(tableID)
	if tc == nil {
		return
	}

	tc.mu.Lock()
	if cur := tc.players[seatID]; cur != nil && cur.conn == c {
		delete(tc.players, seatID)
	}
	tc.mu.Unlock()
}

// RegisterObserver attaches a read-only socket.
func (r *Registry) RegisterObserver(tableID string, c *Conn, showCards bool) {
	tc := r.table(tableID)
	tc.mu.Lock()
	tc.observers[c] = showCards
	tc.mu.Unlock()
}

// UnregisterObserver detaches an observer socket.
func (r *Registry) UnregisterObserver(tableID string, c *Conn) {
	tc := r.lookup(tableID)
	if tc == nil {
		return
	}
	tc.mu.Lock()
	delete(tc.observers, c)
	tc.mu.Unlock()
}

// Players snapshots the registered player sockets, used at lifecycle start to
// promote sockets that connected before the runtime existed.
func (r *Registry) Players(tableID string) []PlayerRef {
	tc := r.lookup(tableID)
	if tc == nil {
		return nil
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]PlayerRef, 0, len(tc.players))
	for seat, pc := range tc.players {
		out = append(out, PlayerRef{Seat: seat, AgentID: pc.agentID, Conn: pc.conn})
	}
	return out
}

// ConnectionCount returns the number of open player sockets for a table.
func (r *Registry) ConnectionCount(tableID string) int {
	tc := r.lookup(tableID)
	if tc == nil {
		return 0
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.players)
}

// SendToSeat delivers one envelope to a single seat, if connected.
func (r *Registry) SendToSeat(tableID string, seatID int, env Envelope) {
	tc := r.lookup(tableID)
	if tc == nil {
		return
	}
	tc.mu.Lock()
	pc := tc.players[seatID]
	tc.mu.Unlock()
	if pc != nil {
		_ = pc.conn.Send(env)
	}
}

// BroadcastPlayers fans an envelope out to every player socket.
func (r *Registry) BroadcastPlayers(tableID string, env Envelope) {
	for _, p := range r.Players(tableID) {
		_ = p.Conn.Send(env)
	}
}

// Broadcast fans an envelope out to players and observers.
func (r *Registry) Broadcast(tableID string, env Envelope) {
	tc := r.lookup(tableID)
	if tc == nil {
		return
	}
	tc.mu.Lock()
	conns := make([]*Conn, 0, len(tc.players)+len(tc.observers))
	for _, pc := range tc.players {
		conns = append(conns, pc.conn)
	}
	for c := range tc.observers {
		conns = append(conns, c)
	}
	tc.mu.Unlock()

	for _, c := range conns {
		_ = c.Send(env)
	}
}

// StateViews is the set of projections computed under the action lock,
// delivered after release.
type StateViews struct {
	Seq      uint64
	Private  map[int]game.View
	Public   game.View
	Revealed game.View
}

// BroadcastState sends each player their private view and each observer the
// public (or revealed, for admin observers) view.
func (r *Registry) BroadcastState(tableID string, views StateViews) {
	tc := r.lookup(tableID)
	if tc == nil {
		return
	}

	tc.mu.Lock()
	type target struct {
		conn *Conn
		view game.View
	}
	targets := make([]target, 0, len(tc.players)+len(tc.observers))
	for seat, pc := range tc.players {
		view, ok := views.Private[seat]
		if !ok {
			view = views.Public
		}
		targets = append(targets, target{conn: pc.conn, view: view})
	}
	for c, showCards := range tc.observers {
		view := views.Public
		if showCards {
			view = views.Revealed
		}
		targets = append(targets, target{conn: c, view: view})
	}
	tc.mu.Unlock()

	for _, t := range targets {
		_ = t.conn.Send(newEnvelope(MsgGameState, tableID, views.Seq, t.view))
	}
}

// DisconnectAll closes every socket for a table and forgets the table.
func (r *Registry) DisconnectAll(tableID, reason string) {
	r.mu.Lock()
	tc := r.tables[tableID]
	delete(r.tables, tableID)
	r.mu.Unlock()
	if tc == nil {
		return
	}

	tc.mu.Lock()
	conns := make([]*Conn, 0, len(tc.players)+len(tc.observers))
	for _, pc := range tc.players {
		conns = append(conns, pc.conn)
	}
	for c := range tc.observers {
		conns = append(conns, c)
	}
	tc.players = make(map[int]*playerConn)
	tc.observers = make(map[*Conn]bool)
	tc.mu.Unlock()

	for _, c := range conns {
		c.CloseWithReason(reason)
	}
}
