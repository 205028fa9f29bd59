package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/agentfelt/agentfelt/internal/game"
	"github.com/agentfelt/agentfelt/internal/store"
)

// EndSource says which path asked for termination.
type EndSource string

const (
	SourceTimeout     EndSource = "timeout"
	SourceAbandonment EndSource = "abandonment"
	SourceAdmin       EndSource = "admin"
	SourceInternal    EndSource = "internal"
)

// EndRequest is the single input to table termination.
type EndRequest struct {
	TableID string
	Reason  string
	Source  EndSource
}

// Lifecycle owns table start and end. All dependencies are passed in
// explicitly; nothing here holds a pointer back to its callers.
type Lifecycle struct {
	cfg      Config
	store    store.Store
	manager  *Manager
	registry *Registry
	timers   *TimerFabric
	metrics  *Metrics
	logger   *log.Logger
}

// NewLifecycle wires the controller.
func NewLifecycle(cfg Config, st store.Store, manager *Manager, registry *Registry, timers *TimerFabric, metrics *Metrics, logger *log.Logger) *Lifecycle {
	return &Lifecycle{
		cfg:      cfg,
		store:    st,
		manager:  manager,
		registry: registry,
		timers:   timers,
		metrics:  metrics,
		logger:   logger.WithPrefix("lifecycle"),
	}
}

// StartTable creates the runtime for a waiting table, seats every persisted
// player, deals the first hand and promotes sockets that connected early.
// The caller arms the action timeout once this returns.
func (l *Lifecycle) StartTable(ctx context.Context, tableID string) (*ManagedTable, error) {
	rec, err := l.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if rec.Status != store.TableWaiting {
		return nil, fmt.Errorf("table %s is %s, not waiting", tableID, rec.Status)
	}

	var cfg game.Config
	if err := json.Unmarshal(rec.ConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("decode table config: %w", err)
	}
	cfg.Seed = rec.Seed

	seats, err := l.store.SeatsForTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	seated := make([]store.SeatRecord, 0, len(seats))
	for _, s := range seats {
		if s.IsActive && s.AgentID != "" {
			seated = append(seated, s)
		}
	}
	if len(seated) < cfg.MinPlayersToStart {
		return nil, fmt.Errorf("table %s has %d seated players, need %d", tableID, len(seated), cfg.MinPlayersToStart)
	}

	mt, err := l.manager.Create(tableID, cfg)
	if errors.Is(err, ErrTableExists) {
		existing, _ := l.manager.Get(tableID)
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	mt.Lock.Lock()
	rt := mt.Runtime
	events := []game.Event{{
		Seq:  rt.NextSeq(),
		Type: game.EventTableStarted,
		Payload: game.TableStartedPayload{
			SmallBlind:        cfg.SmallBlind,
			BigBlind:          cfg.BigBlind,
			MaxSeats:          cfg.MaxSeats,
			InitialStack:      cfg.InitialStack,
			ActionTimeoutMs:   cfg.ActionTimeoutMs,
			MinPlayersToStart: cfg.MinPlayersToStart,
			SeatedPlayers:     len(seated),
		},
	}}
	for _, s := range seated {
		agent, err := l.store.AgentByID(ctx, s.AgentID)
		name := s.AgentID
		if err == nil {
			name = agent.Name
		}
		res := rt.AddPlayer(s.SeatID, s.AgentID, name, s.Stack)
		if !res.OK {
			l.logger.Error("seat player at start", "table_id", tableID, "seat", s.SeatID, "code", res.Code)
			continue
		}
		events = append(events, res.Events...)
	}
	startRes := rt.StartHand()
	events = append(events, startRes.Events...)
	views := snapshotViewsLocked(rt)
	mt.Lock.Unlock()

	if !startRes.OK {
		l.logger.Error("start first hand", "table_id", tableID, "code", startRes.Code, "message", startRes.Message)
	}

	if err := l.store.UpdateTableStatus(ctx, tableID, store.TableRunning); err != nil {
		l.logger.Error("update table status", "table_id", tableID, "error", err)
	}
	if err := mt.Log.Append(events); err != nil {
		l.logger.Error("append start events", "table_id", tableID, "error", err)
	}

	// Promote sockets that connected before the runtime existed.
	for _, p := range l.registry.Players(tableID) {
		_ = p.Conn.Send(newEnvelope(MsgWelcome, tableID, views.Seq, WelcomePayload{
			TableID:         tableID,
			SeatID:          p.Seat,
			ActionTimeoutMs: cfg.ActionTimeoutMs,
			ProtocolVersion: ProtocolVersion,
		}))
	}
	l.registry.BroadcastState(tableID, views)
	l.registry.Broadcast(tableID, newEnvelope(MsgTableStatus, tableID, views.Seq, TableStatusPayload{Status: "running"}))

	l.metrics.TablesLive.Set(float64(l.manager.Count()))
	l.logger.Info("table started", "table_id", tableID, "players", len(seated))
	return mt, nil
}

// EndTable is the single entrypoint for termination, idempotent across every
// source. With a live runtime it aborts any in-progress hand, refunding live
// bets, then logs TABLE_ENDED and persists final stacks;
// without one only the persistent status flip and a best-effort broadcast
// remain.
func (l *Lifecycle) EndTable(ctx context.Context, req EndRequest) {
	logger := l.logger.With("table_id", req.TableID, "reason", req.Reason, "source", req.Source)

	mt, live := l.manager.Get(req.TableID)
	if live {
		mt.Lock.Lock()
		rt := mt.Runtime
		rt.AbortHand()
		snapshot := rt.Snapshot()
		stacks := make([]game.SeatStack, 0, len(snapshot))
		for _, s := range snapshot {
			stacks = append(stacks, game.SeatStack{Seat: s.Seat, Name: s.Name, Stack: s.Stack})
		}
		ended := game.Event{
			Seq:  rt.NextSeq(),
			Type: game.EventTableEnded,
			Payload: game.TableEndedPayload{
				Reason: req.Reason,
				Stacks: stacks,
			},
		}
		mt.Lock.Unlock()

		if err := mt.Log.Append([]game.Event{ended}); err != nil {
			logger.Error("append TABLE_ENDED", "error", err)
		}

		finals := make([]store.SeatRecord, 0, len(snapshot))
		for _, s := range snapshot {
			finals = append(finals, store.SeatRecord{
				TableID:  req.TableID,
				SeatID:   s.Seat,
				AgentID:  s.AgentID,
				Stack:    s.Stack,
				IsActive: false,
			})
		}
		if err := l.store.UpdateSeatStacks(ctx, req.TableID, finals); err != nil {
			logger.Error("persist final stacks", "error", err)
		}
	}

	if err := l.store.UpdateTableStatus(ctx, req.TableID, store.TableEnded); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("update table status", "error", err)
	}

	l.registry.Broadcast(req.TableID, newEnvelope(MsgTableStatus, req.TableID, 0, TableStatusPayload{
		Status: "ended",
		Reason: req.Reason,
	}))
	l.registry.DisconnectAll(req.TableID, "table ended: "+req.Reason)

	// Destroy cancels every remaining timer, including a scheduled next hand.
	l.manager.Destroy(req.TableID)

	l.metrics.TablesLive.Set(float64(l.manager.Count()))
	l.metrics.TablesEnded.WithLabelValues(req.Reason).Inc()
	if live {
		logger.Info("table ended")
	}
}

// snapshotViewsLocked builds every projection for broadcast. The caller must
// hold the table's action lock; delivery happens after release.
func snapshotViewsLocked(rt *game.Runtime) StateViews {
	views := StateViews{
		Seq:      rt.Seq(),
		Private:  make(map[int]game.View),
		Public:   rt.PublicState(),
		Revealed: rt.RevealedState(),
	}
	for _, s := range rt.Snapshot() {
		if s.Active {
			views.Private[s.Seat] = rt.StateForSeat(s.Seat)
		}
	}
	return views
}
