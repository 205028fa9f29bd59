package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/agentfelt/agentfelt/internal/game"
	"github.com/agentfelt/agentfelt/internal/store"
)

// APIError is a client-visible failure with a stable code and an HTTP status
// for the REST surface.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

func apiErr(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// Service orchestrates joins, actions, timers and termination across the
// manager, registry, sessions and lifecycle. All blocking work (log awaits,
// socket sends) happens outside the per-table action lock.
type Service struct {
	cfg       Config
	store     store.Store
	manager   *Manager
	registry  *Registry
	timers    *TimerFabric
	sessions  *Sessions
	lifecycle *Lifecycle
	metrics   *Metrics
	clock     quartz.Clock
	logger    *log.Logger

	// seatMu serializes seat assignment per table; concurrent joins would
	// otherwise read the same free-seat snapshot and collide on one seat.
	seatMu    sync.Mutex
	seatLocks map[string]*sync.Mutex
}

// NewService wires the orchestrator.
func NewService(cfg Config, st store.Store, manager *Manager, registry *Registry, timers *TimerFabric, sessions *Sessions, lifecycle *Lifecycle, metrics *Metrics, clock quartz.Clock, logger *log.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		manager:   manager,
		registry:  registry,
		timers:    timers,
		sessions:  sessions,
		lifecycle: lifecycle,
		metrics:   metrics,
		clock:     clock,
		logger:    logger.WithPrefix("service"),
		seatLocks: make(map[string]*sync.Mutex),
	}
}

// seatLock returns the per-table mutex guarding seat assignment.
func (s *Service) seatLock(tableID string) *sync.Mutex {
	s.seatMu.Lock()
	defer s.seatMu.Unlock()
	l, ok := s.seatLocks[tableID]
	if !ok {
		l = &sync.Mutex{}
		s.seatLocks[tableID] = l
	}
	return l
}

// hashAPIKey is the stored form of an agent API key.
func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// RegisterAgent creates an agent and returns the one-time plaintext API key.
func (s *Service) RegisterAgent(ctx context.Context, name string) (store.AgentRecord, string, error) {
	if name == "" {
		return store.AgentRecord{}, "", apiErr(http.StatusBadRequest, game.CodeValidationError, "agent name is required")
	}
	apiKey := uuid.NewString() + uuid.NewString()
	rec := store.AgentRecord{
		ID:         "agent-" + uuid.NewString(),
		Name:       name,
		APIKeyHash: hashAPIKey(apiKey),
		LastSeenAt: s.clock.Now().UTC(),
	}
	if err := s.store.CreateAgent(ctx, rec); err != nil {
		return store.AgentRecord{}, "", fmt.Errorf("create agent: %w", err)
	}
	return rec, apiKey, nil
}

// Authenticate resolves a bearer API key to an agent.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (store.AgentRecord, error) {
	if apiKey == "" {
		return store.AgentRecord{}, apiErr(http.StatusUnauthorized, game.CodeUnauthorized, "missing API key")
	}
	rec, err := s.store.AgentByKeyHash(ctx, hashAPIKey(apiKey))
	if errors.Is(err, store.ErrNotFound) {
		return store.AgentRecord{}, apiErr(http.StatusUnauthorized, game.CodeInvalidAPIKey, "unknown API key")
	}
	if err != nil {
		return store.AgentRecord{}, err
	}
	if err := s.store.TouchAgent(ctx, rec.ID, s.clock.Now().UTC()); err != nil {
		s.logger.Debug("touch agent", "agent_id", rec.ID, "error", err)
	}
	return rec, nil
}

// CreateTableRequest configures a new table.
type CreateTableRequest struct {
	TableID    string
	SmallBlind int
	BigBlind   int
	MaxSeats   int
	Stack      int
	MinPlayers int
	Seed       string
}

// CreateTable persists a waiting table. An empty seed gets a random one so
// the hand RNG is never predictable by default.
func (s *Service) CreateTable(ctx context.Context, req CreateTableRequest) (store.TableRecord, error) {
	if req.SmallBlind <= 0 || req.BigBlind <= req.SmallBlind {
		return store.TableRecord{}, apiErr(http.StatusBadRequest, game.CodeValidationError, "blinds must satisfy 0 < small < big")
	}
	cfg := game.Config{
		SmallBlind:        req.SmallBlind,
		BigBlind:          req.BigBlind,
		MaxSeats:          req.MaxSeats,
		InitialStack:      req.Stack,
		ActionTimeoutMs:   int(s.cfg.ActionTimeout.Milliseconds()),
		MinPlayersToStart: req.MinPlayers,
	}
	if cfg.MaxSeats == 0 {
		cfg.MaxSeats = s.cfg.DefaultSeats
	}
	if cfg.InitialStack == 0 {
		cfg.InitialStack = s.cfg.DefaultStack
	}
	if cfg.MinPlayersToStart == 0 {
		cfg.MinPlayersToStart = s.cfg.MinPlayers
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return store.TableRecord{}, err
	}
	seed := req.Seed
	if seed == "" {
		seed = uuid.NewString()
	}
	tableID := req.TableID
	if tableID == "" {
		tableID = "tbl-" + uuid.NewString()
	}

	rec := store.TableRecord{
		ID:         tableID,
		Status:     store.TableWaiting,
		ConfigJSON: configJSON,
		Seed:       seed,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.store.CreateTable(ctx, rec); err != nil {
		if errors.Is(err, store.ErrExists) {
			return store.TableRecord{}, apiErr(http.StatusConflict, game.CodeInvalidTableState, "table id already exists")
		}
		return store.TableRecord{}, err
	}
	s.logger.Info("table created", "table_id", tableID)
	return rec, nil
}

// ListTables returns persisted tables, hiding running rows whose runtime is
// gone (stale rows from a previous process).
func (s *Service) ListTables(ctx context.Context, status store.TableStatus) ([]store.TableRecord, error) {
	tables, err := s.store.ListTables(ctx, status)
	if err != nil {
		return nil, err
	}
	out := tables[:0]
	for _, t := range tables {
		if t.Status == store.TableRunning && !s.manager.Has(t.ID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// TableDetails returns one table row with its seats.
func (s *Service) TableDetails(ctx context.Context, tableID string) (store.TableRecord, []store.SeatRecord, error) {
	rec, err := s.store.TableByID(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return store.TableRecord{}, nil, apiErr(http.StatusNotFound, game.CodeTableNotFound, "no such table")
	}
	if err != nil {
		return store.TableRecord{}, nil, err
	}
	seats, err := s.store.SeatsForTable(ctx, tableID)
	if err != nil {
		return store.TableRecord{}, nil, err
	}
	return rec, seats, nil
}

// TableEvents reads a slice of a table's event log.
func (s *Service) TableEvents(ctx context.Context, tableID string, fromSeq uint64, limit int) ([]store.EventRecord, error) {
	if _, err := s.store.TableByID(ctx, tableID); errors.Is(err, store.ErrNotFound) {
		return nil, apiErr(http.StatusNotFound, game.CodeTableNotFound, "no such table")
	} else if err != nil {
		return nil, err
	}
	return s.store.Events(ctx, tableID, fromSeq, limit)
}

// JoinResponse is the successful result of a join.
type JoinResponse struct {
	TableID                     string `json:"table_id"`
	SeatID                      int    `json:"seat_id"`
	SessionToken                string `json:"session_token"`
	WsURL                       string `json:"ws_url"`
	ProtocolVersion             int    `json:"protocol_version"`
	MinSupportedProtocolVersion int    `json:"min_supported_protocol_version"`
	ActionTimeoutMs             int    `json:"action_timeout_ms"`
}

// Join seats an agent at a table, creates their session, and auto-starts the
// table once enough players are seated.
func (s *Service) Join(ctx context.Context, tableID string, agent store.AgentRecord, clientProtocol int, preferredSeat *int) (JoinResponse, error) {
	if clientProtocol != 0 && clientProtocol < MinProtocolVersion {
		return JoinResponse{}, apiErr(http.StatusBadRequest, game.CodeOutdatedClient,
			fmt.Sprintf("client protocol %d below minimum %d", clientProtocol, MinProtocolVersion))
	}

	rec, err := s.store.TableByID(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return JoinResponse{}, apiErr(http.StatusNotFound, game.CodeTableNotFound, "no such table")
	}
	if err != nil {
		return JoinResponse{}, err
	}
	switch rec.Status {
	case store.TableEnded:
		return JoinResponse{}, apiErr(http.StatusConflict, game.CodeTableEnded, "table has ended")
	case store.TableRunning:
		if !s.manager.Has(tableID) {
			return JoinResponse{}, apiErr(http.StatusConflict, game.CodeInvalidTableState, "table is not accepting players")
		}
	}

	var cfg game.Config
	if err := json.Unmarshal(rec.ConfigJSON, &cfg); err != nil {
		return JoinResponse{}, fmt.Errorf("decode table config: %w", err)
	}

	// The free-seat snapshot, the seat pick and the persisted assignment must
	// be one atomic step per table.
	lock := s.seatLock(tableID)
	lock.Lock()
	defer lock.Unlock()

	seats, err := s.store.SeatsForTable(ctx, tableID)
	if err != nil {
		return JoinResponse{}, err
	}
	taken := make(map[int]bool, len(seats))
	active := 0
	for _, seat := range seats {
		if !seat.IsActive || seat.AgentID == "" {
			continue
		}
		if seat.AgentID == agent.ID {
			return JoinResponse{}, apiErr(http.StatusConflict, game.CodeAlreadySeated, "agent already seated at this table")
		}
		taken[seat.SeatID] = true
		active++
	}
	if active >= cfg.MaxSeats {
		return JoinResponse{}, apiErr(http.StatusConflict, game.CodeTableFull, "no free seats")
	}

	seatID := -1
	if preferredSeat != nil && *preferredSeat >= 0 && *preferredSeat < cfg.MaxSeats && !taken[*preferredSeat] {
		seatID = *preferredSeat
	} else {
		for i := 0; i < cfg.MaxSeats; i++ {
			if !taken[i] {
				seatID = i
				break
			}
		}
	}
	if seatID < 0 {
		return JoinResponse{}, apiErr(http.StatusConflict, game.CodeTableFull, "no free seats")
	}

	// Late join: the runtime gets the player first so a runtime-level
	// rejection aborts before anything is persisted.
	if mt, live := s.manager.Get(tableID); live {
		mt.Lock.Lock()
		res := mt.Runtime.AddPlayer(seatID, agent.ID, agent.Name, cfg.InitialStack)
		mt.Lock.Unlock()
		if !res.OK {
			return JoinResponse{}, apiErr(http.StatusConflict, res.Code, res.Message)
		}
		if err := mt.Log.Append(res.Events); err != nil {
			s.logger.Error("append join events", "table_id", tableID, "error", err)
		}
		s.registry.Broadcast(tableID, newEnvelope(MsgPlayerJoined, tableID, res.Seq, game.PlayerSeatPayload{
			Seat:    seatID,
			AgentID: agent.ID,
			Name:    agent.Name,
			Stack:   cfg.InitialStack,
		}))
	}

	if err := s.store.UpsertSeat(ctx, store.SeatRecord{
		TableID:  tableID,
		SeatID:   seatID,
		AgentID:  agent.ID,
		Stack:    cfg.InitialStack,
		IsActive: true,
	}); err != nil {
		return JoinResponse{}, err
	}

	token, _, err := s.sessions.Create(ctx, agent.ID, tableID, seatID)
	if err != nil {
		return JoinResponse{}, err
	}

	resp := JoinResponse{
		TableID:                     tableID,
		SeatID:                      seatID,
		SessionToken:                token,
		WsURL:                       "/v1/ws?token=" + token,
		ProtocolVersion:             ProtocolVersion,
		MinSupportedProtocolVersion: MinProtocolVersion,
		ActionTimeoutMs:             cfg.ActionTimeoutMs,
	}

	if rec.Status == store.TableWaiting && !s.manager.Has(tableID) && active+1 >= cfg.MinPlayersToStart {
		s.startTable(ctx, tableID)
	}
	return resp, nil
}

// Leave removes an agent from a table. Idempotent; leaving an ended or
// never-joined table succeeds as a no-op.
func (s *Service) Leave(ctx context.Context, tableID string, agentID string) error {
	rec, err := s.store.TableByID(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return apiErr(http.StatusNotFound, game.CodeTableNotFound, "no such table")
	}
	if err != nil {
		return err
	}
	if rec.Status == store.TableEnded {
		return nil
	}

	lock := s.seatLock(tableID)
	lock.Lock()
	defer lock.Unlock()

	seats, err := s.store.SeatsForTable(ctx, tableID)
	if err != nil {
		return err
	}
	seatID := -1
	for _, seat := range seats {
		if seat.IsActive && seat.AgentID == agentID {
			seatID = seat.SeatID
			break
		}
	}
	if seatID < 0 {
		return nil
	}

	if mt, live := s.manager.Get(tableID); live {
		mt.Lock.Lock()
		res := mt.Runtime.RemovePlayer(seatID)
		views := snapshotViewsLocked(mt.Runtime)
		mt.Lock.Unlock()
		if err := mt.Log.Append(res.Events); err != nil {
			s.logger.Error("append leave events", "table_id", tableID, "error", err)
		}
		s.registry.BroadcastState(tableID, views)
		s.finishMutation(ctx, tableID, mt, res)
	}

	if err := s.store.ClearSeat(ctx, tableID, seatID); err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, agentID, tableID); err != nil {
		s.logger.Error("revoke sessions", "table_id", tableID, "agent_id", agentID, "error", err)
	}

	s.registry.Broadcast(tableID, newEnvelope(MsgPlayerLeft, tableID, 0, game.PlayerSeatPayload{
		Seat:    seatID,
		AgentID: agentID,
	}))
	s.registry.SendToSeat(tableID, seatID, newEnvelope(MsgTableStatus, tableID, 0, TableStatusPayload{Status: "left"}))
	return nil
}

// VerifySession resolves a socket token.
func (s *Service) VerifySession(ctx context.Context, token string) (store.SessionRecord, error) {
	rec, err := s.sessions.Verify(ctx, token)
	switch {
	case errors.Is(err, ErrSessionExpired):
		return store.SessionRecord{}, apiErr(http.StatusUnauthorized, game.CodeSessionExpired, "session expired")
	case errors.Is(err, ErrInvalidSession):
		return store.SessionRecord{}, apiErr(http.StatusUnauthorized, game.CodeInvalidSession, "invalid session")
	case err != nil:
		return store.SessionRecord{}, err
	}
	return rec, nil
}

// AttachPlayerSocket registers a player socket, sends welcome plus current
// state, and watches for disconnect to drive the abandonment timer.
func (s *Service) AttachPlayerSocket(sess store.SessionRecord, c *Conn) {
	s.registry.Register(sess.TableID, sess.AgentID, sess.SeatID, c)
	s.timers.Cancel(sess.TableID, TimerAbandon)
	s.metrics.Connections.Inc()

	timeoutMs := int(s.cfg.ActionTimeout.Milliseconds())
	if mt, live := s.manager.Get(sess.TableID); live {
		timeoutMs = mt.Runtime.Config().ActionTimeoutMs
	}
	_ = c.Send(newEnvelope(MsgWelcome, sess.TableID, 0, WelcomePayload{
		TableID:         sess.TableID,
		SeatID:          sess.SeatID,
		ActionTimeoutMs: timeoutMs,
		ProtocolVersion: ProtocolVersion,
	}))

	if mt, live := s.manager.Get(sess.TableID); live {
		mt.Lock.Lock()
		view := mt.Runtime.StateForSeat(sess.SeatID)
		seq := mt.Runtime.Seq()
		mt.Lock.Unlock()
		_ = c.Send(newEnvelope(MsgGameState, sess.TableID, seq, view))
	}

	go func() {
		<-c.Done()
		s.registry.Unregister(sess.TableID, sess.SeatID, c)
		s.metrics.Connections.Dec()
		s.onPlayerDisconnect(sess.TableID)
	}()
}

// AttachObserver registers a read-only socket.
func (s *Service) AttachObserver(tableID string, c *Conn, showCards bool) {
	s.registry.RegisterObserver(tableID, c, showCards)

	if mt, live := s.manager.Get(tableID); live {
		mt.Lock.Lock()
		var view game.View
		if showCards {
			view = mt.Runtime.RevealedState()
		} else {
			view = mt.Runtime.PublicState()
		}
		seq := mt.Runtime.Seq()
		mt.Lock.Unlock()
		_ = c.Send(newEnvelope(MsgGameState, tableID, seq, view))
	}

	go func() {
		<-c.Done()
		s.registry.UnregisterObserver(tableID, c)
	}()
}

// HandleMessage is the read-pump callback for player sockets.
func (s *Service) HandleMessage(sess store.SessionRecord) func(*Conn, ClientMessage) {
	return func(c *Conn, msg ClientMessage) {
		switch msg.Type {
		case "action":
			if msg.Action == nil {
				_ = c.Send(errorEnvelope(sess.TableID, game.CodeValidationError, "action message without action body", s.cfg.SkillDocURL))
				return
			}
			s.handleAction(sess, c, *msg.Action, msg.ExpectedSeq)
		default:
			_ = c.Send(errorEnvelope(sess.TableID, game.CodeValidationError, "unknown message type "+msg.Type, s.cfg.SkillDocURL))
		}
	}
}

// handleAction is the hot path: validate under the action lock, then log,
// ack and broadcast after release.
func (s *Service) handleAction(sess store.SessionRecord, c *Conn, act WireAction, expectedSeq *uint64) {
	tableID := sess.TableID
	mt, live := s.manager.Get(tableID)
	if !live {
		_ = c.Send(errorEnvelope(tableID, game.CodeTableNotFound, "table runtime is not available", s.cfg.SkillDocURL))
		c.CloseWithReason("table not found")
		return
	}

	mt.Lock.Lock()
	rt := mt.Runtime
	if expectedSeq != nil && *expectedSeq < rt.Seq() {
		seq := rt.Seq()
		mt.Lock.Unlock()
		_ = c.Send(errorEnvelope(tableID, game.CodeStaleSeq,
			fmt.Sprintf("expected seq %d but table is at %d", *expectedSeq, seq), s.cfg.SkillDocURL))
		return
	}
	res := rt.ApplyAction(sess.SeatID, game.ActionRequest{
		TurnToken: act.TurnToken,
		Kind:      game.ActionKind(act.Kind),
		Amount:    act.Amount,
	})
	var views StateViews
	if res.OK && !res.Duplicate {
		views = snapshotViewsLocked(rt)
	}
	mt.Lock.Unlock()

	if !res.OK {
		_ = c.Send(errorEnvelope(tableID, res.Code, res.Message, s.cfg.SkillDocURL))
		if res.Code == game.CodeInternalError {
			s.lifecycle.EndTable(context.Background(), EndRequest{TableID: tableID, Reason: "internal_error", Source: SourceInternal})
		}
		return
	}

	_ = c.Send(newEnvelope(MsgAck, tableID, res.Seq, AckPayload{TurnToken: act.TurnToken, Duplicate: res.Duplicate}))
	if res.Duplicate {
		return
	}

	s.timers.Cancel(tableID, TimerAction)
	s.metrics.Actions.WithLabelValues(act.Kind).Inc()
	if err := mt.Log.Append(res.Events); err != nil {
		s.logger.Error("append action events", "table_id", tableID, "error", err)
	}
	s.registry.BroadcastState(tableID, views)
	s.finishMutation(context.Background(), tableID, mt, res)
}

// finishMutation handles the shared tail of every accepted mutation:
// hand-complete broadcast plus next-hand scheduling, or re-arming the action
// timeout for the next actor.
func (s *Service) finishMutation(ctx context.Context, tableID string, mt *ManagedTable, res game.Result) {
	if res.Code == game.CodeInternalError {
		s.lifecycle.EndTable(ctx, EndRequest{TableID: tableID, Reason: "internal_error", Source: SourceInternal})
		return
	}
	if res.HandComplete {
		for _, ev := range res.Events {
			if ev.Type == game.EventHandComplete {
				s.registry.Broadcast(tableID, newEnvelope(MsgHandComplete, tableID, ev.Seq, ev.Payload))
			}
		}
		s.metrics.Hands.Inc()
		s.timers.Schedule(tableID, TimerNextHand, s.cfg.HandDelay, func() {
			s.onNextHand(tableID)
		})
		return
	}
	s.armActionTimeout(tableID, mt)
}

// armActionTimeout schedules the fold timer for the current actor, capturing
// (seat, seq) so the callback can detect that the moment has passed.
func (s *Service) armActionTimeout(tableID string, mt *ManagedTable) {
	mt.Lock.Lock()
	seat := mt.Runtime.CurrentSeat()
	seq := mt.Runtime.Seq()
	timeout := time.Duration(mt.Runtime.Config().ActionTimeoutMs) * time.Millisecond
	mt.Lock.Unlock()

	if seat < 0 {
		return
	}
	if timeout <= 0 {
		timeout = s.cfg.ActionTimeout
	}
	s.timers.Schedule(tableID, TimerAction, timeout, func() {
		s.onActionTimeout(tableID, seat, seq)
	})
}

// onActionTimeout force-folds the seat that ran out of time, re-validating
// under the lock that the same decision point is still current.
func (s *Service) onActionTimeout(tableID string, seat int, seq uint64) {
	mt, live := s.manager.Get(tableID)
	if !live {
		return
	}

	mt.Lock.Lock()
	rt := mt.Runtime
	if rt.CurrentSeat() != seat || rt.Seq() != seq {
		mt.Lock.Unlock()
		return
	}
	res := rt.ForceFold(seat, true)
	views := snapshotViewsLocked(rt)
	mt.Lock.Unlock()

	if !res.OK {
		s.logger.Error("timeout fold rejected", "table_id", tableID, "seat", seat, "code", res.Code)
		s.finishMutation(context.Background(), tableID, mt, res)
		return
	}
	if len(res.Events) == 0 {
		return
	}

	s.logger.Info("seat folded by timeout", "table_id", tableID, "seat", seat)
	s.metrics.TimeoutFolds.Inc()
	if err := mt.Log.Append(res.Events); err != nil {
		s.logger.Error("append timeout events", "table_id", tableID, "error", err)
	}
	s.registry.BroadcastState(tableID, views)
	s.finishMutation(context.Background(), tableID, mt, res)
}

// onNextHand deals the next hand after the inter-hand pause, or ends the
// table when fewer than two stacks remain.
func (s *Service) onNextHand(tableID string) {
	mt, live := s.manager.Get(tableID)
	if !live {
		return
	}

	mt.Lock.Lock()
	rt := mt.Runtime
	if rt.Phase().Betting() {
		mt.Lock.Unlock()
		return
	}
	if rt.PlayersWithChips() < 2 {
		mt.Lock.Unlock()
		s.lifecycle.EndTable(context.Background(), EndRequest{
			TableID: tableID,
			Reason:  "insufficient_players",
			Source:  SourceTimeout,
		})
		return
	}
	res := rt.StartHand()
	views := snapshotViewsLocked(rt)
	mt.Lock.Unlock()

	if !res.OK {
		s.logger.Error("start next hand", "table_id", tableID, "code", res.Code, "message", res.Message)
		if res.Code == game.CodeInternalError {
			s.lifecycle.EndTable(context.Background(), EndRequest{TableID: tableID, Reason: "internal_error", Source: SourceInternal})
		}
		return
	}
	if err := mt.Log.Append(res.Events); err != nil {
		s.logger.Error("append hand start events", "table_id", tableID, "error", err)
	}
	s.registry.BroadcastState(tableID, views)
	s.finishMutation(context.Background(), tableID, mt, res)
}

// onPlayerDisconnect arms the abandonment grace timer once the last player
// socket is gone.
func (s *Service) onPlayerDisconnect(tableID string) {
	if !s.manager.Has(tableID) {
		return
	}
	if s.registry.ConnectionCount(tableID) > 0 {
		return
	}
	if s.timers.Pending(tableID, TimerAbandon) {
		return
	}
	s.timers.Schedule(tableID, TimerAbandon, s.cfg.AbandonGrace, func() {
		s.onAbandonGrace(tableID)
	})
}

// onAbandonGrace ends the table if it is still connectionless when the grace
// period elapses.
func (s *Service) onAbandonGrace(tableID string) {
	if !s.manager.Has(tableID) {
		return
	}
	if s.registry.ConnectionCount(tableID) > 0 {
		return
	}
	s.logger.Info("table abandoned", "table_id", tableID)
	s.lifecycle.EndTable(context.Background(), EndRequest{
		TableID: tableID,
		Reason:  "abandoned",
		Source:  SourceAbandonment,
	})
}

// startTable runs the lifecycle start and arms the first action timeout.
func (s *Service) startTable(ctx context.Context, tableID string) {
	mt, err := s.lifecycle.StartTable(ctx, tableID)
	if err != nil {
		s.logger.Error("start table", "table_id", tableID, "error", err)
		return
	}
	s.armActionTimeout(tableID, mt)
}

// EndTable exposes admin termination through the lifecycle controller.
func (s *Service) EndTable(ctx context.Context, tableID, reason string, source EndSource) {
	s.lifecycle.EndTable(ctx, EndRequest{TableID: tableID, Reason: reason, Source: source})
}

// ProvisionTables creates any boot-time tables that do not exist yet.
func (s *Service) ProvisionTables(ctx context.Context, defs []TableDefinition) error {
	for _, def := range defs {
		cfg := def.GameConfig(s.cfg)
		_, err := s.CreateTable(ctx, CreateTableRequest{
			TableID:    def.Name,
			SmallBlind: cfg.SmallBlind,
			BigBlind:   cfg.BigBlind,
			MaxSeats:   cfg.MaxSeats,
			Stack:      cfg.InitialStack,
			MinPlayers: cfg.MinPlayersToStart,
			Seed:       def.Seed,
		})
		var aerr *APIError
		if errors.As(err, &aerr) && aerr.Code == game.CodeInvalidTableState {
			continue
		}
		if err != nil {
			return fmt.Errorf("provision table %s: %w", def.Name, err)
		}
	}
	return nil
}
