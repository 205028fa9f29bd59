package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/agentfelt/agentfelt/internal/game"
	"github.com/agentfelt/agentfelt/internal/store"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "agentfelt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// harness wires a full Service on a mock clock and a throwaway database.
type harness struct {
	t        *testing.T
	cfg      Config
	st       *store.SQLite
	clock    *quartz.Mock
	timers   *TimerFabric
	manager  *Manager
	registry *Registry
	svc      *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := testLogger()
	st := openTestStore(t)
	clock := quartz.NewMock(t)

	cfg := Config{
		SessionTTL:    time.Hour,
		ActionTimeout: 10 * time.Second,
		HandDelay:     2 * time.Second,
		AbandonGrace:  30 * time.Second,
		MinPlayers:    2,
		AdminEmails:   []string{"ops@example.com"},
		SessionSecret: "test-secret",
		DefaultSeats:  9,
		DefaultStack:  200,
	}

	timers := NewTimerFabric(clock, logger)
	manager := NewManager(st, timers, logger)
	registry := NewRegistry(logger)
	sessions := NewSessions(st, cfg.SessionSecret, cfg.SessionTTL, clock)
	metrics := NewMetrics()
	lifecycle := NewLifecycle(cfg, st, manager, registry, timers, metrics, logger)
	svc := NewService(cfg, st, manager, registry, timers, sessions, lifecycle, metrics, clock, logger)

	return &harness{
		t:        t,
		cfg:      cfg,
		st:       st,
		clock:    clock,
		timers:   timers,
		manager:  manager,
		registry: registry,
		svc:      svc,
	}
}

func (h *harness) registerAgent(name string) store.AgentRecord {
	h.t.Helper()
	agent, _, err := h.svc.RegisterAgent(context.Background(), name)
	require.NoError(h.t, err)
	return agent
}

func (h *harness) createTable(tableID, seed string, maxSeats, minPlayers int) string {
	h.t.Helper()
	rec, err := h.svc.CreateTable(context.Background(), CreateTableRequest{
		TableID:    tableID,
		SmallBlind: 5,
		BigBlind:   10,
		MaxSeats:   maxSeats,
		Stack:      200,
		MinPlayers: minPlayers,
		Seed:       seed,
	})
	require.NoError(h.t, err)
	return rec.ID
}

func (h *harness) join(tableID string, agent store.AgentRecord) JoinResponse {
	h.t.Helper()
	resp, err := h.svc.Join(context.Background(), tableID, agent, ProtocolVersion, nil)
	require.NoError(h.t, err)
	return resp
}

func (h *harness) events(tableID string) []store.EventRecord {
	h.t.Helper()
	recs, err := h.st.Events(context.Background(), tableID, 0, 1000)
	require.NoError(h.t, err)
	return recs
}

func (h *harness) eventTypes(tableID string) []string {
	types := make([]string, 0)
	for _, e := range h.events(tableID) {
		types = append(types, e.Type)
	}
	return types
}

func (h *harness) tableStatus(tableID string) store.TableStatus {
	h.t.Helper()
	rec, err := h.st.TableByID(context.Background(), tableID)
	require.NoError(h.t, err)
	return rec.Status
}

// startHeadsUp creates a two-player table and joins both agents, which
// auto-starts the first hand.
func (h *harness) startHeadsUp(seed string) (string, [2]store.AgentRecord) {
	h.t.Helper()
	a := h.registerAgent("alice")
	b := h.registerAgent("bob")
	tableID := h.createTable("tbl-"+seed, seed, 2, 2)
	h.join(tableID, a)
	h.join(tableID, b)
	require.True(h.t, h.manager.Has(tableID))
	return tableID, [2]store.AgentRecord{a, b}
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var aerr *APIError
	require.ErrorAs(t, err, &aerr)
	return aerr.Code
}

func TestJoinAutoStartAndEventOrder(t *testing.T) {
	h := newHarness(t)
	a := h.registerAgent("alice")
	b := h.registerAgent("bob")
	tableID := h.createTable("tbl-order", "event-order-seed", 3, 2)

	resp, err := h.svc.Join(context.Background(), tableID, a, ProtocolVersion, nil)
	require.NoError(t, err)
	require.Equal(t, 0, resp.SeatID)
	require.NotEmpty(t, resp.SessionToken)
	require.Contains(t, resp.WsURL, resp.SessionToken)
	require.Equal(t, store.TableWaiting, h.tableStatus(tableID))
	require.False(t, h.manager.Has(tableID))

	h.join(tableID, b)
	require.Equal(t, store.TableRunning, h.tableStatus(tableID))
	require.True(t, h.manager.Has(tableID))
	require.True(t, h.timers.Pending(tableID, TimerAction))

	events := h.events(tableID)
	require.GreaterOrEqual(t, len(events), 4)
	require.Equal(t, string(game.EventTableStarted), events[0].Type)
	require.Equal(t, string(game.EventPlayerJoined), events[1].Type)
	require.Equal(t, string(game.EventPlayerJoined), events[2].Type)
	require.Equal(t, string(game.EventHandStart), events[3].Type)
	for i, e := range events {
		require.Equal(t, uint64(i+1), e.Seq, "event seqs must be dense from 1")
	}
}

func TestJoinRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Join(ctx, "tbl-nope", h.registerAgent("ghost"), ProtocolVersion, nil)
	require.Equal(t, game.CodeTableNotFound, apiCode(t, err))

	tableID, agents := h.startHeadsUp("join-rejections")

	_, err = h.svc.Join(ctx, tableID, agents[0], ProtocolVersion, nil)
	require.Equal(t, game.CodeAlreadySeated, apiCode(t, err))

	_, err = h.svc.Join(ctx, tableID, h.registerAgent("carol"), ProtocolVersion, nil)
	require.Equal(t, game.CodeTableFull, apiCode(t, err))

	h.svc.EndTable(ctx, tableID, "maintenance", SourceAdmin)
	_, err = h.svc.Join(ctx, tableID, h.registerAgent("dave"), ProtocolVersion, nil)
	require.Equal(t, game.CodeTableEnded, apiCode(t, err))
}

func TestPreferredSeat(t *testing.T) {
	h := newHarness(t)
	a := h.registerAgent("alice")
	tableID := h.createTable("tbl-seat", "seat-seed", 6, 3)

	seat := 4
	resp, err := h.svc.Join(context.Background(), tableID, a, ProtocolVersion, &seat)
	require.NoError(t, err)
	require.Equal(t, 4, resp.SeatID)

	// Taken preferred seat falls back to the lowest free one.
	resp, err = h.svc.Join(context.Background(), tableID, h.registerAgent("bob"), ProtocolVersion, &seat)
	require.NoError(t, err)
	require.Equal(t, 0, resp.SeatID)
}

func TestConcurrentJoinsGetDistinctSeats(t *testing.T) {
	h := newHarness(t)
	// min_players above the join count keeps the table waiting throughout.
	tableID := h.createTable("tbl-concurrent", "concurrent-seed", 9, 9)

	const joiners = 6
	agents := make([]store.AgentRecord, joiners)
	for i := range agents {
		agents[i] = h.registerAgent(fmt.Sprintf("racer-%d", i))
	}

	var wg sync.WaitGroup
	seatCh := make(chan int, joiners)
	for _, agent := range agents {
		wg.Add(1)
		go func(agent store.AgentRecord) {
			defer wg.Done()
			resp, err := h.svc.Join(context.Background(), tableID, agent, ProtocolVersion, nil)
			if err != nil {
				t.Errorf("join %s: %v", agent.Name, err)
				return
			}
			seatCh <- resp.SeatID
		}(agent)
	}
	wg.Wait()
	close(seatCh)

	seen := make(map[int]bool)
	for seat := range seatCh {
		require.False(t, seen[seat], "seat %d assigned twice", seat)
		seen[seat] = true
	}
	require.Len(t, seen, joiners)

	seats, err := h.st.SeatsForTable(context.Background(), tableID)
	require.NoError(t, err)
	occupied := 0
	for _, s := range seats {
		if s.IsActive && s.AgentID != "" {
			occupied++
		}
	}
	require.Equal(t, joiners, occupied)
}

func TestActionTimeoutFoldsCurrentActor(t *testing.T) {
	h := newHarness(t)
	tableID, _ := h.startHeadsUp("timeout-seed")
	ctx := context.Background()

	before := len(h.events(tableID))
	h.clock.Advance(h.cfg.ActionTimeout).MustWait(ctx)

	events := h.events(tableID)
	require.Greater(t, len(events), before)

	var timeoutFold *game.PlayerActionPayload
	sawComplete := false
	for _, e := range events {
		switch e.Type {
		case string(game.EventPlayerAction):
			var p game.PlayerActionPayload
			require.NoError(t, json.Unmarshal(e.Payload, &p))
			if p.IsTimeout {
				timeoutFold = &p
			}
		case string(game.EventHandComplete):
			sawComplete = true
		}
	}
	require.NotNil(t, timeoutFold, "expected a timeout fold in the log")
	require.Equal(t, "fold", timeoutFold.Kind)
	require.True(t, sawComplete, "heads-up fold must complete the hand")

	// The inter-hand pause is armed; the action timer is not.
	require.True(t, h.timers.Pending(tableID, TimerNextHand))
	require.False(t, h.timers.Pending(tableID, TimerAction))
}

func TestNextHandDealsAfterDelay(t *testing.T) {
	h := newHarness(t)
	tableID, _ := h.startHeadsUp("next-hand-seed")
	ctx := context.Background()

	h.clock.Advance(h.cfg.ActionTimeout).MustWait(ctx)
	require.True(t, h.timers.Pending(tableID, TimerNextHand))

	h.clock.Advance(h.cfg.HandDelay).MustWait(ctx)

	handStarts := 0
	for _, typ := range h.eventTypes(tableID) {
		if typ == string(game.EventHandStart) {
			handStarts++
		}
	}
	require.Equal(t, 2, handStarts)
	require.True(t, h.timers.Pending(tableID, TimerAction))
}

func TestAbandonGraceEndsTable(t *testing.T) {
	h := newHarness(t)
	tableID, _ := h.startHeadsUp("abandon-seed")
	ctx := context.Background()

	// No socket ever connected; the last-disconnect hook arms the grace timer.
	h.svc.onPlayerDisconnect(tableID)
	require.True(t, h.timers.Pending(tableID, TimerAbandon))

	// A second disconnect must not re-arm and extend the deadline.
	h.svc.onPlayerDisconnect(tableID)

	// Keep the table quiet while the grace period runs down.
	h.timers.Cancel(tableID, TimerAction)
	h.clock.Advance(h.cfg.AbandonGrace).MustWait(ctx)

	require.False(t, h.manager.Has(tableID))
	require.Equal(t, store.TableEnded, h.tableStatus(tableID))

	events := h.events(tableID)
	last := events[len(events)-1]
	require.Equal(t, string(game.EventTableEnded), last.Type)
	var ended game.TableEndedPayload
	require.NoError(t, json.Unmarshal(last.Payload, &ended))
	require.Equal(t, "abandoned", ended.Reason)
}

func TestEndTableIdempotentAndPersistsStacks(t *testing.T) {
	h := newHarness(t)
	tableID, _ := h.startHeadsUp("end-seed")
	ctx := context.Background()

	h.svc.EndTable(ctx, tableID, "maintenance", SourceAdmin)
	require.False(t, h.manager.Has(tableID))
	require.Equal(t, store.TableEnded, h.tableStatus(tableID))
	require.False(t, h.timers.Pending(tableID, TimerAction))

	events := h.events(tableID)
	last := events[len(events)-1]
	require.Equal(t, string(game.EventTableEnded), last.Type)
	var ended game.TableEndedPayload
	require.NoError(t, json.Unmarshal(last.Payload, &ended))
	require.Equal(t, "maintenance", ended.Reason)
	require.Len(t, ended.Stacks, 2)

	seats, err := h.st.SeatsForTable(ctx, tableID)
	require.NoError(t, err)
	total := 0
	for _, s := range seats {
		require.False(t, s.IsActive)
		total += s.Stack
	}
	require.Equal(t, 400, total, "chips must be conserved into the final stacks")

	// Second end is a no-op; no extra TABLE_ENDED appears.
	h.svc.EndTable(ctx, tableID, "maintenance", SourceAdmin)
	require.Len(t, h.events(tableID), len(events))
}

func TestActionOverSocket(t *testing.T) {
	h := newHarness(t)
	tableID, agents := h.startHeadsUp("socket-seed")

	mt, ok := h.manager.Get(tableID)
	require.True(t, ok)
	mt.Lock.Lock()
	seat := mt.Runtime.CurrentSeat()
	token := mt.Runtime.StateForSeat(seat).TurnToken
	agentID := ""
	for _, s := range mt.Runtime.Snapshot() {
		if s.Seat == seat {
			agentID = s.AgentID
		}
	}
	mt.Lock.Unlock()
	require.NotEmpty(t, token)
	require.Contains(t, []string{agents[0].ID, agents[1].ID}, agentID)

	sess := store.SessionRecord{AgentID: agentID, TableID: tableID, SeatID: seat}
	_, client := newSocketPair(t, false, h.svc.HandleMessage(sess))

	// Stale expected_seq is rejected before the action is applied.
	stale := []byte(`{"type":"action","expected_seq":1,"action":{"turn_token":"` + token + `","kind":"fold"}}`)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, stale))
	f := readFrame(t, client)
	require.Equal(t, MsgError, f.Type)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &errPayload))
	require.Equal(t, game.CodeStaleSeq, errPayload.Code)

	// The same action without the stale guard is accepted.
	fold := []byte(`{"type":"action","action":{"turn_token":"` + token + `","kind":"fold"}}`)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, fold))
	f = readFrame(t, client)
	require.Equal(t, MsgAck, f.Type)
	var ack AckPayload
	require.NoError(t, json.Unmarshal(f.Payload, &ack))
	require.Equal(t, token, ack.TurnToken)
	require.False(t, ack.Duplicate)

	// Retrying the same turn token after the hand completed still acks.
	require.NoError(t, client.WriteMessage(websocket.TextMessage, fold))
	f = readFrame(t, client)
	require.Equal(t, MsgAck, f.Type)
	require.NoError(t, json.Unmarshal(f.Payload, &ack))
	require.True(t, ack.Duplicate)

	// Unknown message types draw a validation error, not a dropped socket.
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"wat"}`)))
	f = readFrame(t, client)
	require.Equal(t, MsgError, f.Type)
	require.NoError(t, json.Unmarshal(f.Payload, &errPayload))
	require.Equal(t, game.CodeValidationError, errPayload.Code)
}

func TestLeaveClearsSeatAndRevokesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.registerAgent("alice")
	tableID := h.createTable("tbl-leave", "leave-seed", 6, 3)

	resp := h.join(tableID, a)
	require.NoError(t, h.svc.Leave(ctx, tableID, a.ID))

	seats, err := h.st.SeatsForTable(ctx, tableID)
	require.NoError(t, err)
	for _, s := range seats {
		require.False(t, s.IsActive && s.AgentID == a.ID, "seat must be vacated")
	}

	_, err = h.svc.VerifySession(ctx, resp.SessionToken)
	require.Equal(t, game.CodeInvalidSession, apiCode(t, err))

	// Leaving again, or leaving an ended table, is a no-op.
	require.NoError(t, h.svc.Leave(ctx, tableID, a.ID))
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	agent, apiKey, err := h.svc.RegisterAgent(ctx, "alice")
	require.NoError(t, err)

	got, err := h.svc.Authenticate(ctx, apiKey)
	require.NoError(t, err)
	require.Equal(t, agent.ID, got.ID)

	_, err = h.svc.Authenticate(ctx, "wrong-key")
	require.Equal(t, game.CodeInvalidAPIKey, apiCode(t, err))

	_, err = h.svc.Authenticate(ctx, "")
	require.Equal(t, game.CodeUnauthorized, apiCode(t, err))
}

func TestCreateTableValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateTable(ctx, CreateTableRequest{SmallBlind: 10, BigBlind: 10})
	require.Equal(t, game.CodeValidationError, apiCode(t, err))

	rec, err := h.svc.CreateTable(ctx, CreateTableRequest{SmallBlind: 5, BigBlind: 10})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.NotEmpty(t, rec.Seed, "an omitted seed gets a random one")

	var cfg game.Config
	require.NoError(t, json.Unmarshal(rec.ConfigJSON, &cfg))
	require.Equal(t, h.cfg.DefaultSeats, cfg.MaxSeats)
	require.Equal(t, h.cfg.DefaultStack, cfg.InitialStack)
	require.Equal(t, h.cfg.MinPlayers, cfg.MinPlayersToStart)

	_, err = h.svc.CreateTable(ctx, CreateTableRequest{TableID: rec.ID, SmallBlind: 5, BigBlind: 10})
	require.Equal(t, game.CodeInvalidTableState, apiCode(t, err))
}

func TestListTablesHidesStaleRunningRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tableID, _ := h.startHeadsUp("stale-seed")

	tables, err := h.svc.ListTables(ctx, "")
	require.NoError(t, err)
	require.Len(t, tables, 1)

	// Simulate a crashed runtime: the row says running but nothing is live.
	h.manager.Destroy(tableID)
	tables, err = h.svc.ListTables(ctx, "")
	require.NoError(t, err)
	require.Empty(t, tables)
}

func TestProvisionTablesSkipsExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	defs := []TableDefinition{
		{Name: "boot-5-10", SmallBlind: 5, BigBlind: 10, Seed: "boot-seed"},
		{Name: "boot-10-20", SmallBlind: 10, BigBlind: 20, MaxSeats: 4},
	}
	require.NoError(t, h.svc.ProvisionTables(ctx, defs))

	rec, err := h.st.TableByID(ctx, "boot-5-10")
	require.NoError(t, err)
	require.Equal(t, store.TableWaiting, rec.Status)
	require.Equal(t, "boot-seed", rec.Seed)

	// Re-provisioning the same file at next boot must not fail.
	require.NoError(t, h.svc.ProvisionTables(ctx, defs))
}
