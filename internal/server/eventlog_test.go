package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfelt/agentfelt/internal/game"
)

func TestEventLogAppendsInOrder(t *testing.T) {
	st := openTestStore(t)
	l := NewEventLog("tbl-1", st, testLogger())

	events := []game.Event{
		{Seq: 1, Type: game.EventTableStarted, Payload: game.TableStartedPayload{SmallBlind: 5, BigBlind: 10}},
		{Seq: 2, Type: game.EventPlayerJoined, Payload: game.PlayerSeatPayload{Seat: 0, AgentID: "agent-1"}},
		{Seq: 3, HandNumber: 1, Type: game.EventHandStart, Payload: game.HandStartPayload{HandNumber: 1}},
	}
	require.NoError(t, l.Append(events))
	l.Close()

	recs, err := st.Events(context.Background(), "tbl-1", 0, 100)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, string(game.EventTableStarted), recs[0].Type)
	require.Equal(t, string(game.EventPlayerJoined), recs[1].Type)
	require.Equal(t, string(game.EventHandStart), recs[2].Type)
	require.Equal(t, uint64(1), recs[0].Seq)
	require.Equal(t, uint64(3), recs[2].Seq)
	require.Equal(t, 1, recs[2].HandNumber)

	var started game.TableStartedPayload
	require.NoError(t, json.Unmarshal(recs[0].Payload, &started))
	require.Equal(t, 10, started.BigBlind)
}

func TestEventLogLifecycleWriteIsDurableOnReturn(t *testing.T) {
	st := openTestStore(t)
	l := NewEventLog("tbl-1", st, testLogger())
	defer l.Close()

	// A fire-and-forget event followed by an awaited lifecycle event: once
	// Append returns both must be readable, since the writer is FIFO.
	require.NoError(t, l.Append([]game.Event{
		{Seq: 1, HandNumber: 1, Type: game.EventPlayerAction, Payload: game.PlayerActionPayload{Seat: 0, Kind: "fold", Street: "preflop"}},
		{Seq: 2, HandNumber: 1, Type: game.EventHandComplete, Payload: game.HandCompletePayload{HandNumber: 1}},
	}))

	recs, err := l.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, string(game.EventHandComplete), recs[1].Type)
}

func TestEventLogAppendAfterCloseDropsEvents(t *testing.T) {
	st := openTestStore(t)
	l := NewEventLog("tbl-1", st, testLogger())

	require.NoError(t, l.Append([]game.Event{
		{Seq: 1, Type: game.EventTableStarted, Payload: game.TableStartedPayload{}},
	}))
	l.Close()

	// A late action or timer path may outlive table teardown; both the
	// fire-and-forget and the awaited lifecycle paths must drop cleanly.
	require.NoError(t, l.Append([]game.Event{
		{Seq: 2, HandNumber: 1, Type: game.EventPlayerAction, Payload: game.PlayerActionPayload{Seat: 0, Kind: "fold"}},
		{Seq: 3, HandNumber: 1, Type: game.EventHandComplete, Payload: game.HandCompletePayload{HandNumber: 1}},
	}))

	// Close is idempotent.
	l.Close()

	recs, err := st.Events(context.Background(), "tbl-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestEventLogRangeSlices(t *testing.T) {
	st := openTestStore(t)
	l := NewEventLog("tbl-1", st, testLogger())

	var events []game.Event
	for seq := uint64(1); seq <= 5; seq++ {
		events = append(events, game.Event{Seq: seq, Type: game.EventTableStarted, Payload: game.TableStartedPayload{}})
	}
	require.NoError(t, l.Append(events))
	l.Close()

	recs, err := l.Range(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, uint64(3), recs[0].Seq)
	require.Equal(t, uint64(4), recs[1].Seq)
}
