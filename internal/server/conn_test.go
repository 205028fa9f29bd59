package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// newSocketPair spins up a throwaway WebSocket server and returns the
// server-side Conn plus the raw client socket.
func newSocketPair(t *testing.T, compact bool, onMessage func(*Conn, ClientMessage)) (*Conn, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewConn(ws, compact, testLogger(), onMessage)
		c.Start()
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-connCh:
		t.Cleanup(c.Close)
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("server connection never arrived")
		return nil, nil
	}
}

type wireFrame struct {
	Type    string          `json:"type"`
	TableID string          `json:"table_id"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, client *websocket.Conn) wireFrame {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	var f wireFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestConnSendDeliversEnvelope(t *testing.T) {
	conn, client := newSocketPair(t, false, nil)

	require.NoError(t, conn.Send(newEnvelope(MsgTableStatus, "tbl-1", 5, TableStatusPayload{Status: "running"})))

	f := readFrame(t, client)
	require.Equal(t, MsgTableStatus, f.Type)
	require.Equal(t, "tbl-1", f.TableID)
	require.Equal(t, uint64(5), f.Seq)

	var status TableStatusPayload
	require.NoError(t, json.Unmarshal(f.Payload, &status))
	require.Equal(t, "running", status.Status)
}

func TestConnPingPong(t *testing.T) {
	_, client := newSocketPair(t, false, nil)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","payload":{"timestamp":1234}}`)))

	f := readFrame(t, client)
	require.Equal(t, MsgPong, f.Type)
	var pong PongPayload
	require.NoError(t, json.Unmarshal(f.Payload, &pong))
	require.Equal(t, int64(1234), pong.Timestamp)
}

func TestConnMalformedFrame(t *testing.T) {
	_, client := newSocketPair(t, false, nil)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{not json`)))

	f := readFrame(t, client)
	require.Equal(t, MsgError, f.Type)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &errPayload))
	require.Equal(t, "VALIDATION_ERROR", errPayload.Code)
}

func TestConnDispatchesClientMessages(t *testing.T) {
	received := make(chan ClientMessage, 1)
	_, client := newSocketPair(t, false, func(_ *Conn, msg ClientMessage) {
		received <- msg
	})

	require.NoError(t, client.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"action","action":{"turn_token":"tok","kind":"call"}}`)))

	select {
	case msg := <-received:
		require.Equal(t, "action", msg.Type)
		require.NotNil(t, msg.Action)
		require.Equal(t, "tok", msg.Action.TurnToken)
		require.Equal(t, "call", msg.Action.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("message never dispatched")
	}
}

func TestConnDoneOnClientClose(t *testing.T) {
	conn, client := newSocketPair(t, false, nil)

	require.NoError(t, client.Close())

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after client disconnect")
	}
	require.ErrorIs(t, conn.Send(newEnvelope(MsgPong, "", 0, PongPayload{})), ErrConnClosed)
}

func TestConnCompactFrames(t *testing.T) {
	conn, client := newSocketPair(t, true, nil)

	require.NoError(t, conn.Send(newEnvelope(MsgAck, "tbl-1", 3, AckPayload{TurnToken: "tok"})))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "ack", out["type"])
	require.Equal(t, "tok", out["turn_token"])
	require.NotContains(t, out, "payload")
}
