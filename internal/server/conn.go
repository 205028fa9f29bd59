package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// ErrConnClosed is returned when sending on a closed connection.
var ErrConnClosed = errors.New("connection closed")

// Conn wraps one WebSocket with a buffered single-writer send queue. All
// socket writes go through the write pump; the rest of the server only ever
// enqueues.
type Conn struct {
	ws      *websocket.Conn
	send    chan []byte
	compact bool
	logger  *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// onMessage handles a decoded client frame. Nil for sockets that only
	// receive (observers still get ping handling in the read pump).
	onMessage func(*Conn, ClientMessage)
}

// NewConn wraps an upgraded socket. Start must be called to begin pumping.
func NewConn(ws *websocket.Conn, compact bool, logger *log.Logger, onMessage func(*Conn, ClientMessage)) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		compact:   compact,
		logger:    logger.WithPrefix("conn"),
		ctx:       ctx,
		cancel:    cancel,
		onMessage: onMessage,
	}
}

// Start launches the read and write pumps.
func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the socket down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close()
	})
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// CloseWithReason sends a normal-closure frame with a short reason before
// closing.
func (c *Conn) CloseWithReason(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Close()
}

// Send enqueues an envelope, encoding per the connection's compact opt-in. A
// full buffer means the client cannot keep up; the connection is closed
// rather than blocking the broadcaster.
func (c *Conn) Send(env Envelope) error {
	data, err := encodeEnvelope(env, c.compact)
	if err != nil {
		return err
	}
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.Close()
		return ErrConnClosed
	}
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(errorEnvelope("", "VALIDATION_ERROR", "malformed JSON frame", ""))
			continue
		}

		if msg.Type == "ping" {
			var ping pingPayload
			_ = json.Unmarshal(msg.Payload, &ping)
			_ = c.Send(newEnvelope(MsgPong, "", 0, PongPayload{Timestamp: ping.Timestamp}))
			continue
		}

		if c.onMessage != nil {
			c.onMessage(c, msg)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
