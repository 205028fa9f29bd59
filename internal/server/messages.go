package server

import (
	"encoding/json"
	"time"

	"github.com/agentfelt/agentfelt/internal/game"
)

// Server → client message types. The set is closed; every envelope carries
// exactly one of the typed payloads below.
const (
	MsgWelcome      = "welcome"
	MsgGameState    = "game_state"
	MsgAck          = "ack"
	MsgError        = "error"
	MsgHandComplete = "hand_complete"
	MsgPlayerJoined = "player_joined"
	MsgPlayerLeft   = "player_left"
	MsgTableStatus  = "table_status"
	MsgPong         = "pong"
)

// Envelope is the wire frame for every server → client message.
type Envelope struct {
	Type    string    `json:"type"`
	TableID string    `json:"table_id,omitempty"`
	Seq     uint64    `json:"seq,omitempty"`
	Ts      time.Time `json:"ts"`
	Payload any       `json:"payload"`
}

// WelcomePayload greets a freshly registered socket.
type WelcomePayload struct {
	TableID         string `json:"table_id"`
	SeatID          int    `json:"seat_id"`
	ActionTimeoutMs int    `json:"action_timeout_ms"`
	ProtocolVersion int    `json:"protocol_version"`
}

// AckPayload confirms an accepted action.
type AckPayload struct {
	TurnToken string `json:"turn_token"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// ErrorPayload carries a stable code, a readable message and an optional
// pointer to the protocol documentation so agents can self-correct.
type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	SkillDocURL string `json:"skill_doc_url,omitempty"`
}

// TableStatusPayload announces a lifecycle transition.
type TableStatusPayload struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// PongPayload echoes a client ping timestamp.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ClientMessage is a client → server frame. Action messages carry the action
// inline; ping carries its payload.
type ClientMessage struct {
	Type        string          `json:"type"`
	Action      *WireAction     `json:"action,omitempty"`
	ExpectedSeq *uint64         `json:"expected_seq,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// WireAction is the client's betting action submission.
type WireAction struct {
	TurnToken string `json:"turn_token"`
	Kind      string `json:"kind"`
	Amount    int    `json:"amount,omitempty"`
}

type pingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func newEnvelope(msgType, tableID string, seq uint64, payload any) Envelope {
	return Envelope{
		Type:    msgType,
		TableID: tableID,
		Seq:     seq,
		Ts:      time.Now().UTC(),
		Payload: payload,
	}
}

func errorEnvelope(tableID, code, message, skillDocURL string) Envelope {
	return newEnvelope(MsgError, tableID, 0, ErrorPayload{
		Code:        code,
		Message:     message,
		SkillDocURL: skillDocURL,
	})
}

// encodeEnvelope renders an envelope for one connection, honoring the
// compact opt-in: compact frames strip envelope metadata and flatten the
// payload next to the type tag, dropping empty optional keys.
func encodeEnvelope(env Envelope, compact bool) ([]byte, error) {
	if !compact {
		return json.Marshal(env)
	}

	if v, ok := env.Payload.(game.View); ok {
		return json.Marshal(compactGameState(env.Type, v))
	}

	flat := map[string]any{"type": env.Type}
	if env.Payload != nil {
		raw, err := json.Marshal(env.Payload)
		if err != nil {
			return nil, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			flat[k] = v
		}
	}
	if env.Seq > 0 {
		flat["seq"] = env.Seq
	}
	return json.Marshal(flat)
}

// compactGameState is the token-economy form of a state projection: short
// keys, falsey keys omitted, side pots summed into one pot.
func compactGameState(msgType string, v game.View) map[string]any {
	players := make([]map[string]any, 0, len(v.Seats))
	for _, s := range v.Seats {
		p := map[string]any{
			"seat":  s.Seat,
			"stack": s.Stack,
		}
		if s.Name != "" {
			p["name"] = s.Name
		}
		if s.Bet > 0 {
			p["bet"] = s.Bet
		}
		if s.Folded {
			p["folded"] = true
		}
		if s.AllIn {
			p["allIn"] = true
		}
		if len(s.Cards) > 0 {
			p["cards"] = s.Cards
		}
		players = append(players, p)
	}

	out := map[string]any{
		"type":    msgType,
		"hand":    v.HandNumber,
		"phase":   v.Phase,
		"board":   v.Board,
		"pot":     v.Pot,
		"players": players,
		"dealer":  v.DealerSeat,
	}
	if v.Turn != nil {
		out["turn"] = *v.Turn
	}
	if len(v.Actions) > 0 {
		out["actions"] = v.Actions
	}
	if v.ToCall > 0 {
		out["toCall"] = v.ToCall
	}
	if v.TurnToken != "" {
		out["turn_token"] = v.TurnToken
	}
	return out
}
