package game

// EventType identifies an entry in a table's append-only event log.
type EventType string

const (
	EventTableStarted EventType = "TABLE_STARTED"
	EventPlayerJoined EventType = "PLAYER_JOINED"
	EventHandStart    EventType = "HAND_START"
	EventStreetDealt  EventType = "STREET_DEALT"
	EventPlayerAction EventType = "PLAYER_ACTION"
	EventShowdown     EventType = "SHOWDOWN"
	EventHandComplete EventType = "HAND_COMPLETE"
	EventPlayerLeft   EventType = "PLAYER_LEFT"
	EventTableEnded   EventType = "TABLE_ENDED"
)

// Lifecycle reports whether failures writing this event type must surface
// rather than be fire-and-forget.
func (t EventType) Lifecycle() bool {
	switch t {
	case EventTableStarted, EventHandStart, EventHandComplete, EventTableEnded:
		return true
	}
	return false
}

// Event is one ordered entry in a table's event stream. Seq is strictly
// increasing and dense within a table.
type Event struct {
	Seq        uint64    `json:"seq"`
	HandNumber int       `json:"hand_number,omitempty"`
	Type       EventType `json:"type"`
	Payload    any       `json:"payload"`
}

// BlindPost records a blind payment inside HAND_START.
type BlindPost struct {
	Seat   int  `json:"seat"`
	Amount int  `json:"amount"`
	AllIn  bool `json:"all_in,omitempty"`
}

// SeatStack is a seat/stack pair used in hand start and completion payloads.
type SeatStack struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name,omitempty"`
	Stack int    `json:"stack"`
}

// HandStartPayload describes the deal of a new hand. Hole cards are never
// logged; they reach each player only through their private state projection.
type HandStartPayload struct {
	HandNumber int         `json:"hand_number"`
	DealerSeat int         `json:"dealer_seat"`
	SmallBlind BlindPost   `json:"small_blind"`
	BigBlind   BlindPost   `json:"big_blind"`
	Seats      []SeatStack `json:"seats"`
}

// StreetDealtPayload records community cards being revealed.
type StreetDealtPayload struct {
	Street string   `json:"street"`
	Cards  []string `json:"cards"`
	Board  []string `json:"board"`
}

// PlayerActionPayload records a single accepted player action.
type PlayerActionPayload struct {
	Seat      int    `json:"seat"`
	Kind      string `json:"kind"`
	Amount    int    `json:"amount,omitempty"`
	IsTimeout bool   `json:"is_timeout,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Street    string `json:"street"`
	Pot       int    `json:"pot"`
}

// ShowdownHand is one revealed hand at showdown.
type ShowdownHand struct {
	Seat        int      `json:"seat"`
	Cards       []string `json:"cards"`
	Description string   `json:"description"`
}

// ShowdownPayload lists every hand revealed at showdown.
type ShowdownPayload struct {
	Board []string       `json:"board"`
	Hands []ShowdownHand `json:"hands"`
}

// PotWinner is one seat's share of one pot.
type PotWinner struct {
	Seat   int `json:"seat"`
	Amount int `json:"amount"`
}

// PotResult is the resolution of a single pot.
type PotResult struct {
	Amount   int         `json:"amount"`
	Eligible []int       `json:"eligible"`
	Winners  []PotWinner `json:"winners"`
}

// HandCompletePayload closes out a hand: per-pot awards and final stacks.
type HandCompletePayload struct {
	HandNumber int         `json:"hand_number"`
	Showdown   bool        `json:"showdown"`
	Pots       []PotResult `json:"pots"`
	Stacks     []SeatStack `json:"stacks"`
}

// PlayerSeatPayload is used for PLAYER_JOINED and PLAYER_LEFT.
type PlayerSeatPayload struct {
	Seat    int    `json:"seat"`
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
	Stack   int    `json:"stack,omitempty"`
}

// TableStartedPayload records the effective configuration a table started with.
type TableStartedPayload struct {
	SmallBlind        int `json:"small_blind"`
	BigBlind          int `json:"big_blind"`
	MaxSeats          int `json:"max_seats"`
	InitialStack      int `json:"initial_stack"`
	ActionTimeoutMs   int `json:"action_timeout_ms"`
	MinPlayersToStart int `json:"min_players_to_start"`
	SeatedPlayers     int `json:"seated_players"`
}

// TableEndedPayload records why a table ended and the final stacks.
type TableEndedPayload struct {
	Reason string      `json:"reason"`
	Stacks []SeatStack `json:"stacks"`
}
