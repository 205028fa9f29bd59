package game

import "github.com/agentfelt/agentfelt/poker"

// ActionOption is one legal action with its chip bounds.
type ActionOption struct {
	Kind string `json:"kind"`
	Min  int    `json:"min,omitempty"`
	Max  int    `json:"max,omitempty"`
}

// SeatView is one seat as seen by a viewer. Cards are only populated for the
// viewer's own seat.
type SeatView struct {
	Seat   int      `json:"seat"`
	Name   string   `json:"name,omitempty"`
	Stack  int      `json:"stack"`
	Bet    int      `json:"bet,omitempty"`
	Folded bool     `json:"folded,omitempty"`
	AllIn  bool     `json:"all_in,omitempty"`
	Cards  []string `json:"cards,omitempty"`
}

// PotView is a pot layer as shown to clients.
type PotView struct {
	Amount   int   `json:"amount"`
	Eligible []int `json:"eligible"`
}

// View is a projection of table state for one viewer. The turn token and the
// legal action list only appear in the view sent to the seat due to act.
type View struct {
	TableID    string         `json:"table_id"`
	Seq        uint64         `json:"seq"`
	HandNumber int            `json:"hand_number,omitempty"`
	Phase      string         `json:"phase"`
	DealerSeat int            `json:"dealer_seat"`
	Board      []string       `json:"board"`
	Pot        int            `json:"pot"`
	Pots       []PotView      `json:"pots,omitempty"`
	Seats      []SeatView     `json:"seats"`
	Turn       *int           `json:"turn,omitempty"`
	ToCall     int            `json:"to_call,omitempty"`
	MinRaiseTo int            `json:"min_raise_to,omitempty"`
	Actions    []ActionOption `json:"actions,omitempty"`
	TurnToken  string         `json:"turn_token,omitempty"`
}

// PublicState is the observer projection: no hole cards, no turn token.
func (r *Runtime) PublicState() View {
	return r.project(-1, false)
}

// RevealedState is the admin-observer projection: every dealt-in seat's hole
// cards are visible, but no turn token.
func (r *Runtime) RevealedState() View {
	return r.project(-1, true)
}

// StateForSeat is the projection for the player in seatID. It reveals that
// seat's own hole cards, and the turn token plus legal actions when the seat
// is due to act.
func (r *Runtime) StateForSeat(seatID int) View {
	return r.project(seatID, false)
}

func (r *Runtime) project(viewerSeat int, revealAll bool) View {
	pots := computePots(r.seats)
	v := View{
		TableID:    r.tableID,
		Seq:        r.seq,
		HandNumber: r.handNumber,
		Phase:      string(r.phase),
		DealerSeat: r.dealerSeat,
		Board:      poker.CardStrings(r.board),
		Pot:        potTotal(pots),
	}
	for _, p := range pots {
		v.Pots = append(v.Pots, PotView{Amount: p.Amount, Eligible: p.Eligible})
	}
	for _, id := range r.seatOrder() {
		s := r.seats[id]
		sv := SeatView{
			Seat:   id,
			Name:   s.AgentName,
			Stack:  s.Stack,
			Bet:    s.Bet,
			Folded: s.Folded,
			AllIn:  s.AllIn,
		}
		if id == viewerSeat || revealAll {
			sv.Cards = poker.CardStrings(s.HoleCards)
		}
		v.Seats = append(v.Seats, sv)
	}
	if r.currentSeat >= 0 {
		turn := r.currentSeat
		v.Turn = &turn
		if viewerSeat == r.currentSeat {
			v.TurnToken = r.turnToken
			v.Actions = r.LegalActions()
			if s := r.seats[r.currentSeat]; s != nil {
				v.ToCall = min(r.bet.currentBet-s.Bet, s.Stack)
			}
			v.MinRaiseTo = r.bet.minRaiseTo(r.cfg.BigBlind)
		}
	}
	return v
}

// LegalActions lists the actions the current seat may take. Empty when no
// seat is due to act.
func (r *Runtime) LegalActions() []ActionOption {
	if r.currentSeat < 0 || !r.phase.Betting() {
		return nil
	}
	s := r.seats[r.currentSeat]
	toCall := r.bet.currentBet - s.Bet

	actions := []ActionOption{{Kind: string(ActionFold)}}
	if toCall == 0 {
		actions = append(actions, ActionOption{Kind: string(ActionCheck)})
	} else {
		actions = append(actions, ActionOption{
			Kind: string(ActionCall),
			Min:  min(toCall, s.Stack),
			Max:  min(toCall, s.Stack),
		})
	}
	// A raise is legal whenever the seat can put in more than the current
	// bet and action is open to it; an all-in below the minimum raise is
	// always allowed.
	if maxTo := s.Bet + s.Stack; maxTo > r.bet.currentBet && !s.acted {
		actions = append(actions, ActionOption{
			Kind: string(ActionRaiseTo),
			Min:  min(r.bet.minRaiseTo(r.cfg.BigBlind), maxTo),
			Max:  maxTo,
		})
	}
	return actions
}
