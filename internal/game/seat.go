package game

import "github.com/agentfelt/agentfelt/poker"

// Seat is one occupied position at the table. The zero seat pointer means the
// position is empty; the runtime's seat map only holds occupied seats.
type Seat struct {
	ID        int
	AgentID   string
	AgentName string
	Stack     int
	// Bet is the amount in front of the seat for the current street.
	Bet int
	// TotalBet is the cumulative contribution this hand; side pots partition
	// on it.
	TotalBet  int
	Folded    bool
	AllIn     bool
	Active    bool
	HoleCards []poker.Card
	// acted reports whether the seat has acted since the last full raise of
	// the current street.
	acted bool
}

// DealtIn reports whether the seat received hole cards this hand.
func (s *Seat) DealtIn() bool {
	return len(s.HoleCards) == 2
}

// Contesting reports whether the seat still has a claim on the pot.
func (s *Seat) Contesting() bool {
	return s.DealtIn() && !s.Folded
}

// CanAct reports whether the seat has betting decisions left this hand.
func (s *Seat) CanAct() bool {
	return s.Contesting() && !s.AllIn
}
