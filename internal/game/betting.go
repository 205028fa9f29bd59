package game

// Phase is the table's position in the hand state machine.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
	PhaseEnded    Phase = "ended"
)

// Betting reports whether the phase accepts player actions.
func (p Phase) Betting() bool {
	switch p {
	case PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver:
		return true
	}
	return false
}

// nextPhase returns the following street and how many cards it reveals.
func nextPhase(p Phase) (Phase, int) {
	switch p {
	case PhasePreflop:
		return PhaseFlop, 3
	case PhaseFlop:
		return PhaseTurn, 1
	case PhaseTurn:
		return PhaseRiver, 1
	case PhaseRiver:
		return PhaseShowdown, 0
	default:
		return PhaseEnded, 0
	}
}

// betting holds per-street betting state. A new value is installed at the
// start of every street.
type betting struct {
	// currentBet is the highest per-seat street contribution that must be
	// matched.
	currentBet int
	// lastRaise is the size of the last full raise increment; a re-raise must
	// add at least this much. Short all-in raises below it do not update it
	// and do not re-open action.
	lastRaise int
}

// minRaiseTo is the minimum total a raise must reach. Preflop this floors at
// two big blinds.
func (b *betting) minRaiseTo(bigBlind int) int {
	m := b.currentBet + b.lastRaise
	if floor := 2 * bigBlind; m < floor {
		m = floor
	}
	return m
}
