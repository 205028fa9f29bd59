package game

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/agentfelt/agentfelt/poker"
)

// maxProcessedTokens bounds the per-hand duplicate-detection window.
const maxProcessedTokens = 64

// Config is the immutable configuration of one table.
type Config struct {
	SmallBlind        int
	BigBlind          int
	MaxSeats          int
	InitialStack      int
	ActionTimeoutMs   int
	MinPlayersToStart int
	Seed              string
}

// Runtime is the authoritative state machine for one table. It is not safe
// for concurrent use; callers serialize access through the per-table action
// lock. Given the same seed and the same ordered operation inputs, the
// emitted event stream is byte-identical across runs.
type Runtime struct {
	tableID string
	cfg     Config
	logger  *log.Logger

	phase       Phase
	handNumber  int
	dealerSeat  int
	currentSeat int
	seats       map[int]*Seat
	board       []poker.Card
	deck        *poker.Deck
	bet         betting

	seq       uint64
	turnToken string
	// processed maps accepted turn tokens to the seat that spent them and the
	// seq they produced, bounded to the most recent maxProcessedTokens and
	// cleared each hand.
	processed      map[string]processedToken
	processedOrder []string

	// handChips is the chip-conservation snapshot taken at HAND_START.
	handChips int
	corrupted bool
}

// NewRuntime creates a table runtime in the waiting phase.
func NewRuntime(tableID string, cfg Config, logger *log.Logger) *Runtime {
	return &Runtime{
		tableID:     tableID,
		cfg:         cfg,
		logger:      logger.WithPrefix("table").With("table_id", tableID),
		phase:       PhaseWaiting,
		dealerSeat:  -1,
		currentSeat: -1,
		seats:       make(map[int]*Seat),
		processed:   make(map[string]processedToken),
	}
}

// Accessors. The runtime owns its state; callers read through these under the
// action lock.

func (r *Runtime) TableID() string   { return r.tableID }
func (r *Runtime) Config() Config    { return r.cfg }
func (r *Runtime) Seq() uint64       { return r.seq }
func (r *Runtime) Phase() Phase      { return r.phase }
func (r *Runtime) HandNumber() int   { return r.handNumber }
func (r *Runtime) DealerSeat() int   { return r.dealerSeat }
func (r *Runtime) TurnToken() string { return r.turnToken }

// CurrentSeat returns the seat due to act, or -1.
func (r *Runtime) CurrentSeat() int { return r.currentSeat }

// NextSeq advances and returns the table version counter. The event log uses
// it to assign seqs to lifecycle events the runtime does not emit itself.
func (r *Runtime) NextSeq() uint64 {
	r.seq++
	return r.seq
}

// SeatedCount returns the number of occupied, active seats.
func (r *Runtime) SeatedCount() int {
	n := 0
	for _, s := range r.seats {
		if s.Active {
			n++
		}
	}
	return n
}

// PlayersWithChips returns the number of active seats able to play a hand.
func (r *Runtime) PlayersWithChips() int {
	n := 0
	for _, s := range r.seats {
		if s.Active && s.Stack > 0 {
			n++
		}
	}
	return n
}

// SeatForAgent returns the seat an agent occupies.
func (r *Runtime) SeatForAgent(agentID string) (int, bool) {
	for id, s := range r.seats {
		if s.AgentID == agentID && s.Active {
			return id, true
		}
	}
	return -1, false
}

// SeatSnapshot is a persistence-oriented view of one seat.
type SeatSnapshot struct {
	Seat    int
	AgentID string
	Name    string
	Stack   int
	Active  bool
}

// Snapshot returns all occupied seats in seat order.
func (r *Runtime) Snapshot() []SeatSnapshot {
	out := make([]SeatSnapshot, 0, len(r.seats))
	for _, id := range r.seatOrder() {
		s := r.seats[id]
		out = append(out, SeatSnapshot{
			Seat:    id,
			AgentID: s.AgentID,
			Name:    s.AgentName,
			Stack:   s.Stack,
			Active:  s.Active,
		})
	}
	return out
}

// AddPlayer seats an agent. Valid only for an empty seat within range.
func (r *Runtime) AddPlayer(seatID int, agentID, name string, stack int) Result {
	if r.corrupted {
		return errResult(CodeInternalError, "table state is corrupted")
	}
	if seatID < 0 || seatID >= r.cfg.MaxSeats {
		return errResult(CodeValidationError, fmt.Sprintf("seat %d out of range", seatID))
	}
	if _, taken := r.seats[seatID]; taken {
		return errResult(CodeTableFull, fmt.Sprintf("seat %d is taken", seatID))
	}
	if _, seated := r.SeatForAgent(agentID); seated {
		return errResult(CodeAlreadySeated, "agent already seated at this table")
	}

	r.seats[seatID] = &Seat{
		ID:        seatID,
		AgentID:   agentID,
		AgentName: name,
		Stack:     stack,
		Active:    true,
	}

	ev := Event{
		Seq:  r.NextSeq(),
		Type: EventPlayerJoined,
		Payload: PlayerSeatPayload{
			Seat:    seatID,
			AgentID: agentID,
			Name:    name,
			Stack:   stack,
		},
	}
	return okResult(r.seq, []Event{ev})
}

// RemovePlayer vacates a seat. Mid-hand the seat is folded and deactivated;
// between hands it is cleared outright. Idempotent.
func (r *Runtime) RemovePlayer(seatID int) Result {
	seat, ok := r.seats[seatID]
	if !ok || !seat.Active {
		return okResult(r.seq, nil)
	}

	var events []Event
	if r.phase.Betting() && seat.DealtIn() {
		res := r.forceFoldLocked(seatID, false, "leave")
		events = append(events, res.Events...)
		seat.Active = false
	} else {
		delete(r.seats, seatID)
	}

	events = append(events, Event{
		Seq:        r.NextSeq(),
		HandNumber: r.handNumber,
		Type:       EventPlayerLeft,
		Payload: PlayerSeatPayload{
			Seat:    seatID,
			AgentID: seat.AgentID,
			Name:    seat.AgentName,
		},
	})
	res := okResult(r.seq, events)
	res.HandComplete = r.phase == PhaseEnded
	return res
}

// StartHand deals the next hand. Requires at least two active seats with
// chips.
func (r *Runtime) StartHand() Result {
	if r.corrupted {
		return errResult(CodeInternalError, "table state is corrupted")
	}
	if r.phase.Betting() {
		return errResult(CodeInvalidTableState, "hand already in progress")
	}

	// Seats that left mid-hand are cleared before the next deal.
	for id, s := range r.seats {
		if !s.Active {
			delete(r.seats, id)
		}
	}

	if r.PlayersWithChips() < 2 {
		return errResult(CodeInvalidTableState, "not enough players with chips")
	}

	r.handNumber++
	r.board = nil
	r.processed = make(map[string]processedToken)
	r.processedOrder = r.processedOrder[:0]
	for _, s := range r.seats {
		s.Bet = 0
		s.TotalBet = 0
		s.Folded = false
		s.AllIn = false
		s.HoleCards = nil
		s.acted = false
	}

	canPlay := func(s *Seat) bool { return s.Active && s.Stack > 0 }
	r.dealerSeat = r.nextSeat(r.dealerSeat, canPlay)
	r.deck = poker.NewDeck(poker.HandSeed(r.cfg.Seed, r.handNumber))

	// Conservation snapshot: total chips on the table must be unchanged at
	// HAND_COMPLETE.
	r.handChips = 0
	for _, s := range r.seats {
		r.handChips += s.Stack
	}

	startStacks := make([]SeatStack, 0, len(r.seats))
	for _, id := range r.seatOrder() {
		s := r.seats[id]
		if canPlay(s) {
			startStacks = append(startStacks, SeatStack{Seat: id, Name: s.AgentName, Stack: s.Stack})
		}
	}

	var sbSeat, bbSeat int
	if len(startStacks) == 2 {
		// Heads-up: the dealer posts the small blind.
		sbSeat = r.dealerSeat
		bbSeat = r.nextSeat(sbSeat, canPlay)
	} else {
		sbSeat = r.nextSeat(r.dealerSeat, canPlay)
		bbSeat = r.nextSeat(sbSeat, canPlay)
	}
	sb := r.postBlind(sbSeat, r.cfg.SmallBlind)
	bb := r.postBlind(bbSeat, r.cfg.BigBlind)
	r.bet = betting{currentBet: r.cfg.BigBlind, lastRaise: r.cfg.BigBlind}

	// Hole cards go out in dealer order, starting left of the dealer.
	for _, id := range r.clockwiseFrom(r.dealerSeat, canPlay) {
		cards, err := r.deck.Draw(2)
		if err != nil {
			r.corrupted = true
			return errResult(CodeInternalError, "deck exhausted during deal")
		}
		r.seats[id].HoleCards = cards
	}

	r.phase = PhasePreflop

	events := []Event{{
		Seq:        r.NextSeq(),
		HandNumber: r.handNumber,
		Type:       EventHandStart,
		Payload: HandStartPayload{
			HandNumber: r.handNumber,
			DealerSeat: r.dealerSeat,
			SmallBlind: sb,
			BigBlind:   bb,
			Seats:      startStacks,
		},
	}}

	// First to act preflop is the seat after the big blind.
	r.currentSeat = r.nextSeat(bbSeat, func(s *Seat) bool { return s.CanAct() })
	if r.roundComplete() {
		// Blinds put everyone all-in: run the board out immediately.
		r.closeStreets(&events)
	} else {
		r.mintToken()
	}

	if r.corrupted {
		return errResult(CodeInternalError, "chip conservation violated")
	}
	res := okResult(r.seq, events)
	res.HandComplete = r.phase == PhaseEnded
	return res
}

// postBlind moves up to amount from the seat's stack into its bet, marking a
// short post as all-in.
func (r *Runtime) postBlind(seatID, amount int) BlindPost {
	s := r.seats[seatID]
	paid := min(amount, s.Stack)
	s.Stack -= paid
	s.Bet += paid
	s.TotalBet += paid
	if s.Stack == 0 {
		s.AllIn = true
	}
	return BlindPost{Seat: seatID, Amount: paid, AllIn: s.AllIn}
}

// ApplyAction validates and applies one player action. All rejections are
// structured results; rejected actions never mutate state.
func (r *Runtime) ApplyAction(seatID int, req ActionRequest) Result {
	if r.corrupted {
		return errResult(CodeInternalError, "table state is corrupted")
	}
	// A retried request with an already-processed turn token gets its
	// original outcome, even if the turn has since moved on or the hand
	// completed. Tokens are only honored for the seat that spent them.
	if prior, done := r.processed[req.TurnToken]; done {
		if prior.seat != seatID {
			return errResult(CodeNotYourTurn, "turn token belongs to another seat")
		}
		return Result{OK: true, Duplicate: true, Seq: prior.seq}
	}
	if !r.phase.Betting() {
		return errResult(CodeInvalidTableState, "no betting round in progress")
	}
	if seatID != r.currentSeat {
		return errResult(CodeNotYourTurn, "it is not your turn to act")
	}
	if req.TurnToken != r.turnToken {
		return errResult(CodeInvalidAction, "stale turn token")
	}

	seat := r.seats[seatID]
	toCall := r.bet.currentBet - seat.Bet

	// Validate fully before mutating anything.
	var paid int
	var fullRaise bool
	switch req.Kind {
	case ActionFold:
	case ActionCheck:
		if toCall != 0 {
			return errResult(CodeInvalidAction, fmt.Sprintf("cannot check, %d to call", toCall))
		}
	case ActionCall:
		if toCall <= 0 {
			return errResult(CodeInvalidAction, "nothing to call")
		}
		paid = min(toCall, seat.Stack)
	case ActionRaiseTo:
		if seat.acted {
			// Only a full raise re-opens action; facing a short all-in the
			// seat may call or fold but not raise again.
			return errResult(CodeInvalidAction, "cannot raise, action was not re-opened")
		}
		amount := req.Amount
		if amount <= r.bet.currentBet {
			return errResult(CodeInvalidAction, fmt.Sprintf("raise must exceed current bet of %d", r.bet.currentBet))
		}
		paid = amount - seat.Bet
		if paid > seat.Stack {
			return errResult(CodeInvalidAction, "insufficient chips for raise")
		}
		minTo := r.bet.minRaiseTo(r.cfg.BigBlind)
		fullRaise = amount >= minTo
		if !fullRaise && paid < seat.Stack {
			return errResult(CodeInvalidAction, fmt.Sprintf("raise below minimum of %d", minTo))
		}
	default:
		return errResult(CodeValidationError, fmt.Sprintf("unknown action kind %q", req.Kind))
	}

	// Apply.
	switch req.Kind {
	case ActionFold:
		seat.Folded = true
	case ActionCall, ActionRaiseTo:
		seat.Stack -= paid
		seat.Bet += paid
		seat.TotalBet += paid
		if seat.Stack == 0 {
			seat.AllIn = true
		}
		if req.Kind == ActionRaiseTo {
			if fullRaise {
				// A full raise re-opens the action for everyone behind.
				r.bet.lastRaise = seat.Bet - r.bet.currentBet
				for _, other := range r.seats {
					if other.ID != seatID {
						other.acted = false
					}
				}
			}
			r.bet.currentBet = seat.Bet
		}
	}
	seat.acted = true

	events := []Event{{
		Seq:        r.NextSeq(),
		HandNumber: r.handNumber,
		Type:       EventPlayerAction,
		Payload: PlayerActionPayload{
			Seat:   seatID,
			Kind:   string(req.Kind),
			Amount: paid,
			Street: string(r.phase),
			Pot:    potTotal(computePots(r.seats)),
		},
	}}

	r.advanceAfterAction(seatID, &events)

	if r.corrupted {
		return errResult(CodeInternalError, "chip conservation violated")
	}

	r.recordToken(req.TurnToken, seatID, r.seq)
	res := okResult(r.seq, events)
	res.HandComplete = r.phase == PhaseEnded
	return res
}

// ForceFold folds a seat regardless of turn order, used by the action-timeout
// timer and by leave/kick. Idempotent when the seat is already folded or out
// of the hand.
func (r *Runtime) ForceFold(seatID int, isTimeout bool) Result {
	if r.corrupted {
		return errResult(CodeInternalError, "table state is corrupted")
	}
	reason := ""
	if isTimeout {
		reason = "timeout"
	}
	return r.forceFoldLocked(seatID, isTimeout, reason)
}

// AbortHand cancels an in-progress hand, refunding every seat's contribution.
// Used when a table terminates mid-hand; no events are emitted because the
// hand never resolves.
func (r *Runtime) AbortHand() {
	if !r.phase.Betting() && r.phase != PhaseShowdown {
		return
	}
	for _, s := range r.seats {
		s.Stack += s.TotalBet
		s.Bet = 0
		s.TotalBet = 0
		s.HoleCards = nil
		s.Folded = false
		s.AllIn = false
		s.acted = false
	}
	r.board = nil
	r.phase = PhaseEnded
	r.currentSeat = -1
	r.turnToken = ""
}

func (r *Runtime) forceFoldLocked(seatID int, isTimeout bool, reason string) Result {
	if !r.phase.Betting() {
		return okResult(r.seq, nil)
	}
	seat, ok := r.seats[seatID]
	if !ok || seat.Folded || !seat.DealtIn() {
		return okResult(r.seq, nil)
	}

	seat.Folded = true
	seat.acted = true

	events := []Event{{
		Seq:        r.NextSeq(),
		HandNumber: r.handNumber,
		Type:       EventPlayerAction,
		Payload: PlayerActionPayload{
			Seat:      seatID,
			Kind:      string(ActionFold),
			IsTimeout: isTimeout,
			Reason:    reason,
			Street:    string(r.phase),
			Pot:       potTotal(computePots(r.seats)),
		},
	}}

	r.advanceAfterAction(seatID, &events)

	if r.corrupted {
		return errResult(CodeInternalError, "chip conservation violated")
	}
	res := okResult(r.seq, events)
	res.HandComplete = r.phase == PhaseEnded
	return res
}

// advanceAfterAction moves the hand forward once a seat has acted or been
// folded: award if uncontested, close the street if the round is settled, or
// pass the turn.
func (r *Runtime) advanceAfterAction(actedSeat int, events *[]Event) {
	if r.countContesting() == 1 {
		r.awardUncontested(events)
		return
	}
	if r.roundComplete() {
		r.closeStreets(events)
		return
	}
	if actedSeat == r.currentSeat {
		r.currentSeat = r.nextSeat(actedSeat, func(s *Seat) bool { return s.CanAct() })
		r.mintToken()
	}
}

// roundComplete reports whether the current betting round is settled: every
// seat that can still act has matched the bet and acted since the last full
// raise. A lone actor only needs to have matched.
func (r *Runtime) roundComplete() bool {
	actors := 0
	for _, s := range r.seats {
		if s.CanAct() {
			actors++
		}
	}
	switch actors {
	case 0:
		return true
	case 1:
		for _, s := range r.seats {
			if s.CanAct() {
				return s.Bet == r.bet.currentBet
			}
		}
	}
	for _, s := range r.seats {
		if s.CanAct() && (!s.acted || s.Bet != r.bet.currentBet) {
			return false
		}
	}
	return true
}

// closeStreets collects bets, advances streets (running the board out when no
// further betting is possible) and resolves the showdown on the river.
func (r *Runtime) closeStreets(events *[]Event) {
	for {
		for _, s := range r.seats {
			s.Bet = 0
			s.acted = false
		}
		r.bet = betting{lastRaise: r.cfg.BigBlind}

		if r.phase == PhaseRiver {
			r.resolveShowdown(events)
			return
		}

		phase, reveal := nextPhase(r.phase)
		cards, err := r.deck.Draw(reveal)
		if err != nil {
			r.corrupted = true
			return
		}
		r.phase = phase
		r.board = append(r.board, cards...)

		*events = append(*events, Event{
			Seq:        r.NextSeq(),
			HandNumber: r.handNumber,
			Type:       EventStreetDealt,
			Payload: StreetDealtPayload{
				Street: string(phase),
				Cards:  poker.CardStrings(cards),
				Board:  poker.CardStrings(r.board),
			},
		})

		if r.countCanAct() >= 2 {
			// Post-flop action opens with the first live seat after the
			// dealer.
			r.currentSeat = r.nextSeat(r.dealerSeat, func(s *Seat) bool { return s.CanAct() })
			r.mintToken()
			return
		}
		// All-in runout: keep dealing without input.
		r.currentSeat = -1
		r.turnToken = ""
	}
}

// resolveShowdown evaluates every contesting hand, awards each pot to its
// best eligible hand and completes the hand.
func (r *Runtime) resolveShowdown(events *[]Event) {
	r.phase = PhaseShowdown
	r.currentSeat = -1
	r.turnToken = ""

	evals := make(map[int]poker.Eval)
	hands := make([]ShowdownHand, 0, len(r.seats))
	for _, id := range r.seatOrder() {
		s := r.seats[id]
		if !s.Contesting() {
			continue
		}
		ev, err := poker.Evaluate(append(append([]poker.Card{}, s.HoleCards...), r.board...))
		if err != nil {
			r.corrupted = true
			return
		}
		evals[id] = ev
		hands = append(hands, ShowdownHand{
			Seat:        id,
			Cards:       poker.CardStrings(s.HoleCards),
			Description: ev.Description(),
		})
	}

	*events = append(*events, Event{
		Seq:        r.NextSeq(),
		HandNumber: r.handNumber,
		Type:       EventShowdown,
		Payload: ShowdownPayload{
			Board: poker.CardStrings(r.board),
			Hands: hands,
		},
	})

	results := r.awardPots(func(eligible []int) []int {
		var best poker.Eval
		var winners []int
		for _, id := range eligible {
			ev := evals[id]
			if len(winners) == 0 {
				best = ev
				winners = []int{id}
				continue
			}
			switch ev.Compare(best) {
			case 1:
				best = ev
				winners = []int{id}
			case 0:
				winners = append(winners, id)
			}
		}
		return winners
	})

	r.completeHand(events, true, results)
}

// awardUncontested gives every pot to the last contesting seat without a
// showdown.
func (r *Runtime) awardUncontested(events *[]Event) {
	winner := -1
	for id, s := range r.seats {
		if s.Contesting() {
			winner = id
			break
		}
	}
	results := r.awardPots(func([]int) []int { return []int{winner} })
	r.currentSeat = -1
	r.turnToken = ""
	r.completeHand(events, false, results)
}

// awardPots distributes every pot using pickWinners to choose among eligible
// seats. Split pots divide evenly; the odd chip goes to the winner closest
// clockwise from the dealer.
func (r *Runtime) awardPots(pickWinners func(eligible []int) []int) []PotResult {
	pots := computePots(r.seats)
	results := make([]PotResult, 0, len(pots))
	for _, pot := range pots {
		eligible := pot.Eligible
		if len(eligible) == 0 {
			// Uncalled excess from a seat that later left the hand: hand it
			// to whoever is still contesting.
			for _, id := range r.seatOrder() {
				if r.seats[id].Contesting() {
					eligible = append(eligible, id)
				}
			}
		}
		winners := pickWinners(eligible)
		sort.Ints(winners)

		share := pot.Amount / len(winners)
		remainder := pot.Amount - share*len(winners)

		awards := make(map[int]int, len(winners))
		for _, id := range winners {
			awards[id] = share
		}
		if remainder > 0 {
			awards[r.closestClockwiseFromDealer(winners)] += remainder
		}

		potWinners := make([]PotWinner, 0, len(winners))
		for _, id := range winners {
			r.seats[id].Stack += awards[id]
			potWinners = append(potWinners, PotWinner{Seat: id, Amount: awards[id]})
		}
		results = append(results, PotResult{
			Amount:   pot.Amount,
			Eligible: pot.Eligible,
			Winners:  potWinners,
		})
	}

	for _, s := range r.seats {
		s.TotalBet = 0
		s.Bet = 0
	}
	return results
}

// closestClockwiseFromDealer picks the candidate seat reached first moving
// clockwise from the dealer.
func (r *Runtime) closestClockwiseFromDealer(candidates []int) int {
	isCandidate := make(map[int]bool, len(candidates))
	for _, id := range candidates {
		isCandidate[id] = true
	}
	for i := 1; i <= r.cfg.MaxSeats; i++ {
		pos := (r.dealerSeat + i) % r.cfg.MaxSeats
		if isCandidate[pos] {
			return pos
		}
	}
	return candidates[0]
}

// completeHand emits HAND_COMPLETE and verifies chip conservation.
func (r *Runtime) completeHand(events *[]Event, showdown bool, pots []PotResult) {
	total := 0
	stacks := make([]SeatStack, 0, len(r.seats))
	for _, id := range r.seatOrder() {
		s := r.seats[id]
		total += s.Stack
		stacks = append(stacks, SeatStack{Seat: id, Name: s.AgentName, Stack: s.Stack})
	}
	if total != r.handChips {
		r.logger.Error("chip conservation violated",
			"hand", r.handNumber, "expected", r.handChips, "actual", total)
		r.corrupted = true
		return
	}

	r.phase = PhaseEnded
	r.currentSeat = -1
	r.turnToken = ""

	*events = append(*events, Event{
		Seq:        r.NextSeq(),
		HandNumber: r.handNumber,
		Type:       EventHandComplete,
		Payload: HandCompletePayload{
			HandNumber: r.handNumber,
			Showdown:   showdown,
			Pots:       pots,
			Stacks:     stacks,
		},
	})
}

// processedToken is the outcome recorded for a spent turn token.
type processedToken struct {
	seat int
	seq  uint64
}

// recordToken remembers an accepted turn token, bounded to the most recent
// maxProcessedTokens.
func (r *Runtime) recordToken(token string, seat int, seq uint64) {
	if _, exists := r.processed[token]; exists {
		return
	}
	r.processed[token] = processedToken{seat: seat, seq: seq}
	r.processedOrder = append(r.processedOrder, token)
	if len(r.processedOrder) > maxProcessedTokens {
		oldest := r.processedOrder[0]
		r.processedOrder = r.processedOrder[1:]
		delete(r.processed, oldest)
	}
}

// mintToken issues the turn token for the current (seat, seq) position.
// Tokens are deterministic per table seed so replays reproduce them, and they
// are only ever accepted from the seat they were issued to.
func (r *Runtime) mintToken() {
	data := fmt.Sprintf("%s:%s:%d:%d", r.tableID, r.cfg.Seed, r.handNumber, r.seq)
	r.turnToken = uuid.NewSHA1(uuid.NameSpaceOID, []byte(data)).String()
}

// seatOrder returns occupied seat ids ascending.
func (r *Runtime) seatOrder() []int {
	ids := make([]int, 0, len(r.seats))
	for id := range r.seats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// nextSeat finds the first seat clockwise after `from` matching pred, or -1.
func (r *Runtime) nextSeat(from int, pred func(*Seat) bool) int {
	for i := 1; i <= r.cfg.MaxSeats; i++ {
		pos := (from + i) % r.cfg.MaxSeats
		if s, ok := r.seats[pos]; ok && pred(s) {
			return pos
		}
	}
	return -1
}

// clockwiseFrom lists seats matching pred in clockwise order starting after
// `from`.
func (r *Runtime) clockwiseFrom(from int, pred func(*Seat) bool) []int {
	out := make([]int, 0, len(r.seats))
	for i := 1; i <= r.cfg.MaxSeats; i++ {
		pos := (from + i) % r.cfg.MaxSeats
		if s, ok := r.seats[pos]; ok && pred(s) {
			out = append(out, pos)
		}
	}
	return out
}

func (r *Runtime) countContesting() int {
	n := 0
	for _, s := range r.seats {
		if s.Contesting() {
			n++
		}
	}
	return n
}

func (r *Runtime) countCanAct() int {
	n := 0
	for _, s := range r.seats {
		if s.CanAct() {
			n++
		}
	}
	return n
}
