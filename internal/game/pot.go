package game

import "sort"

// Pot is a main or side pot with the seats eligible to win it.
type Pot struct {
	Amount   int
	Eligible []int
}

// computePots partitions the hand's total contributions into a main pot and
// side pots, one layer per distinct all-in contribution level. Folded seats
// fund pots but are never eligible.
func computePots(seats map[int]*Seat) []Pot {
	ids := make([]int, 0, len(seats))
	for id, s := range seats {
		if s.TotalBet > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	if len(ids) == 0 {
		return nil
	}

	// Contribution levels at which a pot layer closes: every all-in seat's
	// total, plus the overall maximum.
	levelSet := make(map[int]bool)
	maxContribution := 0
	for _, id := range ids {
		s := seats[id]
		if s.AllIn && s.Contesting() {
			levelSet[s.TotalBet] = true
		}
		if s.TotalBet > maxContribution {
			maxContribution = s.TotalBet
		}
	}
	levelSet[maxContribution] = true

	levels := make([]int, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	var pots []Pot
	previous := 0
	for _, level := range levels {
		pot := Pot{}
		for _, id := range ids {
			s := seats[id]
			contribution := min(s.TotalBet, level) - previous
			if contribution <= 0 {
				continue
			}
			pot.Amount += contribution
			if s.Contesting() && s.TotalBet >= level {
				pot.Eligible = append(pot.Eligible, id)
			}
		}
		if pot.Amount > 0 {
			pots = append(pots, pot)
		}
		previous = level
	}

	// A lone over-bettor's uncalled excess surfaces as a final single-seat
	// layer; the award loop returns it to them.
	return pots
}

// potTotal sums pot amounts.
func potTotal(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
