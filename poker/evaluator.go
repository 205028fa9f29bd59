package poker

import (
	"fmt"
	"sort"
)

// Category enumerates poker hand categories from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Eval is the value of a five-card hand. Kickers is the full tiebreak vector,
// most significant rank first; BestFive is the winning five cards ordered by
// significance.
type Eval struct {
	Category Category
	Kickers  []Rank
	BestFive []Card
}

// Compare returns +1 if e beats other, -1 if other beats e, 0 on a tie.
// Ties compare equal even when suits differ.
func (e Eval) Compare(other Eval) int {
	if e.Category != other.Category {
		if e.Category > other.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(e.Kickers) && i < len(other.Kickers); i++ {
		if e.Kickers[i] != other.Kickers[i] {
			if e.Kickers[i] > other.Kickers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Description renders the hand for humans and agent logs, e.g.
// "Two Pair, Aces and Nines" or "Straight, Nine high".
func (e Eval) Description() string {
	k := e.Kickers
	switch e.Category {
	case HighCard:
		return fmt.Sprintf("High Card, %s", rankName(k[0]))
	case Pair:
		return fmt.Sprintf("Pair of %s", rankPlural(k[0]))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", rankPlural(k[0]), rankPlural(k[1]))
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", rankPlural(k[0]))
	case Straight:
		return fmt.Sprintf("Straight, %s high", rankName(k[0]))
	case Flush:
		return fmt.Sprintf("Flush, %s high", rankName(k[0]))
	case FullHouse:
		return fmt.Sprintf("Full House, %s over %s", rankPlural(k[0]), rankPlural(k[1]))
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", rankPlural(k[0]))
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s high", rankName(k[0]))
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Evaluate finds the best five-card hand from 5 to 7 cards. The result is
// insensitive to input order.
func Evaluate(cards []Card) (Eval, error) {
	n := len(cards)
	if n < 5 || n > 7 {
		return Eval{}, fmt.Errorf("evaluate requires 5-7 cards, got %d", n)
	}

	var best Eval
	first := true
	five := make([]Card, 5)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						five[0], five[1], five[2], five[3], five[4] =
							cards[a], cards[b], cards[c], cards[d], cards[e]
						ev := evaluateFive(five)
						if first || ev.Compare(best) > 0 {
							best = ev
							first = false
						}
					}
				}
			}
		}
	}
	return best, nil
}

// evaluateFive ranks exactly five cards.
func evaluateFive(five []Card) Eval {
	sorted := make([]Card, 5)
	copy(sorted, five)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	flush := true
	for i := 1; i < 5; i++ {
		if sorted[i].Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	straightHigh, isStraight := straightHighRank(sorted)

	counts := make(map[Rank]int, 5)
	for _, c := range sorted {
		counts[c.Rank]++
	}
	// Ranks ordered by count then rank, most significant first.
	groups := make([]Rank, 0, len(counts))
	for r := range counts {
		groups = append(groups, r)
	}
	sort.Slice(groups, func(i, j int) bool {
		if counts[groups[i]] != counts[groups[j]] {
			return counts[groups[i]] > counts[groups[j]]
		}
		return groups[i] > groups[j]
	})

	var cat Category
	var kickers []Rank
	switch {
	case flush && isStraight && straightHigh == Ace:
		cat, kickers = RoyalFlush, []Rank{Ace}
	case flush && isStraight:
		cat, kickers = StraightFlush, []Rank{straightHigh}
	case counts[groups[0]] == 4:
		cat, kickers = FourOfAKind, []Rank{groups[0], groups[1]}
	case counts[groups[0]] == 3 && counts[groups[1]] == 2:
		cat, kickers = FullHouse, []Rank{groups[0], groups[1]}
	case flush:
		cat, kickers = Flush, ranksOf(sorted)
	case isStraight:
		cat, kickers = Straight, []Rank{straightHigh}
	case counts[groups[0]] == 3:
		cat, kickers = ThreeOfAKind, groups
	case counts[groups[0]] == 2 && counts[groups[1]] == 2:
		cat, kickers = TwoPair, groups
	case counts[groups[0]] == 2:
		cat, kickers = Pair, groups
	default:
		cat, kickers = HighCard, ranksOf(sorted)
	}

	return Eval{
		Category: cat,
		Kickers:  kickers,
		BestFive: arrangeBestFive(sorted, counts, isStraight, straightHigh),
	}
}

// straightHighRank reports whether five descending-sorted cards form a
// straight, and its high rank. The wheel A-5-4-3-2 counts as a five-high
// straight.
func straightHighRank(sorted []Card) (Rank, bool) {
	distinct := true
	for i := 1; i < 5; i++ {
		if sorted[i].Rank == sorted[i-1].Rank {
			distinct = false
			break
		}
	}
	if !distinct {
		return 0, false
	}
	if sorted[0].Rank-sorted[4].Rank == 4 {
		return sorted[0].Rank, true
	}
	if sorted[0].Rank == Ace && sorted[1].Rank == Five && sorted[4].Rank == Two {
		return Five, true
	}
	return 0, false
}

// arrangeBestFive orders the five cards by significance: grouped ranks first,
// then kickers; straights in sequence order with the wheel ace last.
func arrangeBestFive(sorted []Card, counts map[Rank]int, isStraight bool, straightHigh Rank) []Card {
	out := make([]Card, 5)
	copy(out, sorted)
	if isStraight {
		if straightHigh == Five && out[0].Rank == Ace {
			// Wheel: 5-4-3-2-A.
			out = append(out[1:], out[0])
		}
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if counts[out[i].Rank] != counts[out[j].Rank] {
			return counts[out[i].Rank] > counts[out[j].Rank]
		}
		return out[i].Rank > out[j].Rank
	})
	return out
}

func ranksOf(cards []Card) []Rank {
	out := make([]Rank, len(cards))
	for i, c := range cards {
		out[i] = c.Rank
	}
	return out
}

func rankName(r Rank) string {
	switch r {
	case Two:
		return "Two"
	case Three:
		return "Three"
	case Four:
		return "Four"
	case Five:
		return "Five"
	case Six:
		return "Six"
	case Seven:
		return "Seven"
	case Eight:
		return "Eight"
	case Nine:
		return "Nine"
	case Ten:
		return "Ten"
	case Jack:
		return "Jack"
	case Queen:
		return "Queen"
	case King:
		return "King"
	case Ace:
		return "Ace"
	default:
		return "?"
	}
}

func rankPlural(r Rank) string {
	if r == Six {
		return "Sixes"
	}
	return rankName(r) + "s"
}
