package poker

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// ErrDeckExhausted is returned when a draw is requested beyond the 52 cards of
// a single hand.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is an ordered sequence of 52 unique cards. The order is a pure function
// of the seed string: the same seed always yields the same permutation, on any
// platform.
type Deck struct {
	cards [52]Card
	next  int
}

// NewDeck creates a deck shuffled deterministically from seed.
func NewDeck(seed string) *Deck {
	d := &Deck{}

	i := 0
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}

	// Fisher-Yates driven by a PCG stream derived from the seed. PCG output is
	// specified independently of platform word order, which keeps shuffles
	// bit-identical across runs and architectures.
	rng := seedRNG(seed)
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}

	return d
}

// HandSeed derives the per-hand deck seed from the table seed and hand number.
func HandSeed(tableSeed string, handNumber int) string {
	return fmt.Sprintf("%s:%d", tableSeed, handNumber)
}

// seedRNG maps an arbitrary seed string onto the two 64-bit words a PCG stream
// requires.
func seedRNG(seed string) *rand.Rand {
	sum := sha256.Sum256([]byte(seed))
	hi := binary.BigEndian.Uint64(sum[0:8])
	lo := binary.BigEndian.Uint64(sum[8:16])
	return rand.New(rand.NewPCG(hi, lo))
}

// Draw removes and returns the next n cards.
func (d *Deck) Draw(n int) ([]Card, error) {
	if d.next+n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Remaining returns the number of undrawn cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}
