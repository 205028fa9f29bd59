package poker

import (
	"testing"

	chpoker "github.com/chehsunliu/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalStrings(t *testing.T, ss ...string) Eval {
	t.Helper()
	cards, err := ParseCards(ss)
	require.NoError(t, err)
	ev, err := Evaluate(cards)
	require.NoError(t, err)
	return ev
}

func TestEvaluateCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cards []string
		want  Category
	}{
		{"high card", []string{"As", "Kd", "9h", "7c", "4s", "3d", "2c"}, HighCard},
		{"pair", []string{"As", "Ad", "9h", "7c", "4s", "3d", "2c"}, Pair},
		{"two pair", []string{"As", "Ad", "9h", "9c", "4s", "3d", "2c"}, TwoPair},
		{"trips", []string{"As", "Ad", "Ah", "9c", "4s", "3d", "2c"}, ThreeOfAKind},
		{"straight", []string{"9s", "8d", "7h", "6c", "5s", "Ad", "Kc"}, Straight},
		{"wheel", []string{"As", "2d", "3h", "4c", "5s", "Kd", "Qc"}, Straight},
		{"flush", []string{"As", "Ks", "9s", "7s", "4s", "3d", "2c"}, Flush},
		{"full house", []string{"As", "Ad", "Ah", "9c", "9s", "3d", "2c"}, FullHouse},
		{"quads", []string{"As", "Ad", "Ah", "Ac", "4s", "3d", "2c"}, FourOfAKind},
		{"straight flush", []string{"9s", "8s", "7s", "6s", "5s", "Ad", "Kc"}, StraightFlush},
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts", "3d", "2c"}, RoyalFlush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := evalStrings(t, tt.cards...)
			assert.Equal(t, tt.want, ev.Category)
			assert.Len(t, ev.BestFive, 5)
		})
	}
}

func TestWheelIsFiveHigh(t *testing.T) {
	t.Parallel()

	wheel := evalStrings(t, "As", "2d", "3h", "4c", "5s")
	sixHigh := evalStrings(t, "2s", "3d", "4h", "5c", "6s")

	assert.Equal(t, Straight, wheel.Category)
	assert.Equal(t, Five, wheel.Kickers[0])
	assert.Equal(t, 1, sixHigh.Compare(wheel), "six-high straight beats the wheel")

	// Wheel best five lists the ace last.
	assert.Equal(t, "A", wheel.BestFive[4].Rank.String())
}

func TestStraightFlushBeatsQuads(t *testing.T) {
	t.Parallel()

	sf := evalStrings(t, "9s", "8s", "7s", "6s", "5s")
	quads := evalStrings(t, "As", "Ad", "Ah", "Ac", "Ks")

	assert.Equal(t, 1, sf.Compare(quads))
	assert.Equal(t, -1, quads.Compare(sf))
}

func TestKickerDecides(t *testing.T) {
	t.Parallel()

	a := evalStrings(t, "As", "Ad", "Kh", "7c", "4s")
	b := evalStrings(t, "Ah", "Ac", "Qh", "7d", "4d")

	assert.Equal(t, 1, a.Compare(b), "king kicker beats queen kicker")
}

func TestCompareLaws(t *testing.T) {
	t.Parallel()

	hands := [][]string{
		{"As", "Kd", "9h", "7c", "4s"},
		{"As", "Ad", "9h", "7c", "4s"},
		{"As", "Ad", "9h", "9c", "4s"},
		{"9s", "8d", "7h", "6c", "5s"},
		{"As", "Ks", "9s", "7s", "4s"},
		{"Ah", "Ac", "9d", "7d", "4d"},
	}

	evals := make([]Eval, len(hands))
	for i, h := range hands {
		evals[i] = evalStrings(t, h...)
	}

	for i, a := range evals {
		assert.Equal(t, 0, a.Compare(a), "reflexivity for hand %d", i)
		for _, b := range evals {
			assert.Equal(t, 0, a.Compare(b)+b.Compare(a), "antisymmetry")
		}
	}

	for i, a := range evals {
		for j, b := range evals {
			for k, c := range evals {
				if a.Compare(b) >= 0 && b.Compare(c) >= 0 {
					assert.GreaterOrEqual(t, a.Compare(c), 0, "transitivity for hands %d,%d,%d", i, j, k)
				}
				if a.Compare(b) > 0 && b.Compare(c) > 0 {
					assert.Equal(t, 1, a.Compare(c), "strict transitivity for hands %d,%d,%d", i, j, k)
				}
			}
		}
	}

	// Suit-insensitive tie: same ranks, different suits.
	assert.Equal(t, 0, evals[1].Compare(evals[5]))
}

func TestEvaluateOrderInsensitive(t *testing.T) {
	t.Parallel()

	a := evalStrings(t, "As", "Ad", "Ah", "9c", "9s", "3d", "2c")
	b := evalStrings(t, "2c", "9s", "Ah", "3d", "As", "9c", "Ad")

	assert.Equal(t, a.Category, b.Category)
	assert.Equal(t, a.Kickers, b.Kickers)
	assert.Equal(t, 0, a.Compare(b))
}

func TestEvaluateInputSize(t *testing.T) {
	t.Parallel()

	_, err := Evaluate([]Card{MustParseCard("As")})
	assert.Error(t, err)

	cards, err := ParseCards([]string{"As", "Kd", "9h", "7c", "4s", "3d", "2c", "8h"})
	require.NoError(t, err)
	_, err = Evaluate(cards)
	assert.Error(t, err)
}

// TestEvaluateAgreesWithOracle cross-checks hand ordering against an
// independent evaluator over seeded random deals.
func TestEvaluateAgreesWithOracle(t *testing.T) {
	t.Parallel()

	for i := 0; i < 500; i++ {
		d := NewDeck(HandSeed("oracle", i))
		board, err := d.Draw(5)
		require.NoError(t, err)
		holeA, err := d.Draw(2)
		require.NoError(t, err)
		holeB, err := d.Draw(2)
		require.NoError(t, err)

		evalA, err := Evaluate(append(append([]Card{}, board...), holeA...))
		require.NoError(t, err)
		evalB, err := Evaluate(append(append([]Card{}, board...), holeB...))
		require.NoError(t, err)

		rankA := chpoker.Evaluate(oracleCards(append(append([]Card{}, board...), holeA...)))
		rankB := chpoker.Evaluate(oracleCards(append(append([]Card{}, board...), holeB...)))

		got := evalA.Compare(evalB)
		// Oracle ranks are ascending: lower is stronger.
		want := 0
		if rankA < rankB {
			want = 1
		} else if rankA > rankB {
			want = -1
		}
		require.Equal(t, want, got,
			"deal %d: board=%v holeA=%v holeB=%v", i, CardStrings(board), CardStrings(holeA), CardStrings(holeB))
	}
}

func oracleCards(cards []Card) []chpoker.Card {
	out := make([]chpoker.Card, len(cards))
	for i, c := range cards {
		out[i] = chpoker.NewCard(c.String())
	}
	return out
}
