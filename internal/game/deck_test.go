package game

import (
	"math/rand/v2"
	"testing"
)

func TestNewCards(t *testing.T) {
	seen := make(map[Card]bool)
	for _, c := range NewCards() {
		if !c.Valid() {
			t.Fatalf("invalid card %v", c)
		}
		if seen[c] {
			t.Fatalf("duplicate card %v", c)
		}
		seen[c] = true
	}
	if len(seen) != 52 {
		t.Fatalf("got %d cards, want 52", len(seen))
	}
}

func TestShoeReshufflesForever(t *testing.T) {
	shoe := NewShoe(rand.New(rand.NewPCG(1, 2)))

	for cycle := 0; cycle < 3; cycle++ {
		seen := make(map[Card]bool)
		for i := 0; i < 52; i++ {
			c := shoe.Draw()
			if seen[c] {
				t.Fatalf("cycle %d: %v drawn twice before reshuffle", cycle, c)
			}
			seen[c] = true
		}
		if shoe.Remaining() != 0 {
			t.Fatalf("cycle %d: %d cards left", cycle, shoe.Remaining())
		}
	}
}

func TestShoeDistribution(t *testing.T) {
	shoe := NewShoe(rand.New(rand.NewPCG(3, 4)))
	ranks := make(map[Rank]int)
	suits := make(map[Suit]int)
	const draws = 52 * 200
	for i := 0; i < draws; i++ {
		c := shoe.Draw()
		ranks[c.Rank]++
		suits[c.Suit]++
	}
	// Whole shoes are drawn, so every rank and suit shows up equally often.
	for r := Ace; r <= King; r++ {
		if ranks[r] != draws/13 {
			t.Errorf("rank %v drawn %d times, want %d", r, ranks[r], draws/13)
		}
	}
	for s := Hearts; s <= Spades; s++ {
		if suits[s] != draws/4 {
			t.Errorf("suit %v drawn %d times, want %d", s, suits[s], draws/4)
		}
	}
}

func TestStackedDeck(t *testing.T) {
	tail := NewStackedDeck(nil, Card{Rank: 9, Suit: Clubs})
	d := NewStackedDeck(tail, Card{Rank: Ace, Suit: Hearts}, Card{Rank: King, Suit: Spades})

	want := []Card{{Rank: Ace, Suit: Hearts}, {Rank: King, Suit: Spades}, {Rank: 9, Suit: Clubs}}
	for i, w := range want {
		if got := d.Draw(); got != w {
			t.Fatalf("draw %d: got %v, want %v", i, got, w)
		}
	}
	if c := d.Draw(); !c.Valid() {
		t.Fatalf("fallback draw produced %v", c)
	}
}

func TestCardValue(t *testing.T) {
	for r := Ace; r <= King; r++ {
		v := Card{Rank: r}.Value()
		switch {
		case r == Ace && v != 11:
			t.Errorf("ace value %d", v)
		case r >= 10 && v != 10:
			t.Errorf("%v value %d", r, v)
		case r > Ace && r < 10 && v != int(r):
			t.Errorf("%v value %d", r, v)
		}
	}
}
