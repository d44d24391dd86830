package game

import (
	"math/rand/v2"
	"testing"
)

func cards(ranks ...Rank) []Card {
	out := make([]Card, len(ranks))
	for i, r := range ranks {
		out[i] = Card{Rank: r, Suit: Suit(i % 4)}
	}
	return out
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
		want  int
	}{
		{"empty", nil, 0},
		{"pair of tens", cards(10, 10), 20},
		{"faces", cards(Jack, Queen), 20},
		{"double ace", cards(Ace, Ace), 12},
		{"ace king", cards(Ace, King), 21},
		{"soft seventeen", cards(Ace, 6), 17},
		{"ace softened by hit", cards(Ace, 6, 9), 16},
		{"three aces and nine", cards(Ace, Ace, Ace, 9), 12},
		{"four aces", cards(Ace, Ace, Ace, Ace), 14},
		{"bust without aces", cards(10, 5, 8), 23},
		{"bust after softening", cards(Ace, King, Queen, 5), 26},
		{"twenty one from three", cards(7, 7, 7), 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Total(tt.cards); got != tt.want {
				t.Fatalf("Total(%v) = %d, want %d", tt.cards, got, tt.want)
			}
		})
	}
}

func TestSoft(t *testing.T) {
	if !Soft(cards(Ace, 6)) {
		t.Error("A6 should be soft")
	}
	if Soft(cards(Ace, 6, 9)) {
		t.Error("A69 should be hard")
	}
	if Soft(cards(10, 7)) {
		t.Error("T7 should be hard")
	}
}

// Softening stops as soon as the hand is at or under 21, so the result is
// the best total that does not bust, or the lowest total when every choice
// busts.
func TestTotalIsBestSoftening(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		n := 1 + rng.IntN(7)
		hand := make([]Card, n)
		base, aces := 0, 0
		for j := range hand {
			hand[j] = Card{Rank: Rank(1 + rng.IntN(13)), Suit: Suit(rng.IntN(4))}
			base += hand[j].Value()
			if hand[j].Rank == Ace {
				aces++
			}
		}

		best, lowest := -1, base
		for k := 0; k <= aces; k++ {
			v := base - 10*k
			if v <= Blackjack && v > best {
				best = v
			}
			if v < lowest {
				lowest = v
			}
		}
		want := best
		if want < 0 {
			want = lowest
		}

		if got := Total(hand); got != want {
			t.Fatalf("Total(%v) = %d, want %d", hand, got, want)
		}
	}
}

func TestHand(t *testing.T) {
	var h Hand
	h.Add(Card{Rank: King, Suit: Diamonds})
	h.Add(Card{Rank: Queen, Suit: Clubs})
	if h.Bust() || h.Total() != 20 || h.Len() != 2 {
		t.Fatalf("unexpected hand state: total %d len %d", h.Total(), h.Len())
	}

	snapshot := h.Cards()
	snapshot[0] = Card{Rank: 2}
	if h.Cards()[0].Rank != King {
		t.Fatal("Cards must return a copy")
	}

	h.Add(Card{Rank: 2, Suit: Spades})
	if !h.Bust() {
		t.Fatalf("total %d should bust", h.Total())
	}
}
