package game

import (
	"errors"
	"testing"
)

type dealt struct {
	card   Card
	to     Holder
	hidden bool
}

// scriptedSeat replays moves and records everything the round sends.
type scriptedSeat struct {
	moves    []Move
	asked    int
	dealt    []dealt
	outcomes []Outcome
	failOn   int // fail the n-th Deal (1-based); 0 never fails
}

var errSeatGone = errors.New("seat gone")

func (s *scriptedSeat) Deal(c Card, to Holder, hidden bool) error {
	s.dealt = append(s.dealt, dealt{c, to, hidden})
	if s.failOn > 0 && len(s.dealt) == s.failOn {
		return errSeatGone
	}
	return nil
}

func (s *scriptedSeat) Decide() (Move, error) {
	if s.asked >= len(s.moves) {
		return Stand, errSeatGone
	}
	m := s.moves[s.asked]
	s.asked++
	return m, nil
}

func (s *scriptedSeat) Settle(o Outcome) error {
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *scriptedSeat) dealerCardsAfterDeal() int {
	n := 0
	for _, d := range s.dealt[4:] {
		if d.to == DealerHolder {
			n++
		}
	}
	return n
}

func c(r Rank, s Suit) Card { return Card{Rank: r, Suit: s} }

func TestRoundTieAfterDealerDraw(t *testing.T) {
	deck := NewStackedDeck(nil,
		c(10, Clubs), c(9, Diamonds), // player 19
		c(8, Hearts), c(6, Spades), // dealer 14, hole 6♠
		c(5, Hearts), // dealer draws to 19
	)
	seat := &scriptedSeat{moves: []Move{Stand}}

	outcome, err := NewRound(deck).Play(seat)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Tie {
		t.Fatalf("got %v, want tie", outcome)
	}

	want := []dealt{
		{c(10, Clubs), PlayerHolder, false},
		{c(9, Diamonds), PlayerHolder, false},
		{c(8, Hearts), DealerHolder, false},
		{c(6, Spades), DealerHolder, true},
		{c(6, Spades), DealerHolder, false},
		{c(5, Hearts), DealerHolder, false},
	}
	if len(seat.dealt) != len(want) {
		t.Fatalf("dealt %d cards, want %d: %+v", len(seat.dealt), len(want), seat.dealt)
	}
	for i := range want {
		if seat.dealt[i] != want[i] {
			t.Errorf("frame %d: got %+v, want %+v", i, seat.dealt[i], want[i])
		}
	}
	if len(seat.outcomes) != 1 || seat.outcomes[0] != Tie {
		t.Fatalf("settled %v", seat.outcomes)
	}
}

func TestRoundDealerBust(t *testing.T) {
	deck := NewStackedDeck(nil,
		c(King, Diamonds), c(King, Clubs), // player 20
		c(7, Spades), c(9, Hearts), // dealer 16
		c(10, Clubs), // dealer 26
	)
	seat := &scriptedSeat{moves: []Move{Stand}}
	r := NewRound(deck)

	outcome, err := r.Play(seat)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != PlayerWin {
		t.Fatalf("got %v, want player win", outcome)
	}
	if r.DealerTotal() != 26 || !r.HoleRevealed() {
		t.Fatalf("dealer total %d, revealed %v", r.DealerTotal(), r.HoleRevealed())
	}
}

func TestRoundPlayerBustSkipsDealer(t *testing.T) {
	deck := NewStackedDeck(nil,
		c(9, Clubs), c(5, Diamonds), // player 14
		c(2, Hearts), c(3, Hearts), // dealer 5, would have to draw
		c(10, Spades), // player 24
	)
	seat := &scriptedSeat{moves: []Move{Hit}}
	r := NewRound(deck)

	outcome, err := r.Play(seat)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != DealerWin {
		t.Fatalf("got %v, want dealer win", outcome)
	}
	if n := seat.dealerCardsAfterDeal(); n != 0 {
		t.Fatalf("dealer sent %d cards after a player bust", n)
	}
	if r.HoleRevealed() {
		t.Fatal("hole card revealed after a player bust")
	}
	if len(seat.dealt) != 5 {
		t.Fatalf("dealt %d frames, want 5", len(seat.dealt))
	}
}

func TestRoundTwentyOneAutoStands(t *testing.T) {
	deck := NewStackedDeck(nil,
		c(Ace, Spades), c(King, Hearts), // player 21
		c(10, Clubs), c(Queen, Diamonds), // dealer 20
	)
	// No moves scripted: asking for one would fail the round.
	seat := &scriptedSeat{}

	outcome, err := NewRound(deck).Play(seat)
	if err != nil {
		t.Fatal(err)
	}
	if seat.asked != 0 {
		t.Fatalf("player asked %d times at 21", seat.asked)
	}
	if outcome != PlayerWin {
		t.Fatalf("got %v, want player win", outcome)
	}
}

func TestRoundHitToTwentyOneStopsAsking(t *testing.T) {
	deck := NewStackedDeck(nil,
		c(5, Spades), c(6, Hearts), // player 11
		c(10, Clubs), c(10, Diamonds), // dealer 20
		c(King, Clubs), // player 21
	)
	seat := &scriptedSeat{moves: []Move{Hit}}

	outcome, err := NewRound(deck).Play(seat)
	if err != nil {
		t.Fatal(err)
	}
	if seat.asked != 1 {
		t.Fatalf("asked %d times, want 1", seat.asked)
	}
	if outcome != PlayerWin {
		t.Fatalf("got %v, want player win", outcome)
	}
}

func TestRoundDealerHigher(t *testing.T) {
	deck := NewStackedDeck(nil,
		c(10, Spades), c(7, Hearts), // player 17
		c(10, Clubs), c(8, Diamonds), // dealer 18
	)
	seat := &scriptedSeat{moves: []Move{Stand}}

	outcome, err := NewRound(deck).Play(seat)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != DealerWin {
		t.Fatalf("got %v, want dealer win", outcome)
	}
}

// The dealer draws exactly while under 17, with Aces softened.
func TestDealerDrawRule(t *testing.T) {
	for i := 0; i < 300; i++ {
		deck := NewShoe(nil)
		seat := &scriptedSeat{moves: []Move{Stand}}
		r := NewRound(deck)
		if _, err := r.Play(seat); err != nil {
			t.Fatal(err)
		}
		if r.Outcome() == Pending || r.State() != Resolved {
			t.Fatalf("round left in %v with %v", r.State(), r.Outcome())
		}

		if r.PlayerTotal() > Blackjack {
			continue
		}
		cards := r.DealerCards()
		for n := 2; n < len(cards); n++ {
			if Total(cards[:n]) >= DealerStand {
				t.Fatalf("dealer drew at %d: %v", Total(cards[:n]), cards)
			}
		}
		if Total(cards) < DealerStand {
			t.Fatalf("dealer stopped at %d: %v", Total(cards), cards)
		}
	}
}

func TestRoundSeatErrorAborts(t *testing.T) {
	deck := NewStackedDeck(nil, c(2, Spades), c(3, Hearts), c(4, Clubs), c(5, Diamonds))
	seat := &scriptedSeat{failOn: 2}

	outcome, err := NewRound(deck).Play(seat)
	if !errors.Is(err, errSeatGone) {
		t.Fatalf("got %v, want errSeatGone", err)
	}
	if outcome != Pending {
		t.Fatalf("got %v, want pending", outcome)
	}
	if len(seat.outcomes) != 0 {
		t.Fatal("settled after a failed deal")
	}
}
