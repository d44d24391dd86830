package game

import "math/rand/v2"

// Deck hands out cards forever. Implementations are owned by a single
// session and need no locking.
type Deck interface {
	Draw() Card
}

// NewCards returns the 52 cards in rank-major order.
func NewCards() []Card {
	cards := make([]Card, 0, 52)
	for r := Ace; r <= King; r++ {
		for s := Hearts; s <= Spades; s++ {
			cards = append(cards, Card{Rank: r, Suit: s})
		}
	}
	return cards
}

// Shoe is a shuffled 52-card pile that reshuffles a full deck when it runs
// dry, which gives every draw a uniform rank and suit.
type Shoe struct {
	rng   *rand.Rand
	cards []Card
}

// NewShoe creates a shoe backed by rng. A nil rng gets a freshly seeded one.
func NewShoe(rng *rand.Rand) *Shoe {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Shoe{rng: rng}
	s.refill()
	return s
}

// Draw takes the top card, refilling first if the shoe is empty.
func (s *Shoe) Draw() Card {
	if len(s.cards) == 0 {
		s.refill()
	}
	c := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return c
}

// Remaining is the number of cards left before the next reshuffle.
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

func (s *Shoe) refill() {
	s.cards = NewCards()
	s.rng.Shuffle(len(s.cards), func(i, j int) { s.cards[i], s.cards[j] = s.cards[j], s.cards[i] })
}

// StackedDeck deals a fixed sequence first, then falls through to next.
// Used to replay a known deal.
type StackedDeck struct {
	cards []Card
	next  Deck
}

// NewStackedDeck deals cards in order. When they run out, draws go to next,
// or to a fresh Shoe when next is nil.
func NewStackedDeck(next Deck, cards ...Card) *StackedDeck {
	if next == nil {
		next = NewShoe(nil)
	}
	return &StackedDeck{cards: append([]Card(nil), cards...), next: next}
}

func (d *StackedDeck) Draw() Card {
	if len(d.cards) == 0 {
		return d.next.Draw()
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c
}
