package game

import "fmt"

// Rank runs from Ace (1) to King (13).
type Rank uint8

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

// Suit order matches the wire encoding.
type Suit uint8

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var suitNames = [...]string{"Hearts", "Diamonds", "Clubs", "Spades"}

func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return fmt.Sprintf("Suit(%d)", uint8(s))
}

func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return fmt.Sprintf("%d", uint8(r))
	}
}

// Card is immutable once drawn.
type Card struct {
	Rank Rank
	Suit Suit
}

// Value is the card's base blackjack value: Ace 11, faces 10.
func (c Card) Value() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= 10:
		return 10
	default:
		return int(c.Rank)
	}
}

// Valid reports whether the card is one of the 52.
func (c Card) Valid() bool {
	return c.Rank >= Ace && c.Rank <= King && c.Suit <= Spades
}

func (c Card) String() string {
	return c.Rank.String() + " of " + c.Suit.String()
}
