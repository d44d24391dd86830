package game

// Blackjack is the best possible total.
const Blackjack = 21

// DealerStand is the total at which the dealer stops drawing.
const DealerStand = 17

// Total returns the blackjack total of cards. Aces count 11 and are softened
// to 1, one at a time, while the sum is over 21. The result can still be a
// bust when no Aces are left to soften.
func Total(cards []Card) int {
	total, _ := total(cards)
	return total
}

// Soft reports whether at least one Ace is still counted as 11.
func Soft(cards []Card) bool {
	_, soft := total(cards)
	return soft > 0
}

func total(cards []Card) (sum, softAces int) {
	for _, c := range cards {
		sum += c.Value()
		if c.Rank == Ace {
			softAces++
		}
	}
	for sum > Blackjack && softAces > 0 {
		sum -= 10
		softAces--
	}
	return sum, softAces
}

// Hand is an append-only sequence of cards owned by one side for a round.
type Hand struct {
	cards []Card
}

// Add appends c to the hand.
func (h *Hand) Add(c Card) {
	h.cards = append(h.cards, c)
}

// Cards returns a copy of the hand's cards.
func (h *Hand) Cards() []Card {
	return append([]Card(nil), h.cards...)
}

// Len is the number of cards held.
func (h *Hand) Len() int {
	return len(h.cards)
}

// Total is the evaluated blackjack total.
func (h *Hand) Total() int {
	return Total(h.cards)
}

// Bust reports a total over 21.
func (h *Hand) Bust() bool {
	return h.Total() > Blackjack
}
