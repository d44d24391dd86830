package game

import "fmt"

// Holder says which side of the table a card is dealt to.
type Holder uint8

const (
	PlayerHolder Holder = iota
	DealerHolder
)

// Move is the player's directive during the player turn.
type Move uint8

const (
	Stand Move = iota
	Hit
)

// Outcome of a round, from the player's point of view.
type Outcome uint8

const (
	Pending Outcome = iota
	PlayerWin
	DealerWin
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case PlayerWin:
		return "player_win"
	case DealerWin:
		return "dealer_win"
	case Tie:
		return "tie"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// State of the round machine. Resolved is terminal.
type State uint8

const (
	Dealing State = iota
	PlayerTurn
	DealerTurn
	Resolved
)

func (s State) String() string {
	switch s {
	case Dealing:
		return "dealing"
	case PlayerTurn:
		return "player_turn"
	case DealerTurn:
		return "dealer_turn"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Seat is the round's view of the player's connection. Calls are strictly
// sequential: the round never deals again before Decide has returned.
type Seat interface {
	// Deal shows a card to the player. hidden is set only for the dealer's
	// hole card while it is face down.
	Deal(c Card, to Holder, hidden bool) error
	// Decide blocks until the player sends Hit or Stand.
	Decide() (Move, error)
	// Settle sends the final outcome.
	Settle(o Outcome) error
}

// Round is one player-versus-dealer hand. It is created per round and
// discarded once Play returns.
type Round struct {
	deck         Deck
	player       Hand
	dealer       Hand
	holeRevealed bool
	state        State
	outcome      Outcome
}

// NewRound starts a round in the Dealing state drawing from deck.
func NewRound(deck Deck) *Round {
	return &Round{deck: deck}
}

// Play drives the round to Resolved and sends the result. The returned
// outcome is only meaningful when err is nil.
func (r *Round) Play(seat Seat) (Outcome, error) {
	for r.state != Resolved {
		var err error
		switch r.state {
		case Dealing:
			err = r.deal(seat)
		case PlayerTurn:
			err = r.playerTurn(seat)
		case DealerTurn:
			err = r.dealerTurn(seat)
		}
		if err != nil {
			return Pending, fmt.Errorf("%s: %w", r.state, err)
		}
	}

	if err := seat.Settle(r.outcome); err != nil {
		return Pending, fmt.Errorf("%s: %w", r.state, err)
	}
	return r.outcome, nil
}

func (r *Round) deal(seat Seat) error {
	for i := 0; i < 2; i++ {
		c := r.deck.Draw()
		r.player.Add(c)
		if err := seat.Deal(c, PlayerHolder, false); err != nil {
			return err
		}
	}

	up := r.deck.Draw()
	r.dealer.Add(up)
	if err := seat.Deal(up, DealerHolder, false); err != nil {
		return err
	}
	hole := r.deck.Draw()
	r.dealer.Add(hole)
	if err := seat.Deal(hole, DealerHolder, true); err != nil {
		return err
	}

	r.state = PlayerTurn
	return nil
}

// playerTurn reads directives until Stand, a bust, or exactly 21. A player
// already at 21 is not asked.
func (r *Round) playerTurn(seat Seat) error {
	for r.player.Total() < Blackjack {
		move, err := seat.Decide()
		if err != nil {
			return err
		}
		if move != Hit {
			break
		}
		c := r.deck.Draw()
		r.player.Add(c)
		if err := seat.Deal(c, PlayerHolder, false); err != nil {
			return err
		}
	}

	if r.player.Bust() {
		r.resolve(DealerWin)
		return nil
	}
	r.state = DealerTurn
	return nil
}

func (r *Round) dealerTurn(seat Seat) error {
	hole := r.dealer.cards[1]
	r.holeRevealed = true
	if err := seat.Deal(hole, DealerHolder, false); err != nil {
		return err
	}

	for r.dealer.Total() < DealerStand {
		c := r.deck.Draw()
		r.dealer.Add(c)
		if err := seat.Deal(c, DealerHolder, false); err != nil {
			return err
		}
	}

	player, dealer := r.player.Total(), r.dealer.Total()
	switch {
	case dealer > Blackjack:
		r.resolve(PlayerWin)
	case player > dealer:
		r.resolve(PlayerWin)
	case player < dealer:
		r.resolve(DealerWin)
	default:
		r.resolve(Tie)
	}
	return nil
}

// resolve sets the outcome once; later calls are ignored.
func (r *Round) resolve(o Outcome) {
	if r.outcome == Pending {
		r.outcome = o
	}
	r.state = Resolved
}

// State is the current machine state.
func (r *Round) State() State { return r.state }

// Outcome is Pending until the round resolves.
func (r *Round) Outcome() Outcome { return r.outcome }

// PlayerCards returns the player's hand so far.
func (r *Round) PlayerCards() []Card { return r.player.Cards() }

// DealerCards returns the dealer's hand so far, hole card included.
func (r *Round) DealerCards() []Card { return r.dealer.Cards() }

// PlayerTotal is the player's evaluated total.
func (r *Round) PlayerTotal() int { return r.player.Total() }

// DealerTotal is the dealer's evaluated total, hole card included.
func (r *Round) DealerTotal() int { return r.dealer.Total() }

// HoleRevealed reports whether the dealer's turn has shown the hole card.
func (r *Round) HoleRevealed() bool { return r.holeRevealed }
