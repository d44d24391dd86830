package protocol

import (
	"errors"

	"openjack/internal/game"
)

// CardPayload builds the Payload frame for a dealt card.
func CardPayload(c game.Card, to game.Holder, hidden bool) Payload {
	h := HolderPlayer
	if to == game.DealerHolder {
		h = HolderDealer
	}
	return Payload{Holder: h, Hidden: hidden, Rank: uint8(c.Rank), Suit: uint8(c.Suit)}
}

// Card returns the dealt card.
func (p Payload) Card() game.Card {
	return game.Card{Rank: game.Rank(p.Rank), Suit: game.Suit(p.Suit)}
}

// GameHolder maps the wire holder to the game side.
func (p Payload) GameHolder() game.Holder {
	if p.Holder == HolderDealer {
		return game.DealerHolder
	}
	return game.PlayerHolder
}

// ResultFor maps a resolved outcome to its wire code. Pending has no code.
func ResultFor(o game.Outcome) (Result, bool) {
	switch o {
	case game.Tie:
		return Result{Code: ResultTie}, true
	case game.DealerWin:
		return Result{Code: ResultDealerWin}, true
	case game.PlayerWin:
		return Result{Code: ResultPlayerWin}, true
	default:
		return Result{}, false
	}
}

// Outcome maps the wire code back to the game outcome.
func (c ResultCode) Outcome() game.Outcome {
	switch c {
	case ResultTie:
		return game.Tie
	case ResultDealerWin:
		return game.DealerWin
	case ResultPlayerWin:
		return game.PlayerWin
	default:
		return game.Pending
	}
}

// DecisionFor wraps a game move.
func DecisionFor(m game.Move) Decision {
	if m == game.Hit {
		return Decision{Move: MoveHit}
	}
	return Decision{Move: MoveStand}
}

// GameMove maps the wire move to the game move.
func (d Decision) GameMove() game.Move {
	if d.Move == MoveHit {
		return game.Hit
	}
	return game.Stand
}

// IsDecodeError reports whether err came from frame validation rather than
// the transport.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrInvalidCookie) || errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrMalformed) || errors.Is(err, ErrShortFrame)
}
