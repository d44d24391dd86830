package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"openjack/internal/game"
	"openjack/internal/player"
)

// interactive asks the user at every decision point.
type interactive struct{}

func (interactive) Decide(ctx context.Context, v player.View) (game.Move, error) {
	if err := ctx.Err(); err != nil {
		return game.Stand, err
	}
	prompt := fmt.Sprintf("Your total is %d, dealer shows %s", v.PlayerTotal, v.DealerUp)
	choice, err := pterm.DefaultInteractiveSelect.
		WithDefaultText(prompt).
		WithOptions([]string{"Hit", "Stand"}).
		Show()
	if err != nil {
		return game.Stand, err
	}
	if choice == "Hit" {
		return game.Hit, nil
	}
	return game.Stand, nil
}

// tableView prints the round as the cards come in.
type tableView struct{}

func (*tableView) OnCard(e player.CardEvent) {
	card := pterm.BgGreen.Sprint(" " + e.Card.String() + " ")
	switch {
	case e.Holder == game.PlayerHolder:
		pterm.Printfln("You got %s (total %d)", card, e.PlayerTotal)
	case e.Hidden:
		pterm.Printfln("Dealer's second card is face down")
	case e.Reveal:
		pterm.Printfln("Dealer reveals %s (total %d)", card, e.DealerTotal)
	default:
		pterm.Printfln("Dealer shows %s (total %d)", card, e.DealerTotal)
	}
}

func (*tableView) OnResult(round int, o game.Outcome, stats player.Stats) {
	switch o {
	case game.PlayerWin:
		pterm.Success.Printfln("Round %d: you win!", round)
	case game.DealerWin:
		pterm.Error.Printfln("Round %d: dealer wins", round)
	default:
		pterm.Info.Printfln("Round %d: tie", round)
	}
	pterm.Printfln("%s  W %d  L %d  T %d\n", pterm.Gray("score"), stats.Wins, stats.Losses, stats.Ties)
}
