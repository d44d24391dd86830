package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"openjack/internal/config"
	"openjack/internal/player"
)

func main() {
	cfg := config.LoadPlayer()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	title, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Black", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("jack", pterm.FgDarkGray.ToStyle()),
	).Srender()
	if err != nil {
		logger.Error(err.Error())
	}
	pterm.Print(title)

	name := cfg.PlayerName
	if !cfg.Auto {
		name, _ = pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your name").WithDefaultValue(cfg.PlayerName).Show()
		pterm.Println()
	}
	pterm.Info.Printfln("Playing as %s", pterm.LightCyan(name))

	var strategy player.Strategy = player.DealerRule
	if !cfg.Auto {
		strategy = interactive{}
	}
	client := &player.Client{
		Name:        name,
		Strategy:    strategy,
		Observer:    &tableView{},
		IdleTimeout: cfg.IdleTimeout,
		Logger:      logger,
	}

	var total player.Stats
	for ctx.Err() == nil {
		rounds := cfg.Rounds
		if !cfg.Auto {
			rounds = askRounds(cfg.Rounds)
		}

		spinner, _ := pterm.DefaultSpinner.Start("Client started, listening for offer requests...")
		found, err := player.Discover(ctx, cfg.OfferPort, logger)
		if err != nil {
			spinner.Fail(err.Error())
			break
		}
		spinner.Success(pterm.Sprintf("Received offer from %s at %s", pterm.LightCyan(found.Offer.ServerName), found.Addr))

		stats, reason, err := client.Play(ctx, found.Addr, rounds)
		total.Wins += stats.Wins
		total.Losses += stats.Losses
		total.Ties += stats.Ties

		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			pterm.Warning.Printfln("Session ended early (%s): %v", reason, err)
		default:
			pterm.Success.Printfln("Finished playing %d rounds, win rate: %.2f", stats.Played(), stats.WinRate())
		}

		if ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}

	pterm.Println()
	pterm.Info.Printfln("Played %d rounds in total: %d wins, %d losses, %d ties",
		total.Played(), total.Wins, total.Losses, total.Ties)
	pterm.Println("Thank you for playing...")
}

func askRounds(def int) int {
	for {
		answer, err := pterm.DefaultInteractiveTextInput.
			WithDefaultText("How many rounds (1-255)").
			WithDefaultValue(strconv.Itoa(def)).
			Show()
		if err != nil {
			return def
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= player.MaxRounds {
			return n
		}
		pterm.Error.Printfln("%q is not a number between 1 and %d", answer, player.MaxRounds)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	plogger := pterm.DefaultLogger.WithLevel(ptermLevel(level))
	return slog.New(pterm.NewSlogHandler(plogger))
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}
