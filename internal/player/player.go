package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"openjack/internal/discovery"
	"openjack/internal/game"
	"openjack/internal/protocol"
	"openjack/internal/session"
)

// MaxRounds is the most a single Request can ask for.
const MaxRounds = 255

var ErrBadRounds = errors.New("rounds must be between 1 and 255")

// View is what the player knows when a decision is due.
type View struct {
	Round       int
	Player      []game.Card
	DealerUp    game.Card
	PlayerTotal int
}

// Strategy picks the next move.
type Strategy interface {
	Decide(ctx context.Context, v View) (game.Move, error)
}

// StrategyFunc adapts a plain function.
type StrategyFunc func(ctx context.Context, v View) (game.Move, error)

func (f StrategyFunc) Decide(ctx context.Context, v View) (game.Move, error) { return f(ctx, v) }

// DealerRule plays like the dealer: hit below 17, otherwise stand.
var DealerRule Strategy = StrategyFunc(func(_ context.Context, v View) (game.Move, error) {
	if v.PlayerTotal < game.DealerStand {
		return game.Hit, nil
	}
	return game.Stand, nil
})

// CardEvent describes one Payload as the player saw it.
type CardEvent struct {
	Round       int
	Card        game.Card
	Holder      game.Holder
	Hidden      bool
	Reveal      bool
	PlayerTotal int
	DealerTotal int
}

// Observer gets the table as it unfolds. Calls happen on Play's goroutine.
type Observer interface {
	OnCard(e CardEvent)
	OnResult(round int, o game.Outcome, stats Stats)
}

type nopObserver struct{}

func (nopObserver) OnCard(CardEvent)                  {}
func (nopObserver) OnResult(int, game.Outcome, Stats) {}

// Stats counts outcomes from the player's point of view.
type Stats struct {
	Wins   int
	Losses int
	Ties   int
}

// Played is the number of rounds that reached a Result.
func (s Stats) Played() int { return s.Wins + s.Losses + s.Ties }

// WinRate is Wins over Played, 0 when nothing was played.
func (s Stats) WinRate() float64 {
	if s.Played() == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Played())
}

func (s *Stats) add(o game.Outcome) {
	switch o {
	case game.PlayerWin:
		s.Wins++
	case game.DealerWin:
		s.Losses++
	case game.Tie:
		s.Ties++
	}
}

// Client plays sessions against a dealer.
type Client struct {
	Name        string
	Strategy    Strategy
	Observer    Observer
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Discover waits for the first dealer offer on port.
func Discover(ctx context.Context, port int, logger *slog.Logger) (discovery.Found, error) {
	return discovery.Discover(ctx, port, logger)
}

// Play dials addr and plays rounds. The returned Reason says how the
// session ended; Stats covers every round that reached a Result.
func (c *Client) Play(ctx context.Context, addr string, rounds int) (Stats, session.Reason, error) {
	if rounds < 1 || rounds > MaxRounds {
		return Stats{}, session.ProtocolViolation, ErrBadRounds
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Stats{}, session.ConnectionReset, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return c.PlayConn(ctx, conn, rounds)
}

// PlayConn plays over an established connection and closes it.
func (c *Client) PlayConn(ctx context.Context, conn net.Conn, rounds int) (Stats, session.Reason, error) {
	defer conn.Close()
	if rounds < 1 || rounds > MaxRounds {
		return Stats{}, session.ProtocolViolation, ErrBadRounds
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	t := &table{client: c, conn: conn, reader: bufio.NewReader(conn), ctx: ctx}
	t.defaults()

	err := t.play(rounds)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	reason := session.Classify(err)
	t.logger.Info("session over", "reason", reason, "played", t.stats.Played(), "win_rate", t.stats.WinRate())
	return t.stats, reason, err
}

// table is the per-session state of one Play call.
type table struct {
	client   *Client
	conn     net.Conn
	reader   *bufio.Reader
	ctx      context.Context
	strategy Strategy
	observer Observer
	idle     time.Duration
	logger   *slog.Logger
	stats    Stats
}

func (t *table) defaults() {
	t.strategy = t.client.Strategy
	if t.strategy == nil {
		t.strategy = DealerRule
	}
	t.observer = t.client.Observer
	if t.observer == nil {
		t.observer = nopObserver{}
	}
	t.idle = t.client.IdleTimeout
	if t.idle <= 0 {
		t.idle = session.DefaultIdleTimeout
	}
	logger := t.client.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t.logger = logger.With("component", "player", "dealer", t.conn.RemoteAddr().String())
}

func (t *table) play(rounds int) error {
	if err := t.write(protocol.Request{Rounds: uint8(rounds), PlayerName: t.client.Name}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	for i := 1; i <= rounds; i++ {
		o, err := t.round(i)
		if err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
		t.stats.add(o)
		t.observer.OnResult(i, o, t.stats)
	}
	return nil
}

// round consumes frames until the Result, answering when a decision is due:
// once the hole card is down and after every hit, while below 21.
func (t *table) round(n int) (game.Outcome, error) {
	var (
		player, dealer game.Hand
		holeDown       bool
		revealed       bool
		standing       bool
	)

	for {
		msg, err := t.read()
		if err != nil {
			return game.Pending, err
		}

		switch m := msg.(type) {
		case protocol.Result:
			return m.Code.Outcome(), nil

		case protocol.Payload:
			card := m.Card()
			ev := CardEvent{Round: n, Card: card, Holder: m.GameHolder(), Hidden: m.Hidden}
			switch {
			case ev.Holder == game.PlayerHolder:
				player.Add(card)
			case m.Hidden:
				holeDown = true
			case holeDown && !revealed:
				revealed, standing = true, true
				ev.Reveal = true
				dealer.Add(card)
			default:
				dealer.Add(card)
			}
			ev.PlayerTotal, ev.DealerTotal = player.Total(), dealer.Total()
			t.observer.OnCard(ev)

			if !holeDown || standing || player.Total() >= game.Blackjack {
				continue
			}
			if ev.Holder == game.DealerHolder && !m.Hidden {
				continue
			}
			move, err := t.decide(n, player, dealer)
			if err != nil {
				return game.Pending, err
			}
			if move == game.Stand {
				standing = true
			}

		default:
			return game.Pending, fmt.Errorf("unexpected %s mid-round: %w", msg.Type(), session.ErrProtocolViolation)
		}
	}
}

func (t *table) decide(n int, player, dealer game.Hand) (game.Move, error) {
	v := View{Round: n, Player: player.Cards(), PlayerTotal: player.Total()}
	if cards := dealer.Cards(); len(cards) > 0 {
		v.DealerUp = cards[0]
	}
	move, err := t.strategy.Decide(t.ctx, v)
	if err != nil {
		return game.Stand, fmt.Errorf("decide: %w", err)
	}
	t.logger.Debug("decision", "round", n, "total", v.PlayerTotal, "move", move)
	if err := t.write(protocol.DecisionFor(move)); err != nil {
		return game.Stand, err
	}
	return move, nil
}

func (t *table) read() (protocol.Message, error) {
	t.conn.SetReadDeadline(time.Now().Add(t.idle))
	msg, err := protocol.ReadMessage(t.reader)
	if err != nil {
		return nil, t.wrap(err)
	}
	return msg, nil
}

func (t *table) write(m protocol.Message) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.idle))
	if err := protocol.WriteMessage(t.conn, m); err != nil {
		return t.wrap(err)
	}
	return nil
}

func (t *table) wrap(err error) error {
	switch {
	case protocol.IsDecodeError(err):
		return fmt.Errorf("%w: %w", session.ErrProtocolViolation, err)
	case errors.Is(err, context.Canceled), t.ctx.Err() != nil:
		return err
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("dealer silent for %s: %w: %w", t.idle, session.ErrSessionTimeout, err)
		}
		return fmt.Errorf("%w: %w", session.ErrConnectionReset, err)
	}
}
