package session

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"openjack/internal/game"
	"openjack/internal/protocol"
)

// DefaultIdleTimeout bounds the silence between two frames from the player.
const DefaultIdleTimeout = 60 * time.Second

// RoundResult describes one finished round.
type RoundResult struct {
	Index       int
	Outcome     game.Outcome
	PlayerCards []game.Card
	DealerCards []game.Card
	PlayerTotal int
	DealerTotal int
}

// Observer receives session lifecycle notifications. Calls happen on the
// session's own goroutine.
type Observer interface {
	SessionStarted(s *Session)
	RoundFinished(s *Session, r RoundResult)
	SessionClosed(s *Session, reason Reason, err error)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(*Session)               {}
func (nopObserver) RoundFinished(*Session, RoundResult)   {}
func (nopObserver) SessionClosed(*Session, Reason, error) {}

// Session owns one player's TCP connection for its whole life.
type Session struct {
	ID       string
	Conn     net.Conn
	ClientIP string

	mu          sync.RWMutex
	playerName  string
	rounds      int
	played      atomic.Int32
	lastActive  atomic.Int64
	idleTimeout time.Duration
	deck        game.Deck
	reader      *bufio.Reader
	observer    Observer
	logger      *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithDeck replaces the session's own shoe.
func WithDeck(d game.Deck) Option {
	return func(s *Session) { s.deck = d }
}

// WithObserver registers lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the parent logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wraps an accepted connection. Each session gets its own deck.
func New(conn net.Conn, opts ...Option) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Conn:        conn,
		ClientIP:    conn.RemoteAddr().String(),
		idleTimeout: DefaultIdleTimeout,
		reader:      bufio.NewReader(conn),
		observer:    nopObserver{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deck == nil {
		s.deck = game.NewShoe(nil)
	}
	s.logger = s.logger.With("component", "session", "session_id", s.ID, "client", s.ClientIP)
	s.touch()
	return s
}

// Run reads the Request, plays every requested round and closes the
// connection. The returned Reason is also passed to the Observer.
func (s *Session) Run() (Reason, error) {
	defer s.Conn.Close()

	err := s.run()
	reason := Classify(err)
	switch reason {
	case Completed:
		s.logger.Info("session finished", "player", s.PlayerName(), "rounds", s.Played())
	case ConnectionReset:
		s.logger.Info("player left", "player", s.PlayerName(), "rounds", s.Played(), "err", err)
	default:
		s.logger.Warn("session dropped", "reason", reason, "player", s.PlayerName(), "rounds", s.Played(), "err", err)
	}
	s.observer.SessionClosed(s, reason, err)
	return reason, err
}

func (s *Session) run() error {
	msg, err := s.read()
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	req, ok := msg.(protocol.Request)
	if !ok {
		return fmt.Errorf("first frame is %s, want %s: %w", msg.Type(), protocol.TypeRequest, ErrProtocolViolation)
	}

	s.mu.Lock()
	s.playerName = req.PlayerName
	s.rounds = int(req.Rounds)
	s.mu.Unlock()
	s.logger.Info("accepted player", "player", req.PlayerName, "rounds", req.Rounds)
	s.observer.SessionStarted(s)

	seat := &wireSeat{s: s}
	for i := 1; i <= int(req.Rounds); i++ {
		round := game.NewRound(s.deck)
		outcome, err := round.Play(seat)
		if err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
		s.played.Add(1)

		result := RoundResult{
			Index:       i,
			Outcome:     outcome,
			PlayerCards: round.PlayerCards(),
			DealerCards: round.DealerCards(),
			PlayerTotal: round.PlayerTotal(),
			DealerTotal: round.DealerTotal(),
		}
		s.logger.Debug("round finished", "round", i, "outcome", outcome,
			"player_total", result.PlayerTotal, "dealer_total", result.DealerTotal)
		s.observer.RoundFinished(s, result)
	}
	return nil
}

// read waits for one frame with the idle deadline reset for this call.
func (s *Session) read() (protocol.Message, error) {
	s.Conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	msg, err := protocol.ReadMessage(s.reader)
	if err != nil {
		return nil, s.wrap(err)
	}
	s.touch()
	return msg, nil
}

// write sends m. The dealer only writes while the player is expected to be
// silent, so any frame already waiting is out of turn.
func (s *Session) write(m protocol.Message) error {
	if err := s.outOfTurn(); err != nil {
		return fmt.Errorf("before %s: %w", m.Type(), err)
	}
	s.Conn.SetWriteDeadline(time.Now().Add(s.idleTimeout))
	if err := protocol.WriteMessage(s.Conn, m); err != nil {
		return s.wrap(err)
	}
	return nil
}

// outOfTurn fails if the player has sent anything, looking at bytes already
// read into the buffer and, for sockets, at what the kernel holds.
func (s *Session) outOfTurn() error {
	if s.reader.Buffered() == 0 && !socketPending(s.Conn) {
		return nil
	}
	return fmt.Errorf("player sent a frame out of turn: %w", ErrProtocolViolation)
}

// wrap tags transport and decode errors with the session error they end in.
func (s *Session) wrap(err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("no traffic for %s: %w: %w", s.idleTimeout, ErrSessionTimeout, err)
	case protocol.IsDecodeError(err):
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	case isPeerGone(err):
		return fmt.Errorf("%w: %w", ErrConnectionReset, err)
	default:
		return err
	}
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// PlayerName is known once the Request has been read.
func (s *Session) PlayerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerName
}

// Rounds is the number of rounds the player asked for.
func (s *Session) Rounds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rounds
}

// Played counts rounds that reached a Result.
func (s *Session) Played() int { return int(s.played.Load()) }

// LastActive is the time of the last frame received.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

// Info is a point-in-time view for the management API.
type Info struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	ClientIP   string    `json:"remote"`
	Rounds     int       `json:"rounds"`
	Played     int       `json:"played"`
	LastActive time.Time `json:"last_active"`
}

// Snapshot returns the session's current Info.
func (s *Session) Snapshot() Info {
	return Info{
		ID:         s.ID,
		Player:     s.PlayerName(),
		ClientIP:   s.ClientIP,
		Rounds:     s.Rounds(),
		Played:     s.Played(),
		LastActive: s.LastActive(),
	}
}

// wireSeat plays a round over the session's connection.
type wireSeat struct {
	s *Session
}

func (w *wireSeat) Deal(c game.Card, to game.Holder, hidden bool) error {
	return w.s.write(protocol.CardPayload(c, to, hidden))
}

func (w *wireSeat) Decide() (game.Move, error) {
	msg, err := w.s.read()
	if err != nil {
		return game.Stand, err
	}
	d, ok := msg.(protocol.Decision)
	if !ok {
		return game.Stand, fmt.Errorf("got %s during player turn: %w", msg.Type(), ErrProtocolViolation)
	}
	return d.GameMove(), nil
}

func (w *wireSeat) Settle(o game.Outcome) error {
	res, ok := protocol.ResultFor(o)
	if !ok {
		return fmt.Errorf("settle %s: round not resolved", o)
	}
	return w.s.write(res)
}
