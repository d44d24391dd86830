package dealer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"openjack/internal/config"
	"openjack/internal/discovery"
	"openjack/internal/events"
	"openjack/internal/game"
	"openjack/internal/httpapi"
	"openjack/internal/protocol"
	"openjack/internal/registry"
	"openjack/internal/session"
)

const registryTimeout = 2 * time.Second

// Deps are the optional collaborators of a Dealer. Nil fields fall back to
// no-op implementations.
type Deps struct {
	Registry registry.Registry
	Events   events.Publisher
	Hub      *httpapi.Hub
	Logger   *slog.Logger
	// NewDeck builds the deck for each new session. Defaults to a fresh shoe.
	NewDeck func() game.Deck
}

// Dealer accepts players over TCP, advertises itself over UDP and serves the
// management API. Every accepted connection runs as its own Session.
type Dealer struct {
	cfg         *config.DealerConfig
	listener    net.Listener
	httpLn      net.Listener
	broadcaster *discovery.Broadcaster
	registry    registry.Registry
	events      events.Publisher
	hub         *httpapi.Hub
	newDeck     func() game.Deck
	logger      *slog.Logger

	sessions  sync.Map // map[string]*session.Session
	inflight  sync.WaitGroup
	startedAt time.Time

	started    atomic.Uint64
	rounds     atomic.Uint64
	playerWins atomic.Uint64
	dealerWins atomic.Uint64
	ties       atomic.Uint64

	mu     sync.Mutex
	closed map[string]uint64
}

// New binds the TCP listener (port 0 lets the OS choose), the optional
// management port and the offer socket.
func New(cfg *config.DealerConfig, deps Deps) (*Dealer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.TCPPort))
	if err != nil {
		return nil, fmt.Errorf("listen on %d: %w", cfg.TCPPort, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	offer := protocol.Offer{ServerName: cfg.DealerName, TCPPort: uint16(port)}
	dest := net.JoinHostPort(cfg.OfferAddr, strconv.Itoa(cfg.OfferPort))
	broadcaster, err := discovery.NewBroadcaster(offer, dest, cfg.OfferInterval, logger)
	if err != nil {
		listener.Close()
		return nil, err
	}

	var httpLn net.Listener
	if cfg.HTTPPort > 0 {
		httpLn, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
		if err != nil {
			listener.Close()
			broadcaster.Close()
			return nil, fmt.Errorf("listen on %d: %w", cfg.HTTPPort, err)
		}
	}

	d := &Dealer{
		cfg:         cfg,
		listener:    listener,
		httpLn:      httpLn,
		broadcaster: broadcaster,
		registry:    deps.Registry,
		events:      deps.Events,
		hub:         deps.Hub,
		newDeck:     deps.NewDeck,
		logger:      logger.With("component", "dealer"),
		startedAt:   time.Now(),
		closed:      make(map[string]uint64),
	}
	if d.registry == nil {
		d.registry = registry.Nop{}
	}
	if d.events == nil {
		d.events = events.Nop{}
	}
	if d.hub != nil {
		d.events = events.Multi{d.events, d.hub}
	}
	if d.newDeck == nil {
		d.newDeck = func() game.Deck { return game.NewShoe(nil) }
	}
	return d, nil
}

// Run serves until ctx is done or a component fails. Cancelling ctx stops
// new sessions; sessions already running finish on their own, see Wait.
func (d *Dealer) Run(ctx context.Context) error {
	d.logger.Info("dealer started",
		"name", d.cfg.DealerName,
		"ip", LocalIP(),
		"tcp_port", d.TCPPort(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return d.listener.Close()
	})
	g.Go(func() error {
		return d.acceptLoop(gctx)
	})
	g.Go(func() error {
		return d.broadcaster.Run(gctx)
	})
	if d.hub != nil {
		g.Go(func() error {
			d.hub.Run(gctx)
			return nil
		})
	}
	if d.httpLn != nil {
		api := httpapi.NewServer(d, d.hub, d.logger)
		g.Go(func() error {
			return api.Serve(gctx, d.httpLn)
		})
	}

	err := g.Wait()
	d.logger.Info("dealer stopped accepting", "active_sessions", d.activeCount())
	return err
}

// Wait blocks until every in-flight session has ended or ctx is done.
func (d *Dealer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dealer) acceptLoop(ctx context.Context) error {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.logger.Warn("accept error", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		s := session.New(conn,
			session.WithIdleTimeout(d.cfg.IdleTimeout),
			session.WithDeck(d.newDeck()),
			session.WithObserver(d),
			session.WithLogger(d.logger),
		)
		d.sessions.Store(s.ID, s)
		d.logger.Debug("new connection", "session_id", s.ID, "client", s.ClientIP)

		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			s.Run()
		}()
	}
}

// SessionStarted is called once the player's Request has been read.
func (d *Dealer) SessionStarted(s *session.Session) {
	d.started.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := d.registry.Register(ctx, d.entry(s)); err != nil {
		d.logger.Warn("failed to register session", "session_id", s.ID, "err", err)
	}
}

// RoundFinished updates counters, refreshes the registry and emits a round event.
func (d *Dealer) RoundFinished(s *session.Session, r session.RoundResult) {
	d.rounds.Add(1)
	switch r.Outcome {
	case game.PlayerWin:
		d.playerWins.Add(1)
	case game.DealerWin:
		d.dealerWins.Add(1)
	case game.Tie:
		d.ties.Add(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := d.registry.Touch(ctx, d.entry(s)); err != nil {
		d.logger.Warn("failed to refresh session", "session_id", s.ID, "err", err)
	}

	err := d.events.PublishRound(events.RoundEvent{
		SessionID:   s.ID,
		Dealer:      d.cfg.DealerName,
		Player:      s.PlayerName(),
		Round:       r.Index,
		Outcome:     r.Outcome.String(),
		PlayerTotal: r.PlayerTotal,
		DealerTotal: r.DealerTotal,
		At:          time.Now(),
	})
	if err != nil {
		d.logger.Warn("failed to publish round", "session_id", s.ID, "err", err)
	}
}

// SessionClosed removes the session everywhere and emits a session event.
func (d *Dealer) SessionClosed(s *session.Session, reason session.Reason, _ error) {
	d.sessions.Delete(s.ID)

	d.mu.Lock()
	d.closed[string(reason)]++
	d.mu.Unlock()

	// Only sessions that got past their Request were registered.
	if s.Rounds() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
		defer cancel()
		if err := d.registry.Remove(ctx, s.ID); err != nil {
			d.logger.Warn("failed to remove session", "session_id", s.ID, "err", err)
		}
	}

	err := d.events.PublishSession(events.SessionEvent{
		SessionID: s.ID,
		Dealer:    d.cfg.DealerName,
		Player:    s.PlayerName(),
		Remote:    s.ClientIP,
		Rounds:    s.Rounds(),
		Played:    s.Played(),
		Reason:    string(reason),
		At:        time.Now(),
	})
	if err != nil {
		d.logger.Warn("failed to publish session", "session_id", s.ID, "err", err)
	}
}

func (d *Dealer) entry(s *session.Session) registry.Entry {
	return registry.Entry{
		ID:       s.ID,
		Dealer:   d.cfg.DealerName,
		Player:   s.PlayerName(),
		ClientIP: s.ClientIP,
		Played:   s.Played(),
	}
}

// DealerName is the name advertised in offers.
func (d *Dealer) DealerName() string { return d.cfg.DealerName }

// TCPPort is the port the dealer actually listens on.
func (d *Dealer) TCPPort() int {
	return d.listener.Addr().(*net.TCPAddr).Port
}

// HTTPAddr is the management API address, or nil when disabled.
func (d *Dealer) HTTPAddr() net.Addr {
	if d.httpLn == nil {
		return nil
	}
	return d.httpLn.Addr()
}

// Sessions lists connected sessions, oldest activity first.
func (d *Dealer) Sessions() []session.Info {
	var list []session.Info
	d.sessions.Range(func(_, value any) bool {
		if s, ok := value.(*session.Session); ok {
			list = append(list, s.Snapshot())
		}
		return true
	})
	slices.SortFunc(list, func(a, b session.Info) int {
		if c := a.LastActive.Compare(b.LastActive); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}

func (d *Dealer) activeCount() int {
	n := 0
	d.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns the counters since the dealer started.
func (d *Dealer) Stats() httpapi.LiveStats {
	d.mu.Lock()
	closed := make(map[string]uint64, len(d.closed))
	for k, v := range d.closed {
		closed[k] = v
	}
	d.mu.Unlock()

	return httpapi.LiveStats{
		SessionsStarted: d.started.Load(),
		SessionsActive:  d.activeCount(),
		SessionsClosed:  closed,
		Rounds:          d.rounds.Load(),
		PlayerWins:      d.playerWins.Load(),
		DealerWins:      d.dealerWins.Load(),
		Ties:            d.ties.Load(),
		OffersSent:      d.broadcaster.Sent(),
		OffersFailed:    d.broadcaster.Failed(),
		StartedAt:       d.startedAt,
	}
}

// LocalIP is the first non-loopback IPv4 address of this host, used only
// for the startup log line.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "127.0.0.1"
}
