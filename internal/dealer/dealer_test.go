package dealer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"openjack/internal/config"
	"openjack/internal/discovery"
	"openjack/internal/events"
	"openjack/internal/httpapi"
	"openjack/internal/player"
	"openjack/internal/registry"
	"openjack/internal/session"
)

type fakeRegistry struct {
	mu        sync.Mutex
	live      map[string]registry.Entry
	registers int
	touches   int
	removes   int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: make(map[string]registry.Entry)}
}

func (f *fakeRegistry) Register(_ context.Context, e registry.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	f.live[e.ID] = e
	return nil
}

func (f *fakeRegistry) Touch(_ context.Context, e registry.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	f.live[e.ID] = e
	return nil
}

func (f *fakeRegistry) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	delete(f.live, id)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	rounds   []events.RoundEvent
	sessions []events.SessionEvent
}

func (f *fakePublisher) PublishRound(e events.RoundEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, e)
	return nil
}

func (f *fakePublisher) PublishSession(e events.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, e)
	return nil
}

type harness struct {
	dealer   *Dealer
	offers   *discovery.Listener
	registry *fakeRegistry
	events   *fakePublisher
	cancel   context.CancelFunc
	stopped  chan error
	once     sync.Once
	runErr   error
}

func startDealer(t *testing.T) *harness {
	t.Helper()
	offers, err := discovery.Listen(context.Background(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { offers.Close() })

	cfg := &config.DealerConfig{
		DealerName:    "TeamIronMan",
		OfferPort:     offers.Addr().(*net.UDPAddr).Port,
		OfferAddr:     "127.0.0.1",
		OfferInterval: 20 * time.Millisecond,
		IdleTimeout:   2 * time.Second,
	}
	h := &harness{
		offers:   offers,
		registry: newFakeRegistry(),
		events:   &fakePublisher{},
		stopped:  make(chan error, 1),
	}
	h.dealer, err = New(cfg, Deps{
		Registry: h.registry,
		Events:   h.events,
		Hub:      httpapi.NewHub(nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.stopped <- h.dealer.Run(ctx) }()
	t.Cleanup(func() { h.stop() })
	return h
}

// stop cancels the dealer and returns what Run returned.
func (h *harness) stop() error {
	h.once.Do(func() {
		h.cancel()
		select {
		case h.runErr = <-h.stopped:
		case <-time.After(3 * time.Second):
			h.runErr = context.DeadlineExceeded
		}
	})
	return h.runErr
}

func (h *harness) waitSessions(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.dealer.Wait(ctx); err != nil {
		t.Fatalf("sessions still running: %v", err)
	}
}

func TestDealerServesPlayers(t *testing.T) {
	h := startDealer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	found, err := h.offers.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if found.Offer.ServerName != "TeamIronMan" || int(found.Offer.TCPPort) != h.dealer.TCPPort() {
		t.Fatalf("unexpected offer %+v, dealer on %d", found.Offer, h.dealer.TCPPort())
	}

	var wg sync.WaitGroup
	results := make([]player.Stats, 2)
	reasons := make([]session.Reason, 2)
	errs := make([]error, 2)
	for i, name := range []string{"Joker", "Bane"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &player.Client{Name: name, IdleTimeout: 2 * time.Second}
			results[i], reasons[i], errs[i] = client.Play(ctx, found.Addr, 3)
		}()
	}
	wg.Wait()
	for i := range errs {
		if errs[i] != nil || reasons[i] != session.Completed || results[i].Played() != 3 {
			t.Fatalf("player %d: %v %s %+v", i, errs[i], reasons[i], results[i])
		}
	}
	h.waitSessions(t)

	stats := h.dealer.Stats()
	if stats.SessionsStarted != 2 || stats.Rounds != 6 || stats.SessionsClosed["completed"] != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.PlayerWins+stats.DealerWins+stats.Ties != 6 {
		t.Fatalf("outcomes do not add up: %+v", stats)
	}
	if stats.OffersSent == 0 {
		t.Fatal("no offers counted")
	}
	if len(h.dealer.Sessions()) != 0 {
		t.Fatalf("sessions left behind: %v", h.dealer.Sessions())
	}

	h.registry.mu.Lock()
	if h.registry.registers != 2 || h.registry.touches != 6 || h.registry.removes != 2 || len(h.registry.live) != 0 {
		t.Errorf("registry saw %d/%d/%d, %d live", h.registry.registers, h.registry.touches, h.registry.removes, len(h.registry.live))
	}
	h.registry.mu.Unlock()

	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	if len(h.events.rounds) != 6 || len(h.events.sessions) != 2 {
		t.Fatalf("published %d rounds, %d sessions", len(h.events.rounds), len(h.events.sessions))
	}
	for _, e := range h.events.sessions {
		if e.Reason != "completed" || e.Played != 3 || e.Dealer != "TeamIronMan" {
			t.Errorf("unexpected session event %+v", e)
		}
	}
}

func TestDealerDropsBadClient(t *testing.T) {
	h := startDealer(t)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(h.dealer.TCPPort())))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("GET / HTTP/1.0\r\n\r\n"))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 16)
	if n, err := conn.Read(buf); err == nil {
		t.Fatalf("expected the dealer to hang up, read %d bytes", n)
	}
	h.waitSessions(t)

	if got := h.dealer.Stats().SessionsClosed["protocol_violation"]; got != 1 {
		t.Fatalf("protocol violations %d, want 1", got)
	}
	h.registry.mu.Lock()
	if h.registry.registers != 0 || h.registry.removes != 0 {
		t.Errorf("registry touched for a session that never started")
	}
	h.registry.mu.Unlock()
}

func TestDealerStopsAccepting(t *testing.T) {
	h := startDealer(t)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(h.dealer.TCPPort()))

	if err := h.stop(); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Fatal("dealer still accepting after stop")
	}
}

func TestDealerAsAPIBackend(t *testing.T) {
	h := startDealer(t)

	// A connected player that has not sent its Request yet.
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(h.dealer.TCPPort())))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	router := httpapi.NewServer(h.dealer, nil, nil).Router()
	deadline := time.Now().Add(2 * time.Second)
	for {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
		var body struct {
			Count int `json:"count"`
		}
		json.Unmarshal(w.Body.Bytes(), &body)
		if body.Count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never listed: %s", w.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["dealer"] != "TeamIronMan" || int(health["tcp_port"].(float64)) != h.dealer.TCPPort() {
		t.Fatalf("unexpected health %v", health)
	}
}

func TestNewReleasesSocketsOnError(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	free, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	tcpPort := free.Addr().(*net.TCPAddr).Port
	free.Close()

	cfg := &config.DealerConfig{
		DealerName:    "TeamIronMan",
		TCPPort:       tcpPort,
		HTTPPort:      busy.Addr().(*net.TCPAddr).Port,
		OfferPort:     discovery.DefaultPort,
		OfferAddr:     "127.0.0.1",
		OfferInterval: time.Second,
	}
	if _, err := New(cfg, Deps{}); err == nil {
		t.Fatal("New succeeded with the management port taken")
	}

	again, err := net.Listen("tcp", fmt.Sprintf(":%d", tcpPort))
	if err != nil {
		t.Fatalf("game port still held after a failed New: %v", err)
	}
	again.Close()
}
