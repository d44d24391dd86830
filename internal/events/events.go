package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	TypeRound   = "round"
	TypeSession = "session"

	// AllSubject carries every event regardless of kind.
	AllSubject = "blackjack.events.all"
)

// RoundEvent is emitted once per resolved round.
type RoundEvent struct {
	SessionID   string    `json:"session_id"`
	Dealer      string    `json:"dealer"`
	Player      string    `json:"player"`
	Round       int       `json:"round"`
	Outcome     string    `json:"outcome"`
	PlayerTotal int       `json:"player_total"`
	DealerTotal int       `json:"dealer_total"`
	At          time.Time `json:"at"`
}

// SessionEvent is emitted when a session ends, whatever the reason.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Dealer    string    `json:"dealer"`
	Player    string    `json:"player"`
	Remote    string    `json:"remote"`
	Rounds    int       `json:"rounds"`
	Played    int       `json:"played"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Envelope is the JSON shape on every subject and websocket.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Publisher delivers events to some sink.
type Publisher interface {
	PublishRound(e RoundEvent) error
	PublishSession(e SessionEvent) error
}

// Nop drops everything.
type Nop struct{}

func (Nop) PublishRound(RoundEvent) error     { return nil }
func (Nop) PublishSession(SessionEvent) error { return nil }

// Multi fans each event out to all publishers and joins their errors.
type Multi []Publisher

func (m Multi) PublishRound(e RoundEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishRound(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PublishSession(e SessionEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishSession(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RoundSubject is the subject for rounds with the given outcome.
func RoundSubject(outcome string) string {
	return fmt.Sprintf("blackjack.round.%s", outcome)
}

// SessionSubject is the subject for sessions that ended with reason.
func SessionSubject(reason string) string {
	return fmt.Sprintf("blackjack.session.%s", reason)
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes each event on its own subject and on AllSubject.
type NATSPublisher struct {
	conn   Conn
	logger *slog.Logger
}

func NewNATSPublisher(conn Conn, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, logger: logger.With("component", "events")}
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

func (p *NATSPublisher) PublishRound(e RoundEvent) error {
	return p.publish(RoundSubject(e.Outcome), Envelope{Type: TypeRound, Data: e})
}

func (p *NATSPublisher) PublishSession(e SessionEvent) error {
	return p.publish(SessionSubject(e.Reason), Envelope{Type: TypeSession, Data: e})
}

func (p *NATSPublisher) publish(subject string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", env.Type, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.Publish(AllSubject, data); err != nil {
		return fmt.Errorf("publish %s: %w", AllSubject, err)
	}
	p.logger.Debug("published event", "subject", subject)
	return nil
}
