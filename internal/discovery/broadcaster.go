package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"openjack/internal/protocol"
)

// DefaultPort is the well-known UDP port players listen on for offers.
const DefaultPort = 13122

// Broadcaster periodically sends the dealer's Offer. It shares nothing with
// running sessions.
type Broadcaster struct {
	conn     net.PacketConn
	dest     *net.UDPAddr
	interval time.Duration
	frame    []byte
	logger   *slog.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewBroadcaster binds an ephemeral UDP socket and prepares the Offer frame
// for dest ("255.255.255.255:13122" on a LAN).
func NewBroadcaster(offer protocol.Offer, dest string, interval time.Duration, logger *slog.Logger) (*Broadcaster, error) {
	frame, err := protocol.Encode(offer)
	if err != nil {
		return nil, fmt.Errorf("encode offer: %w", err)
	}
	addr, err := net.ResolveUDPAddr("udp4", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dest, err)
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("bind broadcast socket: %w", err)
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		conn:     conn,
		dest:     addr,
		interval: interval,
		frame:    frame,
		logger:   logger.With("component", "broadcaster"),
	}, nil
}

// Run sends one Offer immediately and then one per interval until ctx is
// done. Send failures are logged and retried on the next tick.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer b.conn.Close()

	b.logger.Info("broadcasting offers", "dest", b.dest.String(), "interval", b.interval)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		b.send()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases the socket of a Broadcaster that will never Run.
func (b *Broadcaster) Close() error {
	return b.conn.Close()
}

func (b *Broadcaster) send() {
	if _, err := b.conn.WriteTo(b.frame, b.dest); err != nil {
		b.failed.Add(1)
		b.logger.Warn("offer send failed", "err", err)
		return
	}
	b.sent.Add(1)
}

// Sent is the number of offers written successfully.
func (b *Broadcaster) Sent() uint64 { return b.sent.Load() }

// Failed is the number of offers that could not be written.
func (b *Broadcaster) Failed() uint64 { return b.failed.Load() }
