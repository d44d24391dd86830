package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"openjack/internal/protocol"
)

// Found is a valid offer and where to reach its dealer over TCP.
type Found struct {
	Offer protocol.Offer
	Addr  string
}

// Listener receives Offers on the well-known port. Several players on one
// host can listen at once.
type Listener struct {
	conn   net.PacketConn
	logger *slog.Logger
}

// Listen binds the offer port on all interfaces.
func Listen(ctx context.Context, port int, logger *slog.Logger) (*Listener, error) {
	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen for offers on %d: %w", port, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{conn: conn, logger: logger.With("component", "discovery")}, nil
}

// Addr is the bound local address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Next blocks until a valid Offer arrives or ctx is done. Foreign or
// malformed datagrams are skipped.
func (l *Listener) Next(ctx context.Context) (Found, error) {
	l.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 1024)
	for {
		n, src, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Found{}, ctx.Err()
			}
			return Found{}, fmt.Errorf("read offer: %w", err)
		}

		msg, err := protocol.Decode(buf[:n])
		if err != nil {
			l.logger.Debug("ignoring datagram", "from", src.String(), "err", err)
			continue
		}
		offer, ok := msg.(protocol.Offer)
		if !ok {
			l.logger.Debug("ignoring non-offer datagram", "from", src.String(), "type", msg.Type())
			continue
		}
		udp, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		return Found{
			Offer: offer,
			Addr:  net.JoinHostPort(udp.IP.String(), strconv.Itoa(int(offer.TCPPort))),
		}, nil
	}
}

// Close releases the port.
func (l *Listener) Close() error {
	err := l.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Discover waits for the first valid Offer on port.
func Discover(ctx context.Context, port int, logger *slog.Logger) (Found, error) {
	l, err := Listen(ctx, port, logger)
	if err != nil {
		return Found{}, err
	}
	defer l.Close()
	return l.Next(ctx)
}
