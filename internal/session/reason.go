package session

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"openjack/internal/protocol"
)

// Reason is reported once per session when it ends.
type Reason string

const (
	Completed         Reason = "completed"
	SessionTimeout    Reason = "timeout"
	ProtocolViolation Reason = "protocol_violation"
	ConnectionReset   Reason = "connection_reset"
)

var (
	ErrProtocolViolation = errors.New("protocol violation")
	ErrSessionTimeout    = errors.New("session idle timeout")
	ErrConnectionReset   = errors.New("connection reset by peer")
)

// Classify maps the error a session ended with to exactly one Reason. A nil
// error is a normal completion; anything unrecognised is treated as a lost
// peer.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return Completed
	case errors.Is(err, ErrSessionTimeout), isTimeout(err):
		return SessionTimeout
	case errors.Is(err, ErrProtocolViolation), protocol.IsDecodeError(err):
		return ProtocolViolation
	default:
		return ConnectionReset
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isPeerGone covers the ways a peer disappears mid-session.
func isPeerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
