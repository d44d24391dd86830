package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrInvalidCookie = errors.New("invalid magic cookie")
	ErrUnknownType   = errors.New("unknown message type")
	ErrShortFrame    = errors.New("frame too short")
	ErrMalformed     = errors.New("malformed message body")
)

const decisionLength = 5

var (
	decisionHit   = []byte("Hittt")
	decisionStand = []byte("Stand")
)

// Encode serializes m into a complete frame.
func Encode(m Message) ([]byte, error) {
	n, ok := FrameLength(m.Type())
	if !ok {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), ErrUnknownType)
	}
	frame := make([]byte, n)
	binary.BigEndian.PutUint32(frame[0:4], MagicCookie)
	frame[4] = byte(m.Type())
	body := frame[HeaderLength:]

	switch msg := m.(type) {
	case Offer:
		binary.BigEndian.PutUint16(body[0:2], msg.TCPPort)
		putName(body[2:], msg.ServerName)

	case Request:
		if msg.Rounds == 0 {
			return nil, fmt.Errorf("encode request: zero rounds: %w", ErrMalformed)
		}
		body[0] = msg.Rounds
		putName(body[1:], msg.PlayerName)

	case Payload:
		if err := validateCard(msg.Rank, msg.Suit); err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body[0] = byte(msg.Holder)
		if msg.Hidden {
			body[1] = flagHidden
		}
		body[2] = msg.Rank
		body[3] = msg.Suit

	case Result:
		if !msg.Code.valid() {
			return nil, fmt.Errorf("encode result %d: %w", msg.Code, ErrMalformed)
		}
		body[0] = byte(msg.Code)

	case Decision:
		if msg.Move == MoveHit {
			copy(body, decisionHit)
		} else {
			copy(body, decisionStand)
		}

	default:
		return nil, fmt.Errorf("encode %T: %w", m, ErrUnknownType)
	}

	return frame, nil
}

// Decode parses one complete frame. It never returns a partial message:
// either the whole frame is valid or an error is returned.
func Decode(frame []byte) (Message, error) {
	t, err := decodeHeader(frame)
	if err != nil {
		return nil, err
	}
	n, _ := FrameLength(t)
	if len(frame) < n {
		return nil, fmt.Errorf("%s needs %d bytes, got %d: %w", t, n, len(frame), ErrShortFrame)
	}
	return decodeBody(t, frame[HeaderLength:n])
}

// decodeHeader validates the cookie before anything else so that foreign
// traffic is always reported as ErrInvalidCookie.
func decodeHeader(header []byte) (MessageType, error) {
	if len(header) < 4 {
		return 0, fmt.Errorf("header: %w", ErrShortFrame)
	}
	if cookie := binary.BigEndian.Uint32(header[0:4]); cookie != MagicCookie {
		return 0, fmt.Errorf("cookie 0x%08X: %w", cookie, ErrInvalidCookie)
	}
	if len(header) < HeaderLength {
		return 0, fmt.Errorf("header: %w", ErrShortFrame)
	}
	t := MessageType(header[4])
	if _, ok := bodyLength[t]; !ok {
		return 0, fmt.Errorf("type 0x%02X: %w", header[4], ErrUnknownType)
	}
	return t, nil
}

func decodeBody(t MessageType, body []byte) (Message, error) {
	switch t {
	case TypeOffer:
		return Offer{
			TCPPort:    binary.BigEndian.Uint16(body[0:2]),
			ServerName: parseName(body[2:]),
		}, nil

	case TypeRequest:
		if body[0] == 0 {
			return nil, fmt.Errorf("request: zero rounds: %w", ErrMalformed)
		}
		return Request{Rounds: body[0], PlayerName: parseName(body[1:])}, nil

	case TypePayload:
		holder := Holder(body[0])
		if holder != HolderPlayer && holder != HolderDealer {
			return nil, fmt.Errorf("payload: holder %d: %w", body[0], ErrMalformed)
		}
		if body[1]&^flagHidden != 0 {
			return nil, fmt.Errorf("payload: flags 0x%02X: %w", body[1], ErrMalformed)
		}
		if err := validateCard(body[2], body[3]); err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		return Payload{
			Holder: holder,
			Hidden: body[1]&flagHidden != 0,
			Rank:   body[2],
			Suit:   body[3],
		}, nil

	case TypeResult:
		code := ResultCode(body[0])
		if !code.valid() {
			return nil, fmt.Errorf("result: code %d: %w", body[0], ErrMalformed)
		}
		return Result{Code: code}, nil

	case TypeDecision:
		switch {
		case bytes.Equal(body, decisionHit):
			return Decision{Move: MoveHit}, nil
		case bytes.Equal(body, decisionStand):
			return Decision{Move: MoveStand}, nil
		default:
			return nil, fmt.Errorf("decision %q: %w", body, ErrMalformed)
		}
	}
	return nil, fmt.Errorf("type %s: %w", t, ErrUnknownType)
}

func (c ResultCode) valid() bool {
	return c >= ResultTie && c <= ResultPlayerWin
}

func validateCard(rank, suit uint8) error {
	if rank < 1 || rank > 13 {
		return fmt.Errorf("rank %d: %w", rank, ErrMalformed)
	}
	if suit > 3 {
		return fmt.Errorf("suit %d: %w", suit, ErrMalformed)
	}
	return nil
}

// putName writes s NUL padded, truncated to the field width.
func putName(field []byte, s string) {
	copy(field[:NameLength], TruncateName(s))
}

// TruncateName cuts s to at most NameLength bytes without splitting a rune.
func TruncateName(s string) string {
	if len(s) <= NameLength {
		return s
	}
	n := NameLength
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func parseName(field []byte) string {
	return string(bytes.TrimRight(field[:NameLength], "\x00"))
}
