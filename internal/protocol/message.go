package protocol

import "fmt"

// MagicCookie prefixes every frame on both transports.
const MagicCookie uint32 = 0xABCDDCBA

// NameLength is the fixed width of the server and player name fields.
const NameLength = 32

// HeaderLength covers the cookie and the type byte.
const HeaderLength = 5

// MessageType identifies the body layout that follows the header.
type MessageType uint8

// Message types
const (
	TypeOffer    MessageType = 0x02
	TypeRequest  MessageType = 0x03
	TypePayload  MessageType = 0x04
	TypeResult   MessageType = 0x05
	TypeDecision MessageType = 0x06
)

// bodyLength is the fixed body size of each message type.
var bodyLength = map[MessageType]int{
	TypeOffer:    2 + NameLength,
	TypeRequest:  1 + NameLength,
	TypePayload:  4,
	TypeResult:   1,
	TypeDecision: decisionLength,
}

func (t MessageType) String() string {
	switch t {
	case TypeOffer:
		return "OFFER"
	case TypeRequest:
		return "REQUEST"
	case TypePayload:
		return "PAYLOAD"
	case TypeResult:
		return "RESULT"
	case TypeDecision:
		return "DECISION"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(t))
	}
}

// FrameLength returns the full on-wire size of a frame of type t.
func FrameLength(t MessageType) (int, bool) {
	n, ok := bodyLength[t]
	if !ok {
		return 0, false
	}
	return HeaderLength + n, true
}

// Message is implemented by every frame kind.
type Message interface {
	Type() MessageType
}

// Offer advertises a dealer over UDP broadcast.
type Offer struct {
	ServerName string
	TCPPort    uint16
}

// Request opens a TCP session and asks for a number of rounds.
type Request struct {
	Rounds     uint8
	PlayerName string
}

// Holder says whose hand a dealt card belongs to.
type Holder uint8

const (
	HolderPlayer Holder = 0
	HolderDealer Holder = 1
)

func (h Holder) String() string {
	if h == HolderDealer {
		return "dealer"
	}
	return "player"
}

const flagHidden uint8 = 0x01

// Payload carries one dealt card. Hidden marks the dealer's hole card; rank
// and suit are still sent.
type Payload struct {
	Holder Holder
	Hidden bool
	Rank   uint8
	Suit   uint8
}

// ResultCode is the round outcome as sent on the wire.
type ResultCode uint8

// Result codes. Zero is reserved for a pending round and never sent.
const (
	ResultTie       ResultCode = 1
	ResultDealerWin ResultCode = 2
	ResultPlayerWin ResultCode = 3
)

func (c ResultCode) String() string {
	switch c {
	case ResultTie:
		return "TIE"
	case ResultDealerWin:
		return "LOSS"
	case ResultPlayerWin:
		return "WIN"
	default:
		return fmt.Sprintf("RESULT_%d", uint8(c))
	}
}

// Result closes a round.
type Result struct {
	Code ResultCode
}

// Move is the player's directive during the player turn.
type Move uint8

const (
	MoveStand Move = iota
	MoveHit
)

func (m Move) String() string {
	if m == MoveHit {
		return "hit"
	}
	return "stand"
}

// Decision carries a Move from the player to the dealer.
type Decision struct {
	Move Move
}

func (Offer) Type() MessageType    { return TypeOffer }
func (Request) Type() MessageType  { return TypeRequest }
func (Payload) Type() MessageType  { return TypePayload }
func (Result) Type() MessageType   { return TypeResult }
func (Decision) Type() MessageType { return TypeDecision }
