package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dreamware/keypart/internal/sync2"
)

// Kind is the ClientMessage request kind; these numeric values are stable
// across the wire protocol.
type Kind int32

const (
	Read  Kind = 0
	Write Kind = 1
	Scan  Kind = 2
	Sync  Kind = 3
	Error Kind = 4
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Scan:
		return "SCAN"
	case Sync:
		return "SYNC"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(k))
	}
}

// MaxArgsLen is the maximum length of the ClientMessage args field.
const MaxArgsLen = 4096

// ReplyFunc delivers a ReplyMessage to the reply transport. Modeling the
// reply address as a callback keeps that transport out of this package:
// the core only needs to hand a finished answer to *something*, and a
// callback is the narrowest such interface.
type ReplyFunc func(ReplyMessage)

// ClientMessage is the unit of work admitted by the scheduler. SYNC
// messages are never constructed by clients or decoded off the wire;
// the scheduler builds them directly with a Barrier handle.
type ClientMessage struct {
	ReplyTo         ReplyFunc
	Barrier         *sync2.Barrier
	Args            []byte
	ID              int32
	SAddr           uint32
	SinPort         uint16
	Key             int64
	Kind            Kind
	RecordTimestamp bool
}

// ReplyMessage is the scheduler's answer to an admitted ClientMessage.
type ReplyMessage struct {
	Answer string
	ID     int32
}

// header mirrors the fixed-width wire header, before the
// size-prefixed args body.
type header struct {
	ID              int32
	SAddr           uint32
	SinPort         uint16
	Key             int32
	Kind            int32
	RecordTimestamp uint8
	Size            int32
}

// Encode serializes m into the wire format: a fixed-width header followed
// by a Size-byte args body. SYNC messages cannot be encoded (they
// never cross the wire).
func Encode(m ClientMessage) ([]byte, error) {
	if m.Kind == Sync {
		return nil, errors.New("wire: SYNC is internal-only and cannot be encoded")
	}
	if len(m.Args) > MaxArgsLen {
		return nil, fmt.Errorf("wire: args length %d exceeds max %d", len(m.Args), MaxArgsLen)
	}
	var rt uint8
	if m.RecordTimestamp {
		rt = 1
	}
	h := header{
		ID:              m.ID,
		SAddr:           m.SAddr,
		SinPort:         m.SinPort,
		Key:             int32(m.Key),
		Kind:            int32(m.Kind),
		RecordTimestamp: rt,
		Size:            int32(len(m.Args)),
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, h); err != nil {
		return nil, err
	}
	buf.Write(m.Args)
	return buf.Bytes(), nil
}

// Decode parses a ClientMessage out of its wire representation.
func Decode(b []byte) (ClientMessage, error) {
	r := bytes.NewReader(b)
	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: decode header: %w", err)
	}
	if h.Size < 0 || int(h.Size) > MaxArgsLen {
		return ClientMessage{}, fmt.Errorf("wire: invalid args size %d", h.Size)
	}
	args := make([]byte, h.Size)
	if _, err := io.ReadFull(r, args); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: decode args: %w", err)
	}
	return ClientMessage{
		ID:              h.ID,
		SAddr:           h.SAddr,
		SinPort:         h.SinPort,
		Key:             int64(h.Key),
		Kind:            Kind(h.Kind),
		RecordTimestamp: h.RecordTimestamp != 0,
		Args:            args,
	}, nil
}

// HeaderSize is the wire-encoded length of the fixed header, before the
// args body: int32 id, uint32 s_addr, uint16 sin_port, int32 key, int32
// kind, uint8 record_timestamp, int32 size.
const HeaderSize = 4 + 4 + 2 + 4 + 4 + 1 + 4

// ReadMessage reads one framed ClientMessage off r: the fixed header,
// then its Size-byte args body.
func ReadMessage(r io.Reader) (ClientMessage, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: read header: %w", err)
	}
	size := int32(binary.BigEndian.Uint32(hdr[HeaderSize-4:]))
	if size < 0 || int(size) > MaxArgsLen {
		return ClientMessage{}, fmt.Errorf("wire: invalid args size %d", size)
	}
	args := make([]byte, size)
	if _, err := io.ReadFull(r, args); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: read args: %w", err)
	}
	return Decode(append(hdr, args...))
}

// WriteMessage encodes m and writes it to w.
func WriteMessage(w io.Writer, m ClientMessage) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteReply encodes r and writes it to w.
func WriteReply(w io.Writer, r ReplyMessage) error {
	_, err := w.Write(EncodeReply(r))
	return err
}

// EncodeReply serializes a ReplyMessage as its id followed by a
// null-terminated answer string.
func EncodeReply(r ReplyMessage) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, r.ID)
	buf.WriteString(r.Answer)
	buf.WriteByte(0)
	return buf.Bytes()
}

// ReadReply reads one id-plus-null-terminated-string reply off r.
func ReadReply(r io.Reader) (ReplyMessage, error) {
	var idBuf [4]byte
	if _, err := io.ReadFull(r, idBuf[:]); err != nil {
		return ReplyMessage{}, fmt.Errorf("wire: read reply id: %w", err)
	}
	var answer []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return ReplyMessage{}, fmt.Errorf("wire: read reply answer: %w", err)
		}
		if b[0] == 0 {
			break
		}
		answer = append(answer, b[0])
	}
	return ReplyMessage{ID: int32(binary.BigEndian.Uint32(idBuf[:])), Answer: string(answer)}, nil
}

// DecodeReply parses a ReplyMessage out of its wire representation.
func DecodeReply(b []byte) (ReplyMessage, error) {
	if len(b) < 4 {
		return ReplyMessage{}, errors.New("wire: reply too short")
	}
	id := int32(binary.BigEndian.Uint32(b[:4]))
	rest := b[4:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return ReplyMessage{}, errors.New("wire: reply answer not null-terminated")
	}
	return ReplyMessage{ID: id, Answer: string(rest[:nul])}, nil
}
