// Package protocol defines the fixed-layout binary frames exchanged between
// the chat server and its clients.
//
// A frame is a 4-byte kind tag followed by a body whose size is fully
// determined by the kind. There is no length field, so both peers must
// agree on the exact layout of every kind.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Kind tags a frame and selects its body layout.
type Kind uint32

const (
	KindConnect    Kind = 1
	KindDisconnect Kind = 2
	KindPublic     Kind = 3
	KindPrivate    Kind = 4
	KindUserList   Kind = 5
)

// Field capacities in bytes, terminator included.
const (
	NameSize    = 32
	ContentSize = 256
	MaxUsers    = 32
	HeaderSize  = 4
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// ByteOrder is the order of the kind tag and the user count.
// The protocol does not canonicalize it; peers must match.
var ByteOrder byteOrder = binary.LittleEndian

var (
	// ErrMalformedBody - body is shorter than the fixed size of its kind.
	ErrMalformedBody = errors.New("protocol: malformed body")
	// ErrUnknownKind - header carries a tag outside the known kinds.
	ErrUnknownKind = errors.New("protocol: unknown kind")
)

var bodySizes = map[Kind]int{
	KindConnect:    NameSize,
	KindDisconnect: 0,
	KindPublic:     NameSize + ContentSize,
	KindPrivate:    NameSize + NameSize + ContentSize,
	KindUserList:   4 + MaxUsers*NameSize,
}

// BodySize returns the fixed body size for kind.
func BodySize(kind Kind) (int, bool) {
	n, ok := bodySizes[kind]
	return n, ok
}

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "Connect"
	case KindDisconnect:
		return "Disconnect"
	case KindPublic:
		return "PublicMessage"
	case KindPrivate:
		return "PrivateMessage"
	case KindUserList:
		return "UserListUpdate"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Message is one decoded frame body.
type Message interface {
	Kind() Kind
	appendBody(b []byte) []byte
}

// Connect is the handshake frame carrying the proposed display name.
type Connect struct {
	Name string
}

// Disconnect announces an orderly leave. Its body is empty.
type Disconnect struct{}

// Public is a message for every connected user.
type Public struct {
	Sender  string
	Content string
}

// Private is a message routed to a single user by display name.
type Private struct {
	Sender  string
	Target  string
	Content string
}

// UserList is the roster snapshot. At most MaxUsers names are carried.
type UserList struct {
	Users []string
}

func (Connect) Kind() Kind    { return KindConnect }
func (Disconnect) Kind() Kind { return KindDisconnect }
func (Public) Kind() Kind     { return KindPublic }
func (Private) Kind() Kind    { return KindPrivate }
func (UserList) Kind() Kind   { return KindUserList }

func (m Connect) appendBody(b []byte) []byte {
	return appendField(b, m.Name, NameSize)
}

func (Disconnect) appendBody(b []byte) []byte { return b }

func (m Public) appendBody(b []byte) []byte {
	b = appendField(b, m.Sender, NameSize)
	return appendField(b, m.Content, ContentSize)
}

func (m Private) appendBody(b []byte) []byte {
	b = appendField(b, m.Sender, NameSize)
	b = appendField(b, m.Target, NameSize)
	return appendField(b, m.Content, ContentSize)
}

func (m UserList) appendBody(b []byte) []byte {
	users := m.Users
	if len(users) > MaxUsers {
		users = users[:MaxUsers]
	}
	b = ByteOrder.AppendUint32(b, uint32(len(users)))
	for i := 0; i < MaxUsers; i++ {
		name := ""
		if i < len(users) {
			name = users[i]
		}
		b = appendField(b, name, NameSize)
	}
	return b
}

// EncodeBody returns the fixed-size body of m without the header.
func EncodeBody(m Message) []byte {
	size, _ := BodySize(m.Kind())
	return m.appendBody(make([]byte, 0, size))
}

// Encode returns the complete frame for m: header followed by body.
func Encode(m Message) []byte {
	size, _ := BodySize(m.Kind())
	b := make([]byte, 0, HeaderSize+size)
	b = ByteOrder.AppendUint32(b, uint32(m.Kind()))
	return m.appendBody(b)
}

// Decode parses a body of the given kind.
// Bytes beyond the fixed size are ignored.
func Decode(kind Kind, body []byte) (Message, error) {
	size, ok := BodySize(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint32(kind))
	}
	if len(body) < size {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrMalformedBody, kind, size, len(body))
	}

	switch kind {
	case KindConnect:
		return Connect{Name: field(body, 0, NameSize)}, nil
	case KindDisconnect:
		return Disconnect{}, nil
	case KindPublic:
		return Public{
			Sender:  field(body, 0, NameSize),
			Content: field(body, NameSize, ContentSize),
		}, nil
	case KindPrivate:
		return Private{
			Sender:  field(body, 0, NameSize),
			Target:  field(body, NameSize, NameSize),
			Content: field(body, 2*NameSize, ContentSize),
		}, nil
	default:
		count := int(int32(ByteOrder.Uint32(body[:4])))
		if count < 0 {
			count = 0
		}
		if count > MaxUsers {
			count = MaxUsers
		}
		users := make([]string, 0, count)
		for i := 0; i < count; i++ {
			users = append(users, field(body, 4+i*NameSize, NameSize))
		}
		return UserList{Users: users}, nil
	}
}

// ReadFrame reads one complete frame from r.
//
// Header and body are both read to completion; a short read returns the
// underlying io error. For an unknown kind only the header is consumed and
// an error wrapping ErrUnknownKind is returned, the stream stays usable.
func ReadFrame(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	kind := Kind(ByteOrder.Uint32(header[:]))
	size, ok := BodySize(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint32(kind))
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return Decode(kind, body)
}

// WriteFrame writes m to w with a single Write call.
func WriteFrame(w io.Writer, m Message) error {
	_, err := w.Write(Encode(m))
	return err
}

// IsProtocolError reports whether err is a frame-level error after which
// the stream can still be read.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrUnknownKind) || errors.Is(err, ErrMalformedBody)
}

// Truncate shortens s to fit a field of the given capacity, keeping room
// for the terminator and never splitting a UTF-8 sequence.
func Truncate(s string, capacity int) string {
	limit := capacity - 1
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func appendField(b []byte, s string, capacity int) []byte {
	s = Truncate(s, capacity)
	b = append(b, s...)
	for i := len(s); i < capacity; i++ {
		b = append(b, 0)
	}
	return b
}

func field(body []byte, offset, capacity int) string {
	raw := body[offset : offset+capacity]
	for i, c := range raw {
		if c == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}
