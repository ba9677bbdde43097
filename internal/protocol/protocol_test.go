package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestBodySizes(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindConnect, 32},
		{KindDisconnect, 0},
		{KindPublic, 32 + 256},
		{KindPrivate, 32 + 32 + 256},
		{KindUserList, 4 + 32*32},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			size, ok := BodySize(tt.kind)
			if !ok || size != tt.want {
				t.Fatalf("BodySize(%s) = %d, %v; want %d", tt.kind, size, ok, tt.want)
			}
			frame := Encode(sample(tt.kind))
			if len(frame) != HeaderSize+tt.want {
				t.Errorf("frame length = %d, want %d", len(frame), HeaderSize+tt.want)
			}
			if got := Kind(ByteOrder.Uint32(frame[:HeaderSize])); got != tt.kind {
				t.Errorf("header kind = %s, want %s", got, tt.kind)
			}
		})
	}
}

func sample(kind Kind) Message {
	switch kind {
	case KindConnect:
		return Connect{Name: "Alice"}
	case KindDisconnect:
		return Disconnect{}
	case KindPublic:
		return Public{Sender: "Alice", Content: "hi"}
	case KindPrivate:
		return Private{Sender: "Bob", Target: "Alice", Content: "yo"}
	default:
		return UserList{Users: []string{"Alice", "Bob"}}
	}
}

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		Connect{Name: "Alice"},
		Connect{Name: ""},
		Disconnect{},
		Public{Sender: "Alice", Content: "hi"},
		Public{Sender: "System", Content: "Bob left the chat"},
		Private{Sender: "Bob", Target: "Alice", Content: "yo"},
		Private{Sender: "Ева", Target: "世界", Content: "привет, 世界"},
		UserList{Users: []string{"Alice"}},
		UserList{Users: []string{}},
	}

	for _, m := range messages {
		t.Run(fmt.Sprintf("%s/%v", m.Kind(), m), func(t *testing.T) {
			got, err := Decode(m.Kind(), EncodeBody(m))
			if err != nil {
				t.Fatalf("Decode: unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, m) {
				t.Errorf("round trip = %#v, want %#v", got, m)
			}

			got, err = ReadFrame(bytes.NewReader(Encode(m)))
			if err != nil {
				t.Fatalf("ReadFrame: unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, m) {
				t.Errorf("ReadFrame = %#v, want %#v", got, m)
			}
		})
	}
}

func TestTruncation(t *testing.T) {
	longName := strings.Repeat("n", 100)
	longText := strings.Repeat("t", 1000)

	m := Private{Sender: longName, Target: longName, Content: longText}
	got, err := Decode(KindPrivate, EncodeBody(m))
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	p := got.(Private)
	if p.Sender != longName[:NameSize-1] || p.Target != longName[:NameSize-1] {
		t.Errorf("names not truncated to %d bytes: %q, %q", NameSize-1, p.Sender, p.Target)
	}
	if p.Content != longText[:ContentSize-1] {
		t.Errorf("content length = %d, want %d", len(p.Content), ContentSize-1)
	}

	body := EncodeBody(Connect{Name: longName})
	if body[NameSize-1] != 0 {
		t.Error("name field is not terminated")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	// 15 two-byte runes fill 30 bytes, the 16th would cross the 31 byte limit
	name := strings.Repeat("é", 20)
	got := Truncate(name, NameSize)
	if got != strings.Repeat("é", 15) {
		t.Errorf("Truncate = %q (%d bytes)", got, len(got))
	}
	if Truncate("short", NameSize) != "short" {
		t.Error("short value changed")
	}
}

func TestUserListCap(t *testing.T) {
	users := make([]string, 40)
	for i := range users {
		users[i] = fmt.Sprintf("user%02d", i)
	}
	got, err := Decode(KindUserList, EncodeBody(UserList{Users: users}))
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	list := got.(UserList)
	if !reflect.DeepEqual(list.Users, users[:MaxUsers]) {
		t.Errorf("roster = %v, want first %d names", list.Users, MaxUsers)
	}

	body := EncodeBody(UserList{})
	ByteOrder.PutUint32(body[:4], 1000)
	got, err = Decode(KindUserList, body)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if n := len(got.(UserList).Users); n != MaxUsers {
		t.Errorf("oversized count decoded %d names, want %d", n, MaxUsers)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		body    []byte
		wantErr error
	}{
		{"ShortConnect", KindConnect, make([]byte, 10), ErrMalformedBody},
		{"ShortPublic", KindPublic, make([]byte, NameSize), ErrMalformedBody},
		{"ShortPrivate", KindPrivate, make([]byte, 319), ErrMalformedBody},
		{"ShortUserList", KindUserList, nil, ErrMalformedBody},
		{"Unknown", Kind(42), make([]byte, 64), ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.kind, tt.body)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode error = %v, want %v", err, tt.wantErr)
			}
			if !IsProtocolError(err) {
				t.Errorf("IsProtocolError(%v) = false", err)
			}
		})
	}
}

func TestReadFrameStream(t *testing.T) {
	var stream bytes.Buffer
	WriteFrame(&stream, Public{Sender: "Alice", Content: "first"})
	stream.Write(ByteOrder.AppendUint32(nil, 99))
	WriteFrame(&stream, Disconnect{})
	WriteFrame(&stream, Public{Sender: "Alice", Content: "second"})

	m, err := ReadFrame(&stream)
	if err != nil || m.(Public).Content != "first" {
		t.Fatalf("first frame = %v, %v", m, err)
	}
	if _, err := ReadFrame(&stream); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind error = %v", err)
	}
	if m, err = ReadFrame(&stream); err != nil || m.Kind() != KindDisconnect {
		t.Fatalf("disconnect frame = %v, %v", m, err)
	}
	if m, err = ReadFrame(&stream); err != nil || m.(Public).Content != "second" {
		t.Fatalf("last frame = %v, %v", m, err)
	}
	if _, err = ReadFrame(&stream); err != io.EOF {
		t.Errorf("empty stream error = %v, want io.EOF", err)
	}
}

func TestReadFrameShortBody(t *testing.T) {
	frame := Encode(Public{Sender: "Alice", Content: "cut"})
	_, err := ReadFrame(bytes.NewReader(frame[:HeaderSize+10]))
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("error = %v, want io.ErrUnexpectedEOF", err)
	}
	if IsProtocolError(err) {
		t.Error("short read must be a transport failure")
	}
}
