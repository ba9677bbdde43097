package wsconn

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serve runs fn on the server side of every accepted WebSocket.
func serve(t *testing.T, fn func(ws *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		fn(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestReadSpansMessages(t *testing.T) {
	url := serve(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.BinaryMessage, []byte("hel"))
		ws.WriteMessage(websocket.TextMessage, []byte("ignored"))
		ws.WriteMessage(websocket.BinaryMessage, []byte("lo world"))
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.Close()
	})

	conn, err := Dial(url)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, 5)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("read %q, want %q", buf, "hello")
	}

	rest, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read after close = %v, want clean EOF", err)
	}
	if string(rest) != " world" {
		t.Errorf("rest = %q", rest)
	}
}

func TestWriteIsOneBinaryMessage(t *testing.T) {
	got := make(chan []byte, 1)
	url := serve(t, func(ws *websocket.Conn) {
		defer ws.Close()
		kind, data, err := ws.ReadMessage()
		if err != nil || kind != websocket.BinaryMessage {
			t.Errorf("ReadMessage = %d, %v", kind, err)
		}
		got <- data
	})

	conn, err := Dial(url)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	frame := []byte{3, 0, 0, 0, 'h', 'i'}
	if n, err := conn.Write(frame); err != nil || n != len(frame) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	select {
	case data := <-got:
		if !bytes.Equal(data, frame) {
			t.Errorf("server got %v, want %v", data, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server got nothing")
	}
}
