package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serverConn はテスト用にサーバー側のWebSocket接続を返します
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		conns <- conn
	}))
	t.Cleanup(ts.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })

	select {
	case conn := <-conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatalf("no server connection")
		return nil
	}
}

func TestClient_WriteFailureStopsQueue(t *testing.T) {
	conn := serverConn(t)
	c := newClient("c1", conn, 10)

	// 下位の接続を先に閉じて書き込みを失敗させる
	_ = conn.Close()

	done := make(chan struct{})
	go func() {
		c.writePump(slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	if !c.enqueue(&Message{Type: TypePong}) {
		t.Fatalf("first enqueue failed before any write")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("writePump did not exit after write failure")
	}

	if c.enqueue(&Message{Type: TypePong}) {
		t.Fatalf("enqueue succeeded after write failure")
	}
	// 切断時の後始末で再度呼ばれても問題ない
	c.close()
}
