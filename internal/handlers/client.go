package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// 1回の書き込みに許す時間
	writeWait = 10 * time.Second

	// 受信フレームの最大サイズ（SDPが収まる大きさ）
	maxMessageSize = 64 * 1024

	// 送信キューの長さ。溢れたメッセージは捨てる
	sendBufferSize = 256
)

// Client は1つのWebSocket接続を表します
// 書き込みは writePump だけが行い、送信順は send キューの順になります
type Client struct {
	id      string          // 接続ID（サーバーが採番）
	conn    *websocket.Conn // WebSocket接続
	limiter *rate.Limiter   // 受信レート制限

	mu     sync.Mutex
	send   chan *Message
	closed bool
}

func newClient(id string, conn *websocket.Conn, perSec int) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec*2),
		send:    make(chan *Message, sendBufferSize),
	}
}

// enqueue は送信キューにメッセージを積みます
// 閉じている、またはキューが一杯の場合はfalseを返します
func (c *Client) enqueue(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close は送信キューを閉じて writePump を終了させます
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump は送信キューの内容をWebSocketに書き込みます
func (c *Client) writePump(log *slog.Logger) {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			// 以降の enqueue は失敗させ、破棄として数える
			// 接続の後始末は読み込みループ側で行う
			log.Warn("websocket write failed", "clientId", c.id, "type", msg.Type, "err", err)
			c.close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// probe は生存確認のpingを送ります
// WriteControl は他の書き込みと並行して呼べます
func (c *Client) probe() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// shutdown はサーバー停止を通知して接続を閉じます
func (c *Client) shutdown() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}
