package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/SteamVC/pairing-relay/internal/idgen"
	"github.com/SteamVC/pairing-relay/internal/models"
	"github.com/SteamVC/pairing-relay/internal/service"
)

// pongWait は応答がない接続を切断するまでの時間
// メンテナンス間隔より十分長くします
const defaultPongWait = 75 * time.Second

// WebSocketOptions はWebSocketHandlerの設定
type WebSocketOptions struct {
	AllowedOrigins    []string      // 許可するOrigin（"*" ですべて許可）
	MaxMessagesPerSec int           // 接続ごとの受信レート上限
	PongWait          time.Duration // 無応答で切断するまでの時間
}

// RelayCounters は中継処理の累計値です
type RelayCounters struct {
	Connections int64  `json:"connections"`
	Forwarded   uint64 `json:"forwarded"`
	Dropped     uint64 `json:"dropped"`
}

// WebSocketHandler はシグナリング接続を処理するハンドラー
// 接続ごとにClientを持ち、offer/answer/ice-candidate をペアの相手に転送します
type WebSocketHandler struct {
	reg      *service.RoomRegistry
	log      *slog.Logger
	upgrader websocket.Upgrader
	perSec   int
	pongWait time.Duration

	mu      sync.RWMutex
	clients map[string]*Client // 接続IDをキーとしたクライアントのマップ

	connections atomic.Int64
	forwarded   atomic.Uint64
	dropped     atomic.Uint64
}

// NewWebSocketHandler は新しいWebSocketHandlerを作成します
func NewWebSocketHandler(reg *service.RoomRegistry, log *slog.Logger, opts WebSocketOptions) *WebSocketHandler {
	if opts.MaxMessagesPerSec <= 0 {
		opts.MaxMessagesPerSec = 50
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &WebSocketHandler{
		reg:      reg,
		log:      log,
		perSec:   opts.MaxMessagesPerSec,
		pongWait: opts.PongWait,
		clients:  make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}
}

// checkOrigin はOriginヘッダを許可リストと照合します
// Originを送らないネイティブクライアント（Android）は許可します
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. HTTPからWebSocketへのアップグレードと接続IDの採番
// 2. メッセージ受信ループ
// 3. 切断時のルームからの解除と後始末
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := newClient(idgen.NewULID(), conn, h.perSec)
	h.addClient(client)
	defer h.disconnect(client)

	go client.writePump(h.log)

	h.log.Info("client connected", "clientId", client.id, "remote", r.RemoteAddr)
	client.enqueue(&Message{
		Type:     TypeStatus,
		ClientID: client.id,
		Message:  "Connected to signaling server",
	})

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	// メッセージ受信ループ
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", "clientId", client.id, "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

		if !client.limiter.Allow() {
			client.enqueue(errorMessage("Rate limit exceeded"))
			continue
		}

		msg, err := parseMessage(data)
		if err != nil {
			h.log.Debug("malformed message", "clientId", client.id, "err", err)
			client.enqueue(errorMessage("Invalid message format"))
			continue
		}
		h.dispatch(client, msg)
	}
}

// dispatch はメッセージタイプに応じて処理を振り分けます
func (h *WebSocketHandler) dispatch(client *Client, msg Message) {
	switch {
	case msg.Type == TypeJoin:
		h.handleJoin(client, msg)
	case msg.Type.negotiation():
		h.forward(client, msg)
	case msg.Type == TypePing:
		client.enqueue(&Message{Type: TypePong})
	default:
		h.log.Info("unknown message type", "clientId", client.id, "type", msg.Type)
	}
}

// handleJoin はルームへの参加を処理します
// 処理の流れ:
// 1. roomCode と deviceType の検証
// 2. レジストリへの登録
// 3. 参加結果の返信と、ペア成立時の両者への通知
func (h *WebSocketHandler) handleJoin(client *Client, msg Message) {
	code := idgen.NormalizeRoomCode(msg.RoomCode)
	deviceType := strings.ToLower(strings.TrimSpace(msg.DeviceType))

	if code == "" || deviceType == "" {
		client.enqueue(errorMessage("roomCode and deviceType are required"))
		return
	}
	role := models.Role(deviceType)
	if !role.Valid() {
		client.enqueue(errorMessage("deviceType must be web or android"))
		return
	}

	reg, err := h.reg.RegisterClient(code, client.id, role)
	if err != nil {
		h.log.Info("join rejected", "clientId", client.id, "roomCode", code, "role", role, "err", err)
		client.enqueue(errorMessage(joinErrorMessage(err)))
		return
	}

	// 別のルームから移ってきた場合、元のルームに残った相手にペア解除を通知する
	if reg.Released != nil {
		h.notifyPeerLeft(*reg.Released)
	}

	room := reg.Room
	h.log.Info("client joined", "clientId", client.id, "roomCode", code, "role", role, "paired", room.Paired())
	client.enqueue(&Message{
		Type:       TypeStatus,
		RoomCode:   room.Code,
		DeviceType: string(role),
		Paired:     boolPtr(room.Paired()),
		Message:    "Joined room as " + string(role),
	})

	if !reg.NewlyPaired {
		return
	}
	// 登録時に返されたルームの値から両者へ通知する
	for _, id := range []string{room.WebClient, room.AndroidClient} {
		h.sendTo(id, &Message{
			Type:     TypeStatus,
			RoomCode: room.Code,
			Paired:   boolPtr(true),
			Message:  "Both devices connected",
		})
	}
}

// joinErrorMessage はレジストリのエラーをクライアント向けの文言にします
func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, service.ErrRoomExpired):
		return "Room expired"
	case errors.Is(err, service.ErrRoleOccupied):
		return "Device role already connected in this room"
	case errors.Is(err, service.ErrInvalidRole):
		return "deviceType must be web or android"
	default:
		return "Failed to join room"
	}
}

// forward は offer / answer / ice-candidate をペアの相手に転送します
// 相手がいなければエラーを返し、書き込めない場合は捨てます（再送しない）
func (h *WebSocketHandler) forward(client *Client, msg Message) {
	peerID, ok := h.reg.GetPeerConnection(client.id)
	if !ok {
		h.dropped.Inc()
		client.enqueue(errorMessage("Peer not connected"))
		return
	}

	out := &Message{
		Type:         msg.Type,
		Payload:      msg.Payload,
		FromClientID: client.id,
	}
	if !h.sendTo(peerID, out) {
		h.dropped.Inc()
		h.log.Warn("peer not writable, message dropped", "clientId", client.id, "peerId", peerID, "type", msg.Type)
		return
	}
	h.forwarded.Inc()
}

// sendTo は接続IDを指定してメッセージを送信キューに積みます
func (h *WebSocketHandler) sendTo(id string, msg *Message) bool {
	c := h.client(id)
	if c == nil {
		return false
	}
	return c.enqueue(msg)
}

// NotifyRoomClosed は削除されたルームに紐づいていた接続に通知します
func (h *WebSocketHandler) NotifyRoomClosed(room models.Room) {
	for _, id := range []string{room.WebClient, room.AndroidClient} {
		if id == "" {
			continue
		}
		h.sendTo(id, &Message{
			Type:     TypeStatus,
			RoomCode: room.Code,
			Paired:   boolPtr(false),
			Message:  "Room closed",
		})
	}
}

// notifyPeerLeft は片方が外れたルームに残った接続へペア解除を通知します
// 空になったルームは削除済みなので通知先はありません
func (h *WebSocketHandler) notifyPeerLeft(room models.Room) {
	if room.Empty() {
		h.log.Info("room emptied and deleted", "roomCode", room.Code)
		return
	}
	for _, id := range []string{room.WebClient, room.AndroidClient} {
		if id == "" {
			continue
		}
		h.sendTo(id, &Message{
			Type:     TypeStatus,
			RoomCode: room.Code,
			Paired:   boolPtr(false),
			Message:  "Peer disconnected",
		})
	}
}

// disconnect は切断時の後始末を行います
// ルームからの解除は必ず行い、残った相手にはペア解除を通知します
func (h *WebSocketHandler) disconnect(client *Client) {
	h.removeClient(client.id)

	room, bound := h.reg.RemoveConnection(client.id)
	if bound {
		h.notifyPeerLeft(room)
	}

	client.close()
	_ = client.conn.Close()
	h.log.Info("client disconnected", "clientId", client.id)
}

func (h *WebSocketHandler) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.connections.Inc()
}

func (h *WebSocketHandler) removeClient(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		h.connections.Dec()
	}
}

func (h *WebSocketHandler) client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// snapshot は現在のクライアント一覧のコピーを返します
func (h *WebSocketHandler) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Counters は中継処理の累計値を返します
func (h *WebSocketHandler) Counters() RelayCounters {
	return RelayCounters{
		Connections: h.connections.Load(),
		Forwarded:   h.forwarded.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// ProbeAll はすべての接続に生存確認のpingを送ります
// 戻り値: 送信に失敗した接続の数
func (h *WebSocketHandler) ProbeAll() int {
	failed := 0
	for _, c := range h.snapshot() {
		if err := c.probe(); err != nil {
			failed++
			h.log.Debug("ping failed", "clientId", c.id, "err", err)
		}
	}
	return failed
}

// CloseAll はサーバー停止時にすべての接続を閉じます
// 各接続の受信ループが終了し、ルームからの解除はそこで行われます
func (h *WebSocketHandler) CloseAll() {
	clients := h.snapshot()
	for _, c := range clients {
		c.shutdown()
	}
	h.log.Info("closed all websocket connections", "count", len(clients))
}
