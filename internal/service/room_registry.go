// Package service はビジネスロジックを担当します
// ルームの作成・参加・退出・期限切れ処理を提供します
package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/SteamVC/pairing-relay/internal/idgen"
	"github.com/SteamVC/pairing-relay/internal/models"
)

// DefaultRoomTTL はルームの有効期限（24時間）
const DefaultRoomTTL = 24 * time.Hour

// IDGenerator はユニークなIDを生成するインターフェース
type IDGenerator interface {
	New() (string, error) // 新しいIDを生成
}

// roomCodeGen はIDGeneratorの実装
type roomCodeGen struct{}

// New は新しいルームコードを生成します
func (roomCodeGen) New() (string, error) { return idgen.NewRoomCode() }

// NewRoomCodeGenerator は新しいルームコード生成器を作成します
func NewRoomCodeGenerator() IDGenerator {
	return roomCodeGen{}
}

// RoomRegistry はルームコードとルーム、接続IDとルームコードの対応を保持します
// 2つのマップは1つのmutexで保護し、常に同時に更新します
type RoomRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*models.Room // ルームコード -> ルーム
	byConn map[string]string       // 接続ID -> ルームコード

	idg IDGenerator
	ttl time.Duration
	now func() time.Time
}

// Option は RoomRegistry の設定を変更します
type Option func(*RoomRegistry)

// WithClock は現在時刻の取得関数を差し替えます（テスト用）
func WithClock(now func() time.Time) Option {
	return func(r *RoomRegistry) { r.now = now }
}

// WithIDGenerator はルームコード生成器を差し替えます
func WithIDGenerator(idg IDGenerator) Option {
	return func(r *RoomRegistry) { r.idg = idg }
}

// NewRoomRegistry は新しいRoomRegistryを作成します
// ttl が0以下の場合は DefaultRoomTTL を使います
func NewRoomRegistry(ttl time.Duration, opts ...Option) *RoomRegistry {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	r := &RoomRegistry{
		rooms:  make(map[string]*models.Room),
		byConn: make(map[string]string),
		idg:    NewRoomCodeGenerator(),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom は新しいルームを作成します
// コードが既存のルームと重複した場合は最大10回まで再生成します
func (r *RoomRegistry) CreateRoom() (models.Room, error) {
	const maxRetries = 10

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxRetries; i++ {
		code, err := r.idg.New()
		if err != nil {
			return models.Room{}, fmt.Errorf("generate room code: %w", err)
		}
		code = idgen.NormalizeRoomCode(code)
		if _, exists := r.rooms[code]; exists {
			continue
		}

		now := r.now()
		room := &models.Room{
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(r.ttl),
		}
		r.rooms[code] = room
		return *room, nil
	}
	return models.Room{}, ErrRoomCodeGenerationFailed
}

// Registration は RegisterClient の結果です
type Registration struct {
	Room        models.Room  // 登録後のルーム
	NewlyPaired bool         // この呼び出しでペアが成立したか
	Released    *models.Room // 別のルームから外れた場合、外れた後のそのルーム
}

// RegisterClient は接続を指定の役割でルームに紐づけます
// 同じ接続IDで同じ役割への再参加は冪等です
func (r *RoomRegistry) RegisterClient(code, connID string, role models.Role) (Registration, error) {
	if !role.Valid() {
		return Registration{}, ErrInvalidRole
	}
	code = idgen.NormalizeRoomCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return Registration{}, ErrRoomNotFound
	}
	if room.Expired(r.now()) {
		r.deleteLocked(room)
		return Registration{}, ErrRoomExpired
	}

	current := room.Binding(role)
	if current == connID {
		return Registration{Room: *room}, nil
	}
	if current != "" {
		return Registration{}, ErrRoleOccupied
	}

	// 別のルームや別の役割に紐づいていた場合は先に外す
	// 同じルームの別の役割から外れて空になった場合も、このルームは残す
	var released *models.Room
	if prev, bound := r.byConn[connID]; bound {
		old, _ := r.removeLocked(connID)
		r.rooms[code] = room
		if prev != code {
			released = &old
		}
	}

	wasPaired := room.Paired()
	switch role {
	case models.RoleWeb:
		room.WebClient = connID
	case models.RoleAndroid:
		room.AndroidClient = connID
	}
	r.byConn[connID] = code

	return Registration{
		Room:        *room,
		NewlyPaired: !wasPaired && room.Paired(),
		Released:    released,
	}, nil
}

// GetRoomByCode はコードからルームを取得します
// 期限切れの場合は削除して見つからなかった扱いにします
func (r *RoomRegistry) GetRoomByCode(code string) (models.Room, bool) {
	code = idgen.NormalizeRoomCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.liveLocked(code)
	if !ok {
		return models.Room{}, false
	}
	return *room, true
}

// GetRoomForConnection は接続IDから所属ルームを取得します
func (r *RoomRegistry) GetRoomForConnection(connID string) (models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byConn[connID]
	if !ok {
		return models.Room{}, false
	}
	room, ok := r.liveLocked(code)
	if !ok {
		return models.Room{}, false
	}
	return *room, true
}

// GetPeerConnection は同じルームのもう一方の役割の接続IDを返します
func (r *RoomRegistry) GetPeerConnection(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	room, ok := r.liveLocked(code)
	if !ok {
		return "", false
	}

	var peer string
	switch connID {
	case room.WebClient:
		peer = room.AndroidClient
	case room.AndroidClient:
		peer = room.WebClient
	}
	return peer, peer != ""
}

// RemoveConnection は接続の紐づけを解除します
// 両方の役割が空になったルームは削除します
// 戻り値: 解除後のルームの状態、接続がどこかに紐づいていたか
func (r *RoomRegistry) RemoveConnection(connID string) (models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(connID)
}

// DeleteRoom はルームを明示的に削除します
// 戻り値: 削除したルーム（紐づいていた接続の通知用）、存在したか
func (r *RoomRegistry) DeleteRoom(code string) (models.Room, bool) {
	code = idgen.NormalizeRoomCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return models.Room{}, false
	}
	r.deleteLocked(room)
	return *room, true
}

// SweepExpired は期限切れのルームをすべて削除し、削除した数を返します
func (r *RoomRegistry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for _, room := range r.rooms {
		if room.Expired(now) {
			r.deleteLocked(room)
			removed++
		}
	}
	return removed
}

// Stats は現在の集計値を返します
func (r *RoomRegistry) Stats() models.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := models.Stats{
		TotalRooms:      len(r.rooms),
		LiveConnections: len(r.byConn),
	}
	for _, room := range r.rooms {
		if room.Paired() {
			s.PairedRooms++
		}
	}
	return s
}

// liveLocked は期限切れを遅延削除したうえでルームを返します
func (r *RoomRegistry) liveLocked(code string) (*models.Room, bool) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, false
	}
	if room.Expired(r.now()) {
		r.deleteLocked(room)
		return nil, false
	}
	return room, true
}

func (r *RoomRegistry) removeLocked(connID string) (models.Room, bool) {
	code, ok := r.byConn[connID]
	delete(r.byConn, connID)
	if !ok {
		return models.Room{}, false
	}

	room, ok := r.rooms[code]
	if !ok {
		return models.Room{}, false
	}
	switch connID {
	case room.WebClient:
		room.WebClient = ""
	case room.AndroidClient:
		room.AndroidClient = ""
	}
	if room.Empty() {
		delete(r.rooms, code)
	}
	return *room, true
}

// deleteLocked はルームと、そのルームを指す逆引きをまとめて削除します
func (r *RoomRegistry) deleteLocked(room *models.Room) {
	for _, connID := range []string{room.WebClient, room.AndroidClient} {
		if connID != "" && r.byConn[connID] == room.Code {
			delete(r.byConn, connID)
		}
	}
	delete(r.rooms, room.Code)
}
