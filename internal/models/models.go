// Package models はアプリケーションで使用するデータ構造を定義します
package models

import "time"

// Role はルーム内でクライアントが担う役割を表します
type Role string

const (
	RoleWeb     Role = "web"     // 主クライアント（ブラウザ）
	RoleAndroid Role = "android" // 副クライアント（リモートマイク）
)

// Valid は既知の役割かどうかを返します
func (r Role) Valid() bool {
	return r == RoleWeb || r == RoleAndroid
}

// Room はペアリングの単位を表します
// WebClient / AndroidClient は接続IDで、未参加の場合は空文字です
type Room struct {
	Code          string    `json:"roomCode"`      // ルームコード（8文字）
	WebClient     string    `json:"webClient"`     // web役の接続ID
	AndroidClient string    `json:"androidClient"` // android役の接続ID
	CreatedAt     time.Time `json:"createdAt"`     // 作成日時
	ExpiresAt     time.Time `json:"expiresAt"`     // 有効期限
}

// Paired は両方の役割が埋まっているかを返します
// 保存はせず、常にバインディングから算出します
func (r Room) Paired() bool {
	return r.WebClient != "" && r.AndroidClient != ""
}

// Empty はどちらの役割も埋まっていないかを返します
func (r Room) Empty() bool {
	return r.WebClient == "" && r.AndroidClient == ""
}

// Expired は now 時点で有効期限を過ぎているかを返します
func (r Room) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Binding は role に紐づく接続IDを返します
func (r Room) Binding(role Role) string {
	switch role {
	case RoleWeb:
		return r.WebClient
	case RoleAndroid:
		return r.AndroidClient
	}
	return ""
}

// Stats はレジストリの集計値のスナップショットです
type Stats struct {
	TotalRooms      int `json:"totalRooms"`
	PairedRooms     int `json:"pairedRooms"`
	LiveConnections int `json:"liveConnections"`
}
