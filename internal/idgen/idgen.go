package idgen

import (
	"crypto/rand"
	"strings"
)

// RoomCodeLength はルームコードの文字数
const RoomCodeLength = 8

// roomCodeChars は読み間違えやすい 0/O/1/I を除いた32文字
// 256 は 32 で割り切れるため剰余による偏りは出ません
const roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewRoomCode は大文字英数字8文字のルームコードを生成します
func NewRoomCode() (string, error) {
	b := make([]byte, RoomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = roomCodeChars[b[i]%byte(len(roomCodeChars))]
	}
	return string(b), nil
}

// NormalizeRoomCode は入力されたコードを大文字化して前後の空白を除きます
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode はコードの形式（長さと文字種）を検証します
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(roomCodeChars, code[i]) < 0 {
			return false
		}
	}
	return true
}
