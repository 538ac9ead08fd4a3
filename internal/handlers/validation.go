package handlers

import (
	"fmt"

	"github.com/SteamVC/pairing-relay/internal/idgen"
)

// validateRoomCode はルームコードのバリデーションを行います
// 正規化済みのコードを受け取ります
func validateRoomCode(code string) error {
	if code == "" {
		return fmt.Errorf("roomCode required")
	}
	if !idgen.ValidRoomCode(code) {
		return fmt.Errorf("invalid roomCode")
	}
	return nil
}
