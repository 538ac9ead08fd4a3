package service

import "errors"

// カスタムエラー定義
var (
	ErrRoomNotFound             = errors.New("room not found")
	ErrRoomExpired              = errors.New("room expired")
	ErrRoleOccupied             = errors.New("role already occupied")
	ErrInvalidRole              = errors.New("invalid role")
	ErrRoomCodeGenerationFailed = errors.New("failed to generate unique room code after multiple attempts")
)
