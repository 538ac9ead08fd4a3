package handlers

import (
	"encoding/json"
	"errors"
)

// MessageType はシグナリングで扱うメッセージの種類
type MessageType string

const (
	TypeJoin         MessageType = "join"
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
	TypeStatus       MessageType = "status"
	TypeError        MessageType = "error"
)

// negotiation は相手にそのまま転送する種類かを返します
func (t MessageType) negotiation() bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeICECandidate
}

// Message はWebSocketで送受信するメッセージの構造
// Payload は offer / answer / ice-candidate の中身で、サーバーは解釈しません
type Message struct {
	Type         MessageType     `json:"type"`
	RoomCode     string          `json:"roomCode,omitempty"`
	DeviceType   string          `json:"deviceType,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	FromClientID string          `json:"fromClientId,omitempty"`
	ClientID     string          `json:"clientId,omitempty"`
	Paired       *bool           `json:"paired,omitempty"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
}

var errMalformedMessage = errors.New("malformed message")

// parseMessage は受信したフレームをデコードします
func parseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, errors.Join(errMalformedMessage, err)
	}
	if msg.Type == "" {
		return Message{}, errMalformedMessage
	}
	return msg, nil
}

func errorMessage(text string) *Message {
	return &Message{Type: TypeError, Error: text}
}

func boolPtr(b bool) *bool { return &b }
