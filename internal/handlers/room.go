package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SteamVC/pairing-relay/internal/idgen"
	"github.com/SteamVC/pairing-relay/internal/models"
	"github.com/SteamVC/pairing-relay/internal/service"
)

// RoomNotifier は削除されたルームの接続に通知する先
type RoomNotifier interface {
	NotifyRoomClosed(room models.Room)
}

// RoomHandler はルームの作成・状態確認・削除を扱います
type RoomHandler struct {
	reg      *service.RoomRegistry
	notifier RoomNotifier
	log      *slog.Logger
	now      func() time.Time
}

func NewRoomHandler(reg *service.RoomRegistry, notifier RoomNotifier, log *slog.Logger) *RoomHandler {
	return &RoomHandler{reg: reg, notifier: notifier, log: log, now: time.Now}
}

type createRoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type roomStatusResponse struct {
	RoomCode      string `json:"roomCode"`
	WebClient     string `json:"webClient"`     // "connected" | "waiting"
	AndroidClient string `json:"androidClient"` // "connected" | "waiting"
	Paired        bool   `json:"paired"`
	ExpiresIn     int64  `json:"expiresIn"` // 秒
}

func presence(connID string) string {
	if connID != "" {
		return "connected"
	}
	return "waiting"
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	room, err := h.reg.CreateRoom()
	if err != nil {
		h.log.Error("create room failed", "err", err)
		respondError(w, http.StatusInternalServerError, "Failed to create room")
		return
	}
	h.log.Info("room created", "roomCode", room.Code, "expiresAt", room.ExpiresAt)
	respondJSON(w, http.StatusOK, createRoomResponse{
		Success:  true,
		RoomCode: room.Code,
		Message:  "Room created successfully",
	})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := idgen.NormalizeRoomCode(chi.URLParam(r, "roomCode"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, ok := h.reg.GetRoomByCode(code)
	if !ok {
		respondError(w, http.StatusNotFound, "Room not found or expired")
		return
	}

	expiresIn := int64(room.ExpiresAt.Sub(h.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	respondJSON(w, http.StatusOK, roomStatusResponse{
		RoomCode:      room.Code,
		WebClient:     presence(room.WebClient),
		AndroidClient: presence(room.AndroidClient),
		Paired:        room.Paired(),
		ExpiresIn:     expiresIn,
	})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := idgen.NormalizeRoomCode(chi.URLParam(r, "roomCode"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, ok := h.reg.DeleteRoom(code)
	if !ok {
		respondError(w, http.StatusNotFound, "Room not found or expired")
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyRoomClosed(room)
	}
	h.log.Info("room deleted", "roomCode", room.Code)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Room deleted"})
}
