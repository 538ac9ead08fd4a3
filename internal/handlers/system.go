package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/SteamVC/pairing-relay/internal/models"
	"github.com/SteamVC/pairing-relay/internal/service"
)

// ServerInfo はサーバーの識別情報
type ServerInfo struct {
	Name        string
	Version     string
	InstanceID  string
	Environment string
	StartedAt   time.Time
}

// SystemHandler はヘルスチェックと統計情報を返します
type SystemHandler struct {
	info ServerInfo
	reg  *service.RoomRegistry
	ws   *WebSocketHandler
	now  func() time.Time
}

func NewSystemHandler(info ServerInfo, reg *service.RoomRegistry, ws *WebSocketHandler) *SystemHandler {
	return &SystemHandler{info: info, reg: reg, ws: ws, now: time.Now}
}

type memoryStats struct {
	AllocMB float64 `json:"allocMB"`
	SysMB   float64 `json:"sysMB"`
	NumGC   uint32  `json:"numGC"`
}

type statsResponse struct {
	Server      string        `json:"server"`
	Version     string        `json:"version"`
	InstanceID  string        `json:"instanceId"`
	Environment string        `json:"environment"`
	Uptime      float64       `json:"uptime"` // 秒
	Memory      memoryStats   `json:"memory"`
	Goroutines  int           `json:"goroutines"`
	Rooms       models.Stats  `json:"rooms"`
	Relay       RelayCounters `json:"relay"`
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	const mb = 1024 * 1024
	resp := statsResponse{
		Server:      h.info.Name,
		Version:     h.info.Version,
		InstanceID:  h.info.InstanceID,
		Environment: h.info.Environment,
		Uptime:      h.now().Sub(h.info.StartedAt).Seconds(),
		Memory: memoryStats{
			AllocMB: float64(ms.Alloc) / mb,
			SysMB:   float64(ms.Sys) / mb,
			NumGC:   ms.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
		Rooms:      h.reg.Stats(),
	}
	if h.ws != nil {
		resp.Relay = h.ws.Counters()
	}
	respondJSON(w, http.StatusOK, resp)
}
