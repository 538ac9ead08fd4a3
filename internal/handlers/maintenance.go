package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/SteamVC/pairing-relay/internal/repo"
	"github.com/SteamVC/pairing-relay/internal/service"
)

// Maintenance は一定間隔で生存確認・期限切れルームの掃除・集計値の出力を行います
type Maintenance struct {
	ws         *WebSocketHandler
	reg        *service.RoomRegistry
	log        *slog.Logger
	interval   time.Duration
	statsEvery int
	sink       repo.StatsRepo // nil なら書き出さない
	instanceID string
	now        func() time.Time

	ticks int
}

// NewMaintenance は新しいMaintenanceを作成します
func NewMaintenance(ws *WebSocketHandler, reg *service.RoomRegistry, log *slog.Logger, interval time.Duration, statsEvery int, sink repo.StatsRepo, instanceID string) *Maintenance {
	if statsEvery <= 0 {
		statsEvery = 1
	}
	return &Maintenance{
		ws:         ws,
		reg:        reg,
		log:        log,
		interval:   interval,
		statsEvery: statsEvery,
		sink:       sink,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// Run は ctx がキャンセルされるまで定期処理を繰り返します
func (m *Maintenance) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("maintenance stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick は1回分の定期処理を行い、掃除したルーム数を返します
func (m *Maintenance) Tick(ctx context.Context) int {
	m.ticks++

	failed := m.ws.ProbeAll()
	swept := m.reg.SweepExpired()
	if swept > 0 {
		m.log.Info("expired rooms removed", "count", swept)
	}

	// ログが多くなりすぎないよう statsEvery 回に1回だけ出力する
	if m.ticks%m.statsEvery != 0 {
		return swept
	}

	stats := m.reg.Stats()
	counters := m.ws.Counters()
	m.log.Info("relay stats",
		"totalRooms", stats.TotalRooms,
		"pairedRooms", stats.PairedRooms,
		"liveConnections", stats.LiveConnections,
		"openSockets", counters.Connections,
		"forwarded", counters.Forwarded,
		"dropped", counters.Dropped,
		"pingFailures", failed,
	)

	if m.sink == nil {
		return swept
	}
	snap := repo.StatsSnapshot{
		InstanceID:      m.instanceID,
		TotalRooms:      stats.TotalRooms,
		PairedRooms:     stats.PairedRooms,
		LiveConnections: stats.LiveConnections,
		OpenSockets:     counters.Connections,
		Forwarded:       counters.Forwarded,
		Dropped:         counters.Dropped,
		SweptRooms:      swept,
		RecordedAt:      m.now().UTC(),
	}
	sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.sink.SaveStats(sctx, snap); err != nil {
		m.log.Warn("failed to save stats", "err", err)
	}
	return swept
}
