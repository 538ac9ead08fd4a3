package repo

import (
	"context"
	"time"
)

// StatsSnapshot は定期メンテナンスで記録する集計値です
type StatsSnapshot struct {
	InstanceID      string    `json:"instanceId"`
	TotalRooms      int       `json:"totalRooms"`
	PairedRooms     int       `json:"pairedRooms"`
	LiveConnections int       `json:"liveConnections"`
	OpenSockets     int64     `json:"openSockets"`
	Forwarded       uint64    `json:"forwarded"`
	Dropped         uint64    `json:"dropped"`
	SweptRooms      int       `json:"sweptRooms"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// StatsRepo は集計値の書き出し先のインターフェース
type StatsRepo interface {
	SaveStats(ctx context.Context, s StatsSnapshot) error
}
