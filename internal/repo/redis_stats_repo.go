package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStatsRepo は集計値をRedisに保存します
// ルーム自体は保存しません（プロセス内のみ）
type RedisStatsRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatsRepo(rdb *redis.Client, ttl time.Duration) *RedisStatsRepo {
	return &RedisStatsRepo{rdb: rdb, ttl: ttl}
}

func statsKey(instanceID string) string {
	return fmt.Sprintf("relay:stats:%s", instanceID)
}

// SaveStats は最新の集計値を上書きし、TTLを延長します
// インスタンスが止まればキーは期限切れで消えます
func (rr *RedisStatsRepo) SaveStats(ctx context.Context, s StatsSnapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return rr.rdb.Set(ctx, statsKey(s.InstanceID), b, rr.ttl).Err()
}

// GetStats は保存済みの集計値を返します。期限切れ・未保存の場合はfalse
func (rr *RedisStatsRepo) GetStats(ctx context.Context, instanceID string) (StatsSnapshot, bool, error) {
	val, err := rr.rdb.Get(ctx, statsKey(instanceID)).Bytes()
	if err == redis.Nil { // データがない
		return StatsSnapshot{}, false, nil
	}
	if err != nil {
		return StatsSnapshot{}, false, err
	}
	var s StatsSnapshot
	if err := json.Unmarshal(val, &s); err != nil {
		return StatsSnapshot{}, false, err
	}
	return s, true, nil
}
