package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRepo(t *testing.T) (*RedisStatsRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStatsRepo(rdb, time.Minute), mr
}

func TestRedisStatsRepo_SaveAndGet(t *testing.T) {
	rr, mr := newTestRepo(t)
	ctx := context.Background()

	in := StatsSnapshot{
		InstanceID:      "inst-1",
		TotalRooms:      3,
		PairedRooms:     1,
		LiveConnections: 4,
		OpenSockets:     5,
		Forwarded:       42,
		Dropped:         2,
		SweptRooms:      1,
		RecordedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := rr.SaveStats(ctx, in); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}

	got, ok, err := rr.GetStats(ctx, "inst-1")
	if err != nil || !ok {
		t.Fatalf("GetStats: ok=%v err=%v", ok, err)
	}
	if !got.RecordedAt.Equal(in.RecordedAt) {
		t.Fatalf("recordedAt=%v, want %v", got.RecordedAt, in.RecordedAt)
	}
	got.RecordedAt = in.RecordedAt
	if got != in {
		t.Fatalf("GetStats=%+v, want %+v", got, in)
	}

	if ttl := mr.TTL(statsKey("inst-1")); ttl != time.Minute {
		t.Fatalf("ttl=%v, want %v", ttl, time.Minute)
	}
}

func TestRedisStatsRepo_MissingAndExpired(t *testing.T) {
	rr, mr := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := rr.GetStats(ctx, "nope"); ok || err != nil {
		t.Fatalf("GetStats(nope): ok=%v err=%v, want false/nil", ok, err)
	}

	if err := rr.SaveStats(ctx, StatsSnapshot{InstanceID: "inst-2"}); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, ok, err := rr.GetStats(ctx, "inst-2"); ok || err != nil {
		t.Fatalf("GetStats after ttl: ok=%v err=%v, want false/nil", ok, err)
	}
}
