// Package config はアプリケーションの設定を管理します
// 環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort                = "8080"           // HTTP/WebSocketのリッスンポート
	defaultEnvironment         = "development"    // デプロイ環境のタグ
	defaultRoomTTL             = 24 * time.Hour   // ルームの有効期限
	defaultMaintenanceInterval = 30 * time.Second // ping送信・期限切れ掃除の間隔
	defaultStatsLogEvery       = 10               // 何回に1回集計値を出力するか
	defaultMaxMessagesPerSec   = 50               // 接続ごとの受信メッセージ上限
	defaultStatsTTL            = 5 * time.Minute  // Redisに書いた集計値のTTL
	defaultShutdownTimeout     = 10 * time.Second
	defaultLogLevel            = "info"
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// Config はアプリケーションの設定を保持します
type Config struct {
	Port                string        // リッスンポート
	AllowedOrigins      []string      // CORS / WebSocket で許可するオリジン一覧
	Environment         string        // デプロイ環境のタグ
	RoomTTL             time.Duration // ルームの有効期限
	MaintenanceInterval time.Duration // 定期メンテナンスの間隔
	StatsLogEvery       int           // 集計値を出力する間隔（メンテナンス回数）
	MaxMessagesPerSec   int           // 接続ごとの受信レート上限
	RedisAddr           string        // 集計値の書き出し先（空なら無効）
	StatsTTL            time.Duration // 書き出した集計値のTTL
	ShutdownTimeout     time.Duration // Graceful Shutdownの待ち時間
	LogLevel            slog.Level    // ログレベル
}

// Addr は http.Server に渡すリッスンアドレスを返します
func (c Config) Addr() string {
	return ":" + c.Port
}

// RedisEnabled は集計値の書き出し先が設定されているかを返します
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load は環境変数から設定を読み込みます
// 環境変数が設定されていない場合はデフォルト値を使用します
func Load() Config {
	return Config{
		Port:                envOr("PORT", defaultPort),
		AllowedOrigins:      envCSV("ALLOWED_ORIGINS", defaultAllowedOrigins),
		Environment:         envOr("ENVIRONMENT", defaultEnvironment),
		RoomTTL:             envDuration("ROOM_TTL", defaultRoomTTL),
		MaintenanceInterval: envDuration("MAINTENANCE_INTERVAL", defaultMaintenanceInterval),
		StatsLogEvery:       envInt("STATS_LOG_EVERY", defaultStatsLogEvery),
		MaxMessagesPerSec:   envInt("SIGNALING_MAX_MESSAGES_PER_SEC", defaultMaxMessagesPerSec),
		RedisAddr:           envOr("REDIS_ADDR", ""),
		StatsTTL:            envDuration("STATS_TTL", defaultStatsTTL),
		ShutdownTimeout:     envDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		LogLevel:            envLevel("LOG_LEVEL", defaultLogLevel),
	}
}

// envOr は環境変数から文字列を取得します
// 環境変数が設定されていない場合はデフォルト値を返します
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt は環境変数から正の整数を取得します
// 環境変数が設定されていない、または無効な値の場合はデフォルト値を返します
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i <= 0 {
			slog.Warn("invalid integer env, fallback to default", "key", key, "value", v, "default", def)
			return def
		}
		return i
	}
	return def
}

// envDuration は "30s" や "24h" 形式の時間を取得します
func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			slog.Warn("invalid duration env, fallback to default", "key", key, "value", v, "default", def)
			return def
		}
		return d
	}
	return def
}

// envCSV は環境変数からカンマ区切りの文字列リストを取得します
// 環境変数が設定されていない、または空の場合はデフォルト値を返します
func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func envLevel(key, def string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(envOr(key, def))); err != nil {
		slog.Warn("invalid log level, fallback to info", "key", key, "err", err)
		return slog.LevelInfo
	}
	return lvl
}
