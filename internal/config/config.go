// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// Database
	// 空の場合はインメモリストアで起動する（開発・テスト用）。
	DatabaseURL string

	// Music catalog (Spotify)
	// 未設定の場合、検索・楽曲取得はフォールバック応答に縮退する。
	SpotifyClientID     string
	SpotifyClientSecret string

	// Lyrics (Genius)
	// 未設定の場合、歌詞取得はサンプル歌詞に縮退する。
	GeniusAccessToken string

	// Rate Limit
	RateLimitWindow      time.Duration // 投稿レート制限の固定ウィンドウ幅
	RateLimitMaxRequests int           // ウィンドウあたりの最大投稿数
	GeneralRateLimit     int           // API全般のレート制限（req/min/クライアント）

	// Cache
	MomentCacheTTL time.Duration
	SearchCacheTTL time.Duration

	// Sweep
	CacheSweepInterval   time.Duration
	LimiterSweepInterval time.Duration

	// Upstream
	UpstreamTimeout time.Duration // 楽曲カタログAPIのタイムアウト
	LyricsTimeout   time.Duration // 歌詞検索のタイムアウト
	ArtworkTimeout  time.Duration // OGカード用アートワーク取得のタイムアウト
	ArtworkMaxSize  int64         // アートワークの最大取得サイズ（バイト）

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SpotifyClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.SpotifyClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	cfg.GeniusAccessToken = os.Getenv("GENIUS_ACCESS_TOKEN")
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second)
	cfg.RateLimitMaxRequests = getEnvInt("RATE_LIMIT_MAX_REQUESTS", 30)
	cfg.GeneralRateLimit = getEnvInt("GENERAL_RATE_LIMIT", 120)
	cfg.MomentCacheTTL = getEnvDuration("MOMENT_CACHE_TTL", 10*time.Minute)
	cfg.SearchCacheTTL = getEnvDuration("SEARCH_CACHE_TTL", 5*time.Minute)
	cfg.CacheSweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL", 1*time.Minute)
	cfg.LimiterSweepInterval = getEnvDuration("LIMITER_SWEEP_INTERVAL", 5*time.Minute)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 8*time.Second)
	cfg.LyricsTimeout = getEnvDuration("LYRICS_TIMEOUT", 15*time.Second)
	cfg.ArtworkTimeout = getEnvDuration("ARTWORK_TIMEOUT", 3*time.Second)
	cfg.ArtworkMaxSize = getEnvInt64("ARTWORK_MAX_SIZE", 524288)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
