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
	// Database
	DatabaseURL string

	// Catalog Provider (IGDB)
	IGDBClientID     string
	IGDBClientSecret string
	IGDBAccessToken  string // 省略可。起動時のシードトークン
	IGDBEndpoint     string
	IGDBTokenURL     string
	UpstreamTimeout  time.Duration
	DetailTimeout    time.Duration

	// Alternate image source (Steam)
	SteamAppsURL string

	// Auth（外部IDプロバイダ）
	AuthProjectID string
	AuthCertsURL  string

	// Rate Limit
	RateLimitGeneral  int
	RateLimitMutation int

	// Discovery / Cache
	HistoryLimit  int
	HistoryTTL    time.Duration
	CoverCacheTTL time.Duration
	GameCacheTTL  time.Duration
	RecoPoolTTL   time.Duration
	RecoOrderTTL  time.Duration

	// Background jobs
	TokenRefreshInterval time.Duration
	KeepAliveInterval    time.Duration

	// Server
	ServerPort string
	PublicURL  string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IGDBClientID = os.Getenv("IGDB_CLIENT_ID")
	if cfg.IGDBClientID == "" {
		missing = append(missing, "IGDB_CLIENT_ID")
	}

	cfg.IGDBClientSecret = os.Getenv("IGDB_CLIENT_SECRET")
	if cfg.IGDBClientSecret == "" {
		missing = append(missing, "IGDB_CLIENT_SECRET")
	}

	cfg.AuthProjectID = os.Getenv("AUTH_PROJECT_ID")
	if cfg.AuthProjectID == "" {
		missing = append(missing, "AUTH_PROJECT_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.IGDBAccessToken = os.Getenv("IGDB_ACCESS_TOKEN")
	cfg.IGDBEndpoint = getEnvString("IGDB_ENDPOINT", "https://api.igdb.com/v4/games")
	cfg.IGDBTokenURL = getEnvString("IGDB_TOKEN_URL", "https://id.twitch.tv/oauth2/token")
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.DetailTimeout = getEnvDuration("DETAIL_TIMEOUT", 15*time.Second)
	cfg.SteamAppsURL = getEnvString("STEAM_APPS_URL", "https://api.steampowered.com/ISteamApps/GetAppList/v2/")
	cfg.AuthCertsURL = getEnvString("AUTH_CERTS_URL", "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMutation = getEnvInt("RATE_LIMIT_MUTATION", 30)
	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 200)
	cfg.HistoryTTL = getEnvDuration("HISTORY_TTL", 7*24*time.Hour)
	cfg.CoverCacheTTL = getEnvDuration("COVER_CACHE_TTL", 24*time.Hour)
	cfg.GameCacheTTL = getEnvDuration("GAME_CACHE_TTL", time.Hour)
	cfg.RecoPoolTTL = getEnvDuration("RECO_POOL_TTL", 10*time.Minute)
	cfg.RecoOrderTTL = getEnvDuration("RECO_ORDER_TTL", 5*time.Minute)
	cfg.TokenRefreshInterval = getEnvDuration("TOKEN_REFRESH_INTERVAL", 24*time.Hour)
	cfg.KeepAliveInterval = getEnvDuration("KEEPALIVE_INTERVAL", 10*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.PublicURL = getEnvString("PUBLIC_URL", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

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
