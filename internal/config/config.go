// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストアのバックエンド種別
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// 削除ジョブのモード
const (
	PruneModeLog    = "log"
	PruneModeRemove = "remove"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Files
	LinksFile   string
	SourcesFile string

	// Store
	StoreBackend string
	StoreFile    string
	DatabaseURL  string
	LockTimeout  time.Duration

	// Probe
	ProbeTimeout      time.Duration
	ProbeMinBodyBytes int
	ProbeMaxBodyBytes int64
	ProbeSSRFGuard    bool
	ProbeAllowedPorts []int // 空の場合はポートを制限しない
	ProbeProxyURL     string
	ProbeRatePerSec   float64

	// Validate
	ValidateMaxConcurrent int

	// Worker
	WorkerInterval time.Duration
	PruneMode      string
	MetricsPort    string

	// Server
	ServerPort   string
	RateLimitAPI int

	// Logging
	LogFile string

	// Converter
	ConverterDir     string
	ConverterConfig  string // key=value形式の生成設定ファイル（ConverterDirからの相対パス）
	ConverterTimeout time.Duration
}

// Load は環境変数からConfigを読み込む。
// STORE_BACKEND=postgres でDATABASE_URLが未設定の場合や、列挙値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.LinksFile = getEnvString("LINKS_FILE", "links.txt")
	cfg.SourcesFile = getEnvString("SOURCES_FILE", "sources.yaml")

	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", StoreBackendFile))
	cfg.StoreFile = getEnvString("STORE_FILE", "subscriptions.json")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.LockTimeout = getEnvDuration("LOCK_TIMEOUT", 30*time.Second)

	cfg.ProbeTimeout = getEnvDuration("PROBE_TIMEOUT", 10*time.Second)
	cfg.ProbeMinBodyBytes = getEnvInt("PROBE_MIN_BODY_BYTES", 10)
	cfg.ProbeMaxBodyBytes = getEnvInt64("PROBE_MAX_BODY_BYTES", 5242880)
	cfg.ProbeSSRFGuard = getEnvBool("PROBE_SSRF_GUARD", true)
	cfg.ProbeAllowedPorts = getEnvPorts("PROBE_ALLOWED_PORTS")
	cfg.ProbeProxyURL = os.Getenv("PROBE_PROXY_URL")
	cfg.ProbeRatePerSec = getEnvFloat("PROBE_RATE_PER_SEC", 0)

	cfg.ValidateMaxConcurrent = getEnvInt("VALIDATE_MAX_CONCURRENT", 20)

	cfg.WorkerInterval = getEnvDuration("WORKER_INTERVAL", time.Hour)
	cfg.PruneMode = strings.ToLower(getEnvString("PRUNE_MODE", PruneModeLog))
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitAPI = getEnvInt("RATE_LIMIT_API", 120)

	// "-" はログファイルへの出力を無効にする
	cfg.LogFile = getEnvString("LOG_FILE", "sublink.log")
	if cfg.LogFile == "-" {
		cfg.LogFile = ""
	}

	cfg.ConverterDir = getEnvString("CONVERTER_DIR", "bin")
	cfg.ConverterConfig = getEnvString("CONVERTER_CONFIG", "generate.ini")
	cfg.ConverterTimeout = getEnvDuration("CONVERTER_TIMEOUT", 5*time.Minute)

	switch cfg.StoreBackend {
	case StoreBackendFile:
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q (expected file or postgres)", cfg.StoreBackend)
	}

	switch cfg.PruneMode {
	case PruneModeLog, PruneModeRemove:
	default:
		return nil, fmt.Errorf("invalid PRUNE_MODE: %q (expected log or remove)", cfg.PruneMode)
	}

	return cfg, nil
}

// MetricsEnabled はworkerモードでメトリクスサーバーを起動するかを返す。
func (c *Config) MetricsEnabled() bool {
	return c.MetricsPort != "" && c.MetricsPort != "0"
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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

// getEnvPorts はカンマ区切りのポート番号リストを読み込む。
// 未設定、または1つでも解析できない値があればnil（制限なし）を返す。
func getEnvPorts(key string) []int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var ports []int
	for _, f := range strings.Split(v, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || p < 1 || p > 65535 {
			return nil
		}
		ports = append(ports, p)
	}
	return ports
}
