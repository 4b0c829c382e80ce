package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings are the process-level knobs, read from the environment. Flags
// take precedence; the command layer overwrites whatever it parsed.
type Settings struct {
	LogLevel       string
	LogConsole     bool
	MetricsAddr    string
	MetricsPath    string
	RedisAddr      string
	TileTimeout    time.Duration
	TileCacheSize  int
	OutputOverride string
}

func FromEnv() Settings {
	return Settings{
		LogLevel:       getenv("GEODRAFT_LOG_LEVEL", "info"),
		LogConsole:     getbool("GEODRAFT_LOG_CONSOLE", false),
		MetricsAddr:    getenv("GEODRAFT_METRICS_ADDR", ""),
		MetricsPath:    getenv("GEODRAFT_METRICS_PATH", "/metrics"),
		RedisAddr:      getenv("GEODRAFT_REDIS_ADDR", ""),
		TileTimeout:    getduration("GEODRAFT_TILE_TIMEOUT", 30*time.Second),
		TileCacheSize:  getint("GEODRAFT_TILE_CACHE_SIZE", 512),
		OutputOverride: getenv("GEODRAFT_OUTPUT", ""),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
