package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DataDir          string // "./data", private storage root
	ContentDB        string // "content.db"
	ContentAuthority string // "com.binaryfs.provider"
	LogLevel         string // "info"
	LogJSON          bool   // true
	AsyncWorkers     int    // 4
	SweepEvery       time.Duration
	TmpMaxAge        time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("invalid %s: %q", key, v)
		return def
	}
	return n
}

func New() Config {
	cfg := Config{
		DataDir:          getenv("DATA_DIR", "./data"),
		ContentDB:        getenv("CONTENT_DB", "content.db"),
		ContentAuthority: getenv("CONTENT_AUTHORITY", "com.binaryfs.provider"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogJSON:          true,
		AsyncWorkers:     getint("ASYNC_WORKERS", 4),
		SweepEvery:       time.Duration(getint("SWEEP_EVERY_S", 900)) * time.Second,
		TmpMaxAge:        time.Duration(getint("TMP_MAX_AGE_S", 3600)) * time.Second,
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			cfg.LogJSON = true
		case "0", "false", "no":
			cfg.LogJSON = false
		default:
			log.Printf("invalid LOG_JSON: %q", v)
		}
	}
	if cfg.AsyncWorkers == 0 {
		cfg.AsyncWorkers = 1
	}
	return cfg
}
