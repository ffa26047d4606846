package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MEDU_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MEDU_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DataDir returns the directory for the ledger's store files.
// Defaults to "data" if not set.
func DataDir() string {
	dir := os.Getenv("DATA_DIR")
	if dir == "" {
		return "data"
	}
	return dir
}

// SyncWrites reports whether every commit must reach disk before returning.
// Defaults to true; set SYNC_WRITES=false only when durability doesn't matter.
func SyncWrites() bool {
	v, err := strconv.ParseBool(os.Getenv("SYNC_WRITES"))
	if err != nil {
		return true
	}
	return v
}

// GCInterval returns how often store value-log garbage collection runs.
// Defaults to 5 minutes; 0 disables it.
func GCInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("GC_INTERVAL"))
	if err != nil || d < 0 {
		return 5 * time.Minute
	}
	return d
}

// ExplainMaxDepth returns how deep an explanation tree may recurse.
// Defaults to 16 if not set.
func ExplainMaxDepth() int {
	depth, err := strconv.Atoi(os.Getenv("EXPLAIN_MAX_DEPTH"))
	if err != nil || depth <= 0 {
		return 16
	}
	return depth
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
