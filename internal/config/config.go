package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health endpoint

	// DB
	Env            string // "dev" | "prod"
	DBPath         string // e.g. "./data/gatehouse.db"
	DBMaxOpenConns int
	SeedDev        bool

	// Calendar days and hours are computed in this zone.
	Location *time.Location

	ScanTimeout time.Duration

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string

	// Report cache (disabled when RedisAddr is empty)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration

	// Access event notifications (disabled when AMQPURL is empty)
	AMQPURL   string
	AMQPQueue string

	// Heartbeat retention
	HeartbeatRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)
}

// LoadDotEnv loads variables from path into the process environment without
// overriding values that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func FromEnv() (Config, error) {
	addr := getenvDefault("GATEHOUSE_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("GATEHOUSE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	tzName := getenvDefault("GATEHOUSE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("GATEHOUSE_TIMEZONE %q: %w", tzName, err)
	}

	seedDefault := env == "dev"
	seed := getenvBool("GATEHOUSE_SEED_DEV", seedDefault)

	return Config{
		HTTPAddr: addr,
		GRPCAddr: strings.TrimSpace(os.Getenv("GATEHOUSE_GRPC_ADDR")),

		Env:            env,
		DBPath:         getenvDefault("GATEHOUSE_DB_PATH", "./data/gatehouse.db"),
		DBMaxOpenConns: getenvInt("GATEHOUSE_DB_MAX_OPEN_CONNS", 4),
		SeedDev:        seed,

		Location:    loc,
		ScanTimeout: getenvDuration("GATEHOUSE_SCAN_TIMEOUT", 3*time.Second),

		LogLevel:  strings.ToLower(getenvDefault("GATEHOUSE_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenvDefault("GATEHOUSE_LOG_FORMAT", "json")),

		CORSAllowedOrigins: splitCSV(os.Getenv("GATEHOUSE_CORS_ALLOWED_ORIGINS")),

		RedisAddr:      strings.TrimSpace(os.Getenv("GATEHOUSE_REDIS_ADDR")),
		RedisPassword:  os.Getenv("GATEHOUSE_REDIS_PASSWORD"),
		RedisDB:        getenvInt("GATEHOUSE_REDIS_DB", 0),
		ReportCacheTTL: getenvDuration("GATEHOUSE_REPORT_CACHE_TTL", 30*time.Second),

		AMQPURL:   strings.TrimSpace(os.Getenv("GATEHOUSE_AMQP_URL")),
		AMQPQueue: getenvDefault("GATEHOUSE_AMQP_QUEUE", "access.events"),

		HeartbeatRetentionDays: getenvInt("GATEHOUSE_HEARTBEAT_RETENTION_DAYS", 30),
		PruneIntervalHours:     getenvInt("GATEHOUSE_PRUNE_INTERVAL_HOURS", 6),
	}, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
