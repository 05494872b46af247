package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	AdminRole     string
	DatabaseURL   string
	SeedFile      string
	Log           LogConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Correlation   CorrelationConfig
	Refresh       RefreshConfig
}

// LogConfig selects the slog level and an optional rotating log file.
type LogConfig struct {
	Level string
	File  string
}

// RedisConfig configures the result cache connection. An empty URL disables
// the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig configures the summary feed. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	SummaryTopic string
}

// CorrelationConfig tunes the fuzzy matcher.
type CorrelationConfig struct {
	WindowBuffer    time.Duration
	DefaultDuration time.Duration
}

// RefreshConfig configures the LISTEN/NOTIFY cache invalidation worker.
type RefreshConfig struct {
	Channel  string
	Debounce time.Duration
}

// Load reads an optional .env file and then builds the config from the
// environment. Variables already set in the environment take precedence over
// the file.
func Load(envFiles ...string) (Server, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Server{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:          getEnv("PROCTOR_ADDR", ":8080"),
		JWTSigningKey: jwtSigningKey,
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SeedFile:      os.Getenv("SEED_FILE"),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			SummaryTopic: getEnv("KAFKA_SUMMARY_TOPIC", "proctor.session-summaries"),
		},
		Refresh: RefreshConfig{
			Channel: getEnv("NOTIFY_CHANNEL", "violations_changed"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	var err error
	if cfg.Redis.PoolSize, err = getEnvInt("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = getEnvInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"REDIS_DIAL_TIMEOUT", 5 * time.Second, &cfg.Redis.DialTimeout},
		{"REDIS_READ_TIMEOUT", 3 * time.Second, &cfg.Redis.ReadTimeout},
		{"REDIS_WRITE_TIMEOUT", 3 * time.Second, &cfg.Redis.WriteTimeout},
		{"CACHE_TTL", 30 * time.Second, &cfg.Redis.CacheTTL},
		{"CORRELATION_WINDOW_BUFFER", 15 * time.Minute, &cfg.Correlation.WindowBuffer},
		{"CORRELATION_DEFAULT_DURATION", 2 * time.Hour, &cfg.Correlation.DefaultDuration},
		{"NOTIFY_DEBOUNCE", time.Second, &cfg.Refresh.Debounce},
	}
	for _, d := range durations {
		if *d.dest, err = getEnvDuration(d.key, d.def); err != nil {
			return Server{}, err
		}
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
