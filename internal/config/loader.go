package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/group-availability/internal/cache"
	"github.com/example/group-availability/internal/logging"
)

// Config captures environment driven configuration values for the availability service.
type Config struct {
	HTTPPort int
	// SQLiteDSN is the database file path, or ":memory:".
	SQLiteDSN       string
	LogLevel        slog.Level
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTL        time.Duration
	MaxParticipants int
	ShutdownTimeout time.Duration
}

// UseRedis reports whether a Redis address was configured.
func (c Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// Load reads optional dotenv files into the process environment and then
// parses it. Variables already set in the environment win over file entries.
// Missing files are skipped; with no arguments ".env" is tried.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("環境ファイルを読み込めません: %s: %w", file, err)
		}
	}
	return FromEnv()
}

// FromEnv parses configuration values from the current process environment.
//
// Every field is optional. Invalid values are collected and reported together.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "availability.db",
		LogLevel:        slog.LevelInfo,
		CacheTTL:        cache.DefaultTTL,
		ShutdownTimeout: 10 * time.Second,
	}

	invalid := make([]string, 0, 2)

	if portValue := lookup("AVAILABILITY_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "AVAILABILITY_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := lookup("AVAILABILITY_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if levelValue := lookup("AVAILABILITY_LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "AVAILABILITY_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	cfg.RedisAddr = lookup("AVAILABILITY_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("AVAILABILITY_REDIS_PASSWORD")

	if dbValue := lookup("AVAILABILITY_REDIS_DB"); dbValue != "" {
		db, err := strconv.Atoi(dbValue)
		if err != nil || db < 0 {
			invalid = append(invalid, "AVAILABILITY_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	if ttlValue := lookup("AVAILABILITY_CACHE_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "AVAILABILITY_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if maxValue := lookup("AVAILABILITY_MAX_PARTICIPANTS"); maxValue != "" {
		limit, err := strconv.Atoi(maxValue)
		if err != nil || limit < 0 {
			invalid = append(invalid, "AVAILABILITY_MAX_PARTICIPANTS")
		} else {
			cfg.MaxParticipants = limit
		}
	}

	if timeoutValue := lookup("AVAILABILITY_SHUTDOWN_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "AVAILABILITY_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
