package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Supported store drivers
const (
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port int

	DatabaseDriver    string
	DatabaseURL       string
	DatabaseAuthToken string
	AutoMigrate       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	SessionTTL   time.Duration
	CookieSecure bool

	TelegramToken  string
	TelegramChatID int64
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // Load .env file if exists

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("DATABASE_DRIVER", DriverLibSQL)
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", 10*time.Second)
	v.SetDefault("SESSION_TTL", 2*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("TELEGRAM_CHAT_ID", 0)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabaseDriver:    v.GetString("DATABASE_DRIVER"),
		DatabaseURL:       firstNonEmpty(v.GetString("DATABASE_URL"), v.GetString("TURSO_DATABASE_URL")),
		DatabaseAuthToken: firstNonEmpty(v.GetString("DATABASE_AUTH_TOKEN"), v.GetString("TURSO_AUTH_TOKEN")),
		AutoMigrate:       v.GetBool("AUTO_MIGRATE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		LockTTL:           v.GetDuration("LOCK_TTL"),
		SessionTTL:        v.GetDuration("SESSION_TTL"),
		CookieSecure:      v.GetBool("COOKIE_SECURE"),
		TelegramToken:     v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID:    v.GetInt64("TELEGRAM_CHAT_ID"),
	}

	port, err := cast.ToIntE(v.Get("PORT"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %v", v.Get("PORT"))
	}
	cfg.Port = port

	switch cfg.DatabaseDriver {
	case DriverLibSQL, DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL (or TURSO_DATABASE_URL) must be set")
	}
	if cfg.LockTTL <= 0 {
		return Config{}, errors.New("LOCK_TTL must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, errors.New("SESSION_TTL must be positive")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
