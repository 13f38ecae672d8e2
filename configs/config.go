package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// Enabled reports whether subtitle archiving to R2 is configured.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != ""
}

type OpenSubtitles struct {
	APIKey   string
	Username string
	Password string
	BaseURL  string
	AppName  string
	Language string
}

type MTProto struct {
	AppID       int
	AppHash     string
	SessionFile string
}

// Enabled reports whether the user-account client used by mirror runs is configured.
func (m MTProto) Enabled() bool {
	return m.AppID != 0 && m.AppHash != "" && m.SessionFile != ""
}

type Publish struct {
	ItemDelay   time.Duration
	MaxAttempts int
}

type Mirror struct {
	PhotoPause  time.Duration
	BlockPause  time.Duration
	MaxAttempts int
}

type Config struct {
	BotToken          string
	ChannelID         int64
	AdminUserID       int64
	OperatorChatID    int64
	ReplacementHandle string
	Timezone          string
	PostgresURI       string
	RedisURI          string
	HTTPAddr          string
	WebhookURL        string
	WebhookSecret     string
	AdminAPIKey       string
	TempDir           string
	LogLevel          string
	Publish           Publish
	Mirror            Mirror
	OpenSubtitles     OpenSubtitles
	MTProto           MTProto
	R2                R2
}

func LoadConfig() *Config {
	adminID := getEnvInt64("ADMIN_USER_ID", 0)
	return &Config{
		BotToken:          getEnv("BOT_TOKEN", ""),
		ChannelID:         getEnvInt64("CHANNEL_ID", 0),
		AdminUserID:       adminID,
		OperatorChatID:    getEnvInt64("OPERATOR_CHAT_ID", adminID),
		ReplacementHandle: getEnv("REPLACEMENT_USERNAME", "@estrenos_fh"),
		Timezone:          getEnv("TIMEZONE", "America/Havana"),
		PostgresURI:       getEnv("POSTGRES_URI", ""),
		RedisURI:          getEnv("REDIS_URI", "localhost:6379"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":3000"),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		AdminAPIKey:       getEnv("ADMIN_API_KEY", ""),
		TempDir:           getEnv("TEMP_DIR", os.TempDir()),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Publish: Publish{
			ItemDelay:   getEnvDuration("PUBLISH_ITEM_DELAY", 1500*time.Millisecond),
			MaxAttempts: int(getEnvInt64("PUBLISH_MAX_ATTEMPTS", 5)),
		},
		Mirror: Mirror{
			PhotoPause:  getEnvDuration("MIRROR_PHOTO_PAUSE", 5*time.Second),
			BlockPause:  getEnvDuration("MIRROR_BLOCK_PAUSE", 15*time.Second),
			MaxAttempts: int(getEnvInt64("MIRROR_MAX_ATTEMPTS", 2)),
		},
		OpenSubtitles: OpenSubtitles{
			APIKey:   getEnv("OPENSUBTITLES_API_KEY", ""),
			Username: getEnv("OPENSUBTITLES_USERNAME", ""),
			Password: getEnv("OPENSUBTITLES_PASSWORD", ""),
			BaseURL:  getEnv("OPENSUBTITLES_URL", "https://api.opensubtitles.com/api/v1"),
			AppName:  getEnv("OPENSUBTITLES_APP_NAME", "packflow v1.0"),
			Language: getEnv("SUBTITLE_LANGUAGE", "es"),
		},
		MTProto: MTProto{
			AppID:       int(getEnvInt64("TG_API_ID", 0)),
			AppHash:     getEnv("TG_API_HASH", ""),
			SessionFile: getEnv("TG_SESSION_FILE", ""),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.ChannelID == 0 {
		return errors.New("CHANNEL_ID is required")
	}
	if c.AdminUserID == 0 {
		return errors.New("ADMIN_USER_ID is required")
	}
	if c.PostgresURI == "" {
		return errors.New("POSTGRES_URI is required")
	}
	if c.Publish.MaxAttempts < 1 {
		return errors.New("PUBLISH_MAX_ATTEMPTS must be at least 1")
	}
	if c.Mirror.MaxAttempts < 1 {
		return errors.New("MIRROR_MAX_ATTEMPTS must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.New("TIMEZONE is not a valid IANA zone")
	}
	return nil
}

// Location returns the configured scheduling timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}
