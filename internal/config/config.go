package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTExpiry      = "JWT_EXPIRY"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvRealtimeAppKey = "REALTIME_APP_KEY"
	EnvRealtimeSecret = "REALTIME_SECRET"
	EnvMessageLimit   = "CHAT_MESSAGE_RATE_LIMIT"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// RealtimeConfig holds realtime transport settings: the redis backend used for
// fan-out publishing and the shared secret that signs channel subscriptions.
type RealtimeConfig struct {
	AppKey        string `yaml:"app-key"`
	Secret        string `yaml:"secret"`
	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db"`
	ChannelPrefix string `yaml:"channel-prefix"`
}

// defaultChannelPrefix namespaces published realtime channels in redis.
const defaultChannelPrefix = "chat"

// LoadRealtimeConfig loads realtime transport settings from the YAML config file.
func LoadRealtimeConfig(configPath string) (RealtimeConfig, error) {
	// fileConfig maps the YAML fields needed for realtime settings.
	type fileConfig struct {
		Realtime RealtimeConfig `yaml:"realtime"`
	}

	var result RealtimeConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Realtime
		}
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.RedisAddr = addr
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		result.RedisPassword = password
	}
	if appKey := strings.TrimSpace(os.Getenv(EnvRealtimeAppKey)); appKey != "" {
		result.AppKey = appKey
	}
	if secret := strings.TrimSpace(os.Getenv(EnvRealtimeSecret)); secret != "" {
		result.Secret = secret
	}

	result.RedisAddr = strings.TrimSpace(result.RedisAddr)
	result.ChannelPrefix = strings.TrimSpace(result.ChannelPrefix)
	if result.ChannelPrefix == "" {
		result.ChannelPrefix = defaultChannelPrefix
	}
	if result.RedisDB < 0 {
		result.RedisDB = 0
	}
	return result, nil
}

// ChatConfig holds chat pipeline tunables.
type ChatConfig struct {
	// MessageRateLimit caps messages per user per window; 0 disables limiting.
	MessageRateLimit int `yaml:"message-rate-limit"`
	// MessageRateWindow is the limiter window length in seconds.
	MessageRateWindow int `yaml:"message-rate-window"`
	// SendTimeout bounds the whole send-message call.
	SendTimeout time.Duration `yaml:"send-timeout"`
}

// Chat pipeline defaults applied when the config omits or invalidates values.
const (
	defaultMessageRateLimit  = 10
	defaultMessageRateWindow = 60
	defaultSendTimeout       = 30 * time.Second
)

// LoadChatConfig loads chat pipeline settings from the YAML config file.
func LoadChatConfig(configPath string) (ChatConfig, error) {
	// fileConfig maps the YAML fields needed for chat settings.
	type fileConfig struct {
		Chat ChatConfig `yaml:"chat"`
	}

	result := ChatConfig{
		MessageRateLimit:  defaultMessageRateLimit,
		MessageRateWindow: defaultMessageRateWindow,
		SendTimeout:       defaultSendTimeout,
	}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if cfg.Chat.MessageRateLimit != 0 {
				result.MessageRateLimit = cfg.Chat.MessageRateLimit
			}
			if cfg.Chat.MessageRateWindow > 0 {
				result.MessageRateWindow = cfg.Chat.MessageRateWindow
			}
			if cfg.Chat.SendTimeout > 0 {
				result.SendTimeout = cfg.Chat.SendTimeout
			}
		}
	}

	if limitRaw := strings.TrimSpace(os.Getenv(EnvMessageLimit)); limitRaw != "" {
		if limit, errParse := strconv.Atoi(limitRaw); errParse == nil {
			result.MessageRateLimit = limit
		}
	}

	if result.MessageRateLimit < 0 {
		result.MessageRateLimit = 0
	}
	if result.MessageRateWindow <= 0 {
		result.MessageRateWindow = defaultMessageRateWindow
	}
	if result.SendTimeout <= 0 {
		result.SendTimeout = defaultSendTimeout
	}
	return result, nil
}
