package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string        `yaml:"discord_token"`
	DatabasePath  string        `yaml:"database_path"`
	LogLevel      string        `yaml:"log_level"`
	DefaultPrefix string        `yaml:"default_prefix"`
	Health        HealthConfig  `yaml:"health"`
	AutoMod       AutoModConfig `yaml:"automod"`
	Mutes         MuteConfig    `yaml:"mutes"`
	Notices       NoticeConfig  `yaml:"notices"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AutoModConfig holds the process-wide defaults applied to guilds that have
// no stored settings yet. Per-guild values in guild_settings win once set.
type AutoModConfig struct {
	Enabled      bool `yaml:"enabled"`
	SpamLimit    int  `yaml:"spam_limit"`
	SpamWindowMS int  `yaml:"spam_window_ms"`
	CapsPercent  int  `yaml:"caps_percent"`
	LinksEnabled bool `yaml:"links_enabled"`
}

type MuteConfig struct {
	DefaultDays      int `yaml:"default_days"`
	ReconcileSeconds int `yaml:"reconcile_seconds"`
}

type NoticeConfig struct {
	DeleteAfterSeconds int `yaml:"delete_after_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/warden.db",
		LogLevel:      "info",
		DefaultPrefix: "!",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		AutoMod: AutoModConfig{
			Enabled:      true,
			SpamLimit:    5,
			SpamWindowMS: 5000,
			CapsPercent:  70,
			LinksEnabled: false,
		},
		Mutes:   MuteConfig{DefaultDays: 28, ReconcileSeconds: 60},
		Notices: NoticeConfig{DeleteAfterSeconds: 8},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	if c.DefaultPrefix == "" || len(c.DefaultPrefix) > 5 {
		c.DefaultPrefix = "!"
	}
	if c.AutoMod.SpamLimit <= 0 {
		c.AutoMod.SpamLimit = 5
	}
	if c.AutoMod.SpamWindowMS <= 0 {
		c.AutoMod.SpamWindowMS = 5000
	}
	if c.AutoMod.CapsPercent <= 0 || c.AutoMod.CapsPercent > 100 {
		c.AutoMod.CapsPercent = 70
	}
	if c.Mutes.DefaultDays <= 0 || c.Mutes.DefaultDays > 28 {
		c.Mutes.DefaultDays = 28
	}
	if c.Mutes.ReconcileSeconds <= 0 {
		c.Mutes.ReconcileSeconds = 60
	}
	if c.Notices.DeleteAfterSeconds <= 0 {
		c.Notices.DeleteAfterSeconds = 8
	}
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultPrefix = envString("DEFAULT_PREFIX", cfg.DefaultPrefix)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.AutoMod.Enabled = envBool("AUTOMOD_ENABLED", cfg.AutoMod.Enabled)
	cfg.AutoMod.SpamLimit = envInt("AUTOMOD_SPAM_LIMIT", cfg.AutoMod.SpamLimit)
	cfg.AutoMod.SpamWindowMS = envInt("AUTOMOD_SPAM_WINDOW_MS", cfg.AutoMod.SpamWindowMS)
	cfg.AutoMod.CapsPercent = envInt("AUTOMOD_CAPS_PERCENT", cfg.AutoMod.CapsPercent)
	cfg.AutoMod.LinksEnabled = envBool("AUTOMOD_LINKS_ENABLED", cfg.AutoMod.LinksEnabled)
	cfg.Mutes.DefaultDays = envInt("MUTE_DEFAULT_DAYS", cfg.Mutes.DefaultDays)
	cfg.Mutes.ReconcileSeconds = envInt("MUTE_RECONCILE_SECONDS", cfg.Mutes.ReconcileSeconds)
	cfg.Notices.DeleteAfterSeconds = envInt("NOTICE_DELETE_AFTER_SECONDS", cfg.Notices.DeleteAfterSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
