package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Bot      BotConfig      `yaml:"bot"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"` // debug, release, test
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit"` // API requests per second per IP
	RateBurst   int      `yaml:"rate_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// TelegramConfig describes the bot account and the staff work group.
type TelegramConfig struct {
	Token          string  `yaml:"token"`
	APIBaseURL     string  `yaml:"api_base_url"`
	WorkGroupID    int64   `yaml:"work_group_id"`
	InitialAdminID int64   `yaml:"initial_admin_id"`
	Mode           string  `yaml:"mode"` // polling, webhook
	WebhookURL     string  `yaml:"webhook_url"`
	WebhookSecret  string  `yaml:"webhook_secret"`
	PollTimeout    int     `yaml:"poll_timeout"` // seconds
	SendRate       float64 `yaml:"send_rate"`    // outbound messages per second
	SendBurst      int     `yaml:"send_burst"`
}

type BotConfig struct {
	Workers          int    `yaml:"workers"`
	FlowTTLMinutes   int    `yaml:"flow_ttl_minutes"` // 0 disables expiry
	Timezone         string `yaml:"timezone"`
	ReportFontPath   string `yaml:"report_font_path"`
	LogRetentionDays int    `yaml:"log_retention_days"`
}

// JWTConfig signs stats API tokens. An empty secret disables the API.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// RedisConfig for optional async notification queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

var GlobalConfig *Config

// Load reads .env (if any), then the YAML file, then applies environment overrides.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8080",
			Mode:        "release",
			CORSOrigins: []string{"*"},
			RateLimit:   5,
			RateBurst:   10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "feedbackbot.db",
		},
		Telegram: TelegramConfig{
			APIBaseURL:  "https://api.telegram.org",
			Mode:        ModePolling,
			PollTimeout: 30,
			SendRate:    25,
			SendBurst:   5,
		},
		Bot: BotConfig{
			Workers:          8,
			FlowTTLMinutes:   30,
			Timezone:         "UTC",
			LogRetentionDays: 30,
		},
		JWT: JWTConfig{
			ExpireHour: 24,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) overrideFromEnv() error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if v := os.Getenv("WORK_GROUP_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("WORK_GROUP_ID must be an integer: %w", err)
		}
		c.Telegram.WorkGroupID = id
	}
	if v := os.Getenv("INITIAL_ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("INITIAL_ADMIN_ID must be an integer: %w", err)
		}
		c.Telegram.InitialAdminID = id
	}
	if mode := os.Getenv("TELEGRAM_MODE"); mode != "" {
		c.Telegram.Mode = mode
	}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		c.Telegram.WebhookURL = url
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		c.Telegram.WebhookSecret = secret
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	} else if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = postgresDSN(host, os.Getenv("DB_PORT"), os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		c.Bot.Timezone = tz
	}
	if font := os.Getenv("REPORT_FONT_PATH"); font != "" {
		c.Bot.ReportFontPath = font
	}

	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
	return nil
}

func postgresDSN(host, port, user, password, name string) string {
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name)
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

// Validate reports every missing or malformed required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("BOT_TOKEN is not set"))
	}
	if c.Telegram.WorkGroupID == 0 {
		errs = append(errs, errors.New("WORK_GROUP_ID is not set"))
	} else if c.Telegram.WorkGroupID > 0 {
		errs = append(errs, errors.New("WORK_GROUP_ID must be negative (supergroup id)"))
	}
	if c.Telegram.InitialAdminID == 0 {
		errs = append(errs, errors.New("INITIAL_ADMIN_ID is not set"))
	}
	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown telegram mode %q", c.Telegram.Mode))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is empty"))
	}
	if c.Bot.FlowTTLMinutes < 0 {
		errs = append(errs, errors.New("bot.flow_ttl_minutes must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
