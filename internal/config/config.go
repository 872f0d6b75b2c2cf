// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Relevance modes.
const (
	RelevanceOff     = "off"
	RelevanceKeyword = "keyword"
	RelevanceGemini  = "gemini"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string  `mapstructure:"telegram_bot_token" validate:"required"`
	DatabasePath     string  `mapstructure:"database_path" validate:"required"`
	LogLevel         string  `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	AllowedUsers     []int64 `mapstructure:"-"`
	AdminChatID      int64   `mapstructure:"admin_chat_id"`

	CheckInterval     time.Duration `mapstructure:"check_interval" validate:"min=1m"`
	ScrapeDelay       time.Duration `mapstructure:"scrape_delay" validate:"min=0"`
	StaleThreshold    int           `mapstructure:"stale_threshold" validate:"min=1"`
	SeenRetention     time.Duration `mapstructure:"seen_retention" validate:"min=24h"`
	MaxWatchesPerUser int           `mapstructure:"max_watches_per_user" validate:"min=1"`
	DefaultPlatform   string        `mapstructure:"default_platform" validate:"oneof=enjoei ml olx"`

	BrowserMaxAge time.Duration `mapstructure:"browser_max_age" validate:"min=1m"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" validate:"min=1s"`
	FetchRetries  uint64        `mapstructure:"fetch_retries" validate:"max=5"`

	RelevanceMode string `mapstructure:"relevance_mode" validate:"oneof=off keyword gemini"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key" validate:"required_if=RelevanceMode gemini"`
	GeminiModel   string `mapstructure:"gemini_model"`

	RedisAddr     string   `mapstructure:"redis_addr"`
	RedisPassword string   `mapstructure:"redis_password"`
	RedisDB       int      `mapstructure:"redis_db" validate:"min=0"`
	KafkaBrokers  []string `mapstructure:"-"`
	KafkaTopic    string   `mapstructure:"kafka_topic"`
	HTTPAddr      string   `mapstructure:"http_addr"`
}

var defaults = map[string]any{
	"telegram_bot_token":   "",
	"database_path":        "./data/bot.db",
	"log_level":            "info",
	"allowed_users":        "",
	"admin_chat_id":        0,
	"check_interval":       "5m",
	"scrape_delay":         "3s",
	"stale_threshold":      3,
	"seen_retention":       "720h",
	"max_watches_per_user": 50,
	"default_platform":     "enjoei",
	"browser_max_age":      "30m",
	"fetch_timeout":        "60s",
	"fetch_retries":        2,
	"relevance_mode":       RelevanceOff,
	"gemini_api_key":       "",
	"gemini_model":         "gemini-2.0-flash",
	"redis_addr":           "",
	"redis_password":       "",
	"redis_db":             0,
	"kafka_brokers":        "",
	"kafka_topic":          "marketplace.listings",
	"http_addr":            "",
}

var validate = validator.New()

// Load reads configuration from environment variables, after loading a .env
// file from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.DefaultPlatform = strings.ToLower(cfg.DefaultPlatform)
	cfg.RelevanceMode = strings.ToLower(cfg.RelevanceMode)

	users, err := parseUsers(v.GetString("allowed_users"))
	if err != nil {
		return nil, err
	}
	cfg.AllowedUsers = users
	cfg.KafkaBrokers = splitList(v.GetString("kafka_brokers"))

	if err := validate.Struct(&cfg); err != nil {
		return nil, describe(err)
	}
	return &cfg, nil
}

// DatabasePath resolves DATABASE_PATH the same way Load does, without
// requiring the rest of the bot configuration.
func DatabasePath() string {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("database_path", defaults["database_path"])
	return v.GetString("database_path")
}

func parseUsers(raw string) ([]int64, error) {
	var users []int64
	for _, s := range splitList(raw) {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// describe turns validator errors into messages naming the environment variable.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", envName(fe.StructField()), fe.Tag()+paramSuffix(fe.Param())))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

var envNames = map[string]string{
	"TelegramBotToken":  "TELEGRAM_BOT_TOKEN",
	"DatabasePath":      "DATABASE_PATH",
	"LogLevel":          "LOG_LEVEL",
	"CheckInterval":     "CHECK_INTERVAL",
	"ScrapeDelay":       "SCRAPE_DELAY",
	"StaleThreshold":    "STALE_THRESHOLD",
	"SeenRetention":     "SEEN_RETENTION",
	"MaxWatchesPerUser": "MAX_WATCHES_PER_USER",
	"DefaultPlatform":   "DEFAULT_PLATFORM",
	"BrowserMaxAge":     "BROWSER_MAX_AGE",
	"FetchTimeout":      "FETCH_TIMEOUT",
	"FetchRetries":      "FETCH_RETRIES",
	"RelevanceMode":     "RELEVANCE_MODE",
	"GeminiAPIKey":      "GEMINI_API_KEY",
	"RedisDB":           "REDIS_DB",
}

func envName(field string) string {
	if n, ok := envNames[field]; ok {
		return n
	}
	return field
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
