package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Store backends accepted in STORE_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	StoreBackend string
	StoreDir     string

	LLMProvider string
	LLMModel    string
	LLMBaseURL  string
	// APIKey seeds the stored credential when none has been set yet.
	APIKey string

	LogLevel  string
	LogFormat string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	Port                   string
}

// NewFromEnv creates a new Config object from environment variables, with
// an optional meal-buddy.yaml in the working directory or ./configs.
func NewFromEnv() (*Config, error) {
	v := viper.New()
	v.SetConfigName("meal-buddy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()

	v.SetDefault("database_path", "data/meal-buddy.db")
	v.SetDefault("store_backend", BackendSQLite)
	v.SetDefault("store_dir", "data/collections")
	v.SetDefault("llm_provider", "openai")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("port", "8080")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabasePath:       v.GetString("database_path"),
		StoreBackend:       strings.ToLower(v.GetString("store_backend")),
		StoreDir:           v.GetString("store_dir"),
		LLMProvider:        strings.ToLower(v.GetString("llm_provider")),
		LLMModel:           v.GetString("llm_model"),
		LLMBaseURL:         v.GetString("llm_base_url"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		TelegramBotToken:   v.GetString("telegram_bot_token"),
		TelegramWebhookURL: v.GetString("telegram_webhook_url"),
		Port:               v.GetString("port"),
	}

	switch cfg.StoreBackend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.LLMProvider {
	case "openai":
		cfg.APIKey = v.GetString("openai_api_key")
	case "groq":
		cfg.APIKey = v.GetString("groq_api_key")
	case "gemini":
		cfg.APIKey = v.GetString("gemini_api_key")
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER %q", cfg.LLMProvider)
	}

	ids, err := parseUserIDs(v.GetString("telegram_allowed_user_ids"))
	if err != nil {
		return nil, err
	}
	cfg.TelegramAllowedUserIDs = ids

	return cfg, nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS environment variable not set")
	}
	return nil
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
