package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/park285/cheese-llm-chess/internal/provider"
)

type AppConfig struct {
	Provider provider.Kind

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	LLMTimeout   time.Duration
	LLMRetryMax  int
	LLMMaxTokens int

	StartFEN string

	RedisURL     string
	EventChannel string
	WSAddr       string
	MessagesDir  string

	LogLevel     string
	LogFormat    string
	LogToConsole bool
	LogToFile    bool
	LogFile      string
	LogCaller    bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OPENAI_MODEL", provider.DefaultOpenAIModel)
	v.SetDefault("OPENAI_BASE_URL", provider.DefaultOpenAIBaseURL)
	v.SetDefault("ANTHROPIC_MODEL", provider.DefaultAnthropicModel)
	v.SetDefault("ANTHROPIC_BASE_URL", provider.DefaultAnthropicBaseURL)
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_RETRY_MAX", 1)
	v.SetDefault("LLM_MAX_TOKENS", provider.DefaultMaxTokens)
	v.SetDefault("EVENT_CHANNEL", "chess:events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_TO_CONSOLE", true)
	v.SetDefault("LOG_TO_FILE", false)
	v.SetDefault("LOG_FILE", "logs/chessllm.log")
	v.SetDefault("LOG_CALLER", false)
}

// Load reads the environment, and CONFIG_FILE when set. Environment values win over the file.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := &AppConfig{
		OpenAIAPIKey:     str("OPENAI_API_KEY"),
		OpenAIModel:      str("OPENAI_MODEL"),
		OpenAIBaseURL:    str("OPENAI_BASE_URL"),
		AnthropicAPIKey:  str("ANTHROPIC_API_KEY"),
		AnthropicModel:   str("ANTHROPIC_MODEL"),
		AnthropicBaseURL: str("ANTHROPIC_BASE_URL"),
		LLMRetryMax:      v.GetInt("LLM_RETRY_MAX"),
		LLMMaxTokens:     v.GetInt("LLM_MAX_TOKENS"),
		StartFEN:         str("CHESS_START_FEN"),
		RedisURL:         str("REDIS_URL"),
		EventChannel:     str("EVENT_CHANNEL"),
		WSAddr:           str("WS_ADDR"),
		MessagesDir:      str("MESSAGES_DIR"),
		LogLevel:         str("LOG_LEVEL"),
		LogFormat:        str("LOG_FORMAT"),
		LogToConsole:     v.GetBool("LOG_TO_CONSOLE"),
		LogToFile:        v.GetBool("LOG_TO_FILE"),
		LogFile:          str("LOG_FILE"),
		LogCaller:        v.GetBool("LOG_CALLER"),
	}

	raw := str("CHESS_AI_PROVIDER")
	if raw == "" {
		return nil, errors.New("CHESS_AI_PROVIDER is required (gpt or claude)")
	}
	kind, err := provider.ParseKind(raw)
	if err != nil {
		return nil, err
	}
	cfg.Provider = kind

	timeout, err := parseTimeout(str("LLM_TIMEOUT"))
	if err != nil {
		return nil, err
	}
	cfg.LLMTimeout = timeout

	if cfg.LLMRetryMax < 1 {
		cfg.LLMRetryMax = 1
	}
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = provider.DefaultMaxTokens
	}

	switch cfg.Provider {
	case provider.KindOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required when CHESS_AI_PROVIDER is gpt")
		}
	case provider.KindAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required when CHESS_AI_PROVIDER is claude")
		}
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if v == "" {
		return provider.DefaultTimeout, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("LLM_TIMEOUT must be positive, got %q", v)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid LLM_TIMEOUT %q", v)
	}
	return d, nil
}

// ProviderConfig selects the settings of the configured provider.
func (c *AppConfig) ProviderConfig() provider.Config {
	pc := provider.Config{
		Kind:      c.Provider,
		MaxTokens: c.LLMMaxTokens,
		Timeout:   c.LLMTimeout,
		RetryMax:  c.LLMRetryMax,
	}
	switch c.Provider {
	case provider.KindAnthropic:
		pc.APIKey, pc.Model, pc.BaseURL = c.AnthropicAPIKey, c.AnthropicModel, c.AnthropicBaseURL
	default:
		pc.APIKey, pc.Model, pc.BaseURL = c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL
	}
	return pc
}

// TurnTimeout bounds a whole AI turn: every attempt plus backoff slack.
func (c *AppConfig) TurnTimeout() time.Duration {
	attempts := c.LLMRetryMax
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*c.LLMTimeout + 2*time.Second
}

// WatchConfig configures the remote event watcher.
type WatchConfig struct {
	RedisURL     string
	EventChannel string
	LogLevel     string
	LogFormat    string
}

// LoadWatch reads the settings the watcher needs; REDIS_URL is required.
func LoadWatch() (*WatchConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &WatchConfig{
		RedisURL:     strings.TrimSpace(v.GetString("REDIS_URL")),
		EventChannel: strings.TrimSpace(v.GetString("EVENT_CHANNEL")),
		LogLevel:     strings.TrimSpace(v.GetString("LOG_LEVEL")),
		LogFormat:    strings.TrimSpace(v.GetString("LOG_FORMAT")),
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}
