package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-llm-chess/internal/provider"
)

func TestLoadRequiresProvider(t *testing.T) {
	t.Setenv("CHESS_AI_PROVIDER", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CHESS_AI_PROVIDER") {
		t.Fatalf("expected provider error, got %v", err)
	}
	t.Setenv("CHESS_AI_PROVIDER", "bard")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestLoadRequiresSelectedKey(t *testing.T) {
	t.Setenv("CHESS_AI_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-unused")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("expected anthropic key error, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHESS_AI_PROVIDER", "gpt")
	t.Setenv("OPENAI_API_KEY", " sk-test ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != provider.KindOpenAI || cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("unexpected provider config: %+v", cfg)
	}
	if cfg.LLMTimeout != 30*time.Second || cfg.LLMRetryMax != 1 || cfg.LLMMaxTokens != 100 {
		t.Fatalf("unexpected llm defaults: %+v", cfg)
	}
	if cfg.EventChannel != "chess:events" || cfg.RedisURL != "" || cfg.WSAddr != "" {
		t.Fatalf("unexpected optional defaults: %+v", cfg)
	}
	pc := cfg.ProviderConfig()
	if pc.Model != "gpt-4" || pc.BaseURL != "https://api.openai.com" || pc.APIKey != "sk-test" {
		t.Fatalf("unexpected provider.Config: %+v", pc)
	}
	if cfg.TurnTimeout() != 32*time.Second {
		t.Fatalf("TurnTimeout = %v", cfg.TurnTimeout())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHESS_AI_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "ak")
	t.Setenv("ANTHROPIC_MODEL", "claude-test")
	t.Setenv("LLM_TIMEOUT", "5")
	t.Setenv("LLM_RETRY_MAX", "3")
	t.Setenv("LOG_TO_FILE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMTimeout != 5*time.Second || cfg.LLMRetryMax != 3 || !cfg.LogToFile {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if pc := cfg.ProviderConfig(); pc.Kind != provider.KindAnthropic || pc.Model != "claude-test" || pc.RetryMax != 3 {
		t.Fatalf("unexpected provider.Config: %+v", pc)
	}
	if cfg.TurnTimeout() != 17*time.Second {
		t.Fatalf("TurnTimeout = %v", cfg.TurnTimeout())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chess.yaml")
	body := "chess_ai_provider: claude\nanthropic_api_key: from-file\nllm_timeout: 1m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHESS_AI_PROVIDER", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	os.Unsetenv("CHESS_AI_PROVIDER")
	os.Unsetenv("ANTHROPIC_API_KEY")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != provider.KindAnthropic || cfg.AnthropicAPIKey != "from-file" || cfg.LLMTimeout != time.Minute {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestParseTimeout(t *testing.T) {
	if _, err := parseTimeout("soon"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := parseTimeout("0"); err == nil {
		t.Fatalf("expected error for zero")
	}
	if d, _ := parseTimeout("1500ms"); d != 1500*time.Millisecond {
		t.Fatalf("parseTimeout = %v", d)
	}
}

func TestLoadWatch(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := LoadWatch(); err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
		t.Fatalf("expected REDIS_URL error, got %v", err)
	}
	t.Setenv("REDIS_URL", " redis://localhost:6379/0 ")
	t.Setenv("CHESS_AI_PROVIDER", "")
	cfg, err := LoadWatch()
	if err != nil {
		t.Fatalf("LoadWatch: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" || cfg.EventChannel != "chess:events" {
		t.Fatalf("unexpected watch config: %+v", cfg)
	}
}
