// Package provider asks a remote language model for the AI side's next move.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/board"
	"github.com/park285/cheese-llm-chess/internal/obslog"
)

// MoveProvider produces one move for the side to move. Implementations block until a reply
// arrives or ctx is done; they never touch the board.
type MoveProvider interface {
	Name() string
	ProposeMove(ctx context.Context, fen string, legalMoves []string) (board.Move, error)
}

type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
)

const (
	DefaultOpenAIModel      = "gpt-4"
	DefaultAnthropicModel   = "claude-3-5-sonnet-20240620"
	DefaultOpenAIBaseURL    = "https://api.openai.com"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultMaxTokens        = 100
	DefaultTimeout          = 30 * time.Second
)

// ParseKind accepts the user-facing aliases of each variant.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gpt", "openai", "chatgpt":
		return KindOpenAI, nil
	case "claude", "anthropic":
		return KindAnthropic, nil
	default:
		return "", fmt.Errorf("unknown ai provider %q (want gpt or claude)", raw)
	}
}

type Config struct {
	Kind      Kind
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	// RetryMax is the total number of attempts per request; 1 disables retry.
	RetryMax int
}

// New selects the provider variant once for the session.
func New(cfg Config, logger *zap.Logger) (MoveProvider, error) {
	if logger == nil {
		logger = obslog.L()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key is required", cfg.Kind)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 1
	}

	switch cfg.Kind {
	case KindOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenAIBaseURL
		}
		return newOpenAI(cfg, logger), nil
	case KindAnthropic:
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultAnthropicBaseURL
		}
		return newAnthropic(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Kind)
	}
}
