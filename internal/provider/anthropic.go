package provider

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/board"
)

const anthropicVersion = "2023-06-01"

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// Anthropic speaks the messages API.
type Anthropic struct {
	model     string
	maxTokens int
	http      *client
	logger    *zap.Logger
}

func newAnthropic(cfg Config, logger *zap.Logger) *Anthropic {
	key := strings.TrimSpace(cfg.APIKey)
	return &Anthropic{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
		http: newClient(string(KindAnthropic), cfg.BaseURL,
			withTimeout(cfg.Timeout),
			withRetry(cfg.RetryMax),
			withLogger(logger),
			withHeaderProvider(func() map[string]string {
				return map[string]string{"x-api-key": key, "anthropic-version": anthropicVersion}
			}),
		),
	}
}

func (p *Anthropic) Name() string { return string(KindAnthropic) }

func (p *Anthropic) ProposeMove(ctx context.Context, fen string, legalMoves []string) (board.Move, error) {
	req := messagesRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: 0,
		System:      anthropicSystemPrompt,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: userPrompt(fen, legalMoves)}},
		}},
	}
	var resp messagesResponse
	if err := p.http.postJSON(ctx, "/v1/messages", req, &resp); err != nil {
		return board.Move{}, err
	}
	reply, found := "", false
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply, found = block.Text, true
			break
		}
	}
	if !found {
		return board.Move{}, &ProviderError{Provider: p.Name(), Kind: FailureBadResponse, Message: "no text block in reply"}
	}
	p.logger.Debug("llm_reply", zap.String("provider", p.Name()), zap.String("model", p.model), zap.String("reply", truncate(reply, 200)))
	m, ok := ExtractMove(reply)
	if !ok {
		return board.Move{}, &ParseError{Provider: p.Name(), Reply: reply}
	}
	return m, nil
}
