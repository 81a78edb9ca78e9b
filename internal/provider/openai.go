package provider

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/board"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAI speaks the chat completions API.
type OpenAI struct {
	model     string
	maxTokens int
	http      *client
	logger    *zap.Logger
}

func newOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	key := strings.TrimSpace(cfg.APIKey)
	return &OpenAI{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
		http: newClient(string(KindOpenAI), cfg.BaseURL,
			withTimeout(cfg.Timeout),
			withRetry(cfg.RetryMax),
			withLogger(logger),
			withHeaderProvider(func() map[string]string {
				return map[string]string{"Authorization": "Bearer " + key}
			}),
		),
	}
}

func (p *OpenAI) Name() string { return string(KindOpenAI) }

func (p *OpenAI) ProposeMove(ctx context.Context, fen string, legalMoves []string) (board.Move, error) {
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: userPrompt(fen, legalMoves)},
		},
		MaxTokens: p.maxTokens,
	}
	var resp chatResponse
	if err := p.http.postJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return board.Move{}, err
	}
	if len(resp.Choices) == 0 {
		return board.Move{}, &ProviderError{Provider: p.Name(), Kind: FailureBadResponse, Message: "no choices in reply"}
	}
	reply := resp.Choices[0].Message.Content
	p.logger.Debug("llm_reply", zap.String("provider", p.Name()), zap.String("model", p.model), zap.String("reply", truncate(reply, 200)))
	m, ok := ExtractMove(reply)
	if !ok {
		return board.Move{}, &ParseError{Provider: p.Name(), Reply: reply}
	}
	return m, nil
}
