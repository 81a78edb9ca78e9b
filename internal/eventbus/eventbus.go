// Package eventbus publishes game events on a Redis channel for remote presenters.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/game"
	"github.com/park285/cheese-llm-chess/internal/obslog"
	"github.com/park285/cheese-llm-chess/pkg/chessdto"
)

const (
	DefaultChannel = "chess:events"
	publishTimeout = 2 * time.Second
)

// Dial connects to REDIS_URL (redis:// or rediss://) and checks the connection.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// parseRedisURL accepts redis:// and rediss:// (TLS) URLs with credentials, db and query options.
func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// Publisher is a game.Sink that forwards every event as JSON. Failures are logged and dropped.
type Publisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = obslog.L()
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel, logger: logger}
}

func (p *Publisher) Channel() string { return p.channel }

func (p *Publisher) Publish(ev game.Event) {
	if p == nil || p.rdb == nil {
		return
	}
	raw, err := json.Marshal(ev.DTO())
	if err != nil {
		p.logger.Warn("event_marshal_failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		p.logger.Warn("event_publish_failed",
			zap.String("channel", p.channel),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// Subscribe decodes events from channel until ctx is done or the returned close func is called.
// The subscription is active when Subscribe returns.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, logger *zap.Logger) (<-chan chessdto.Event, func() error, error) {
	if logger == nil {
		logger = obslog.L()
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	sub := rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan chessdto.Event, 16)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev chessdto.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Warn("event_decode_failed", zap.String("channel", channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, sub.Close, nil
}
