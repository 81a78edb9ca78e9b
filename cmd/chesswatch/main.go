// Command chesswatch prints the events of a running game from its Redis channel.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/cheese-llm-chess/internal/config"
	"github.com/park285/cheese-llm-chess/internal/eventbus"
	"github.com/park285/cheese-llm-chess/internal/obslog"
)

func main() {
	cfg, err := appcfg.LoadWatch()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.Init(obslog.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, ToConsole: true})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := eventbus.Dial(dctx, cfg.RedisURL)
	cancel()
	if err != nil {
		logger.Fatal("redis_dial_failed", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	events, closeSub, err := eventbus.Subscribe(ctx, rdb, cfg.EventChannel, logger.Named("eventbus"))
	if err != nil {
		logger.Fatal("subscribe_failed", zap.Error(err))
	}
	defer func() { _ = closeSub() }()
	logger.Info("watching", zap.String("channel", cfg.EventChannel))

	enc := json.NewEncoder(os.Stdout)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			logger.Warn("event_write_failed", zap.Error(err))
		}
	}
}
