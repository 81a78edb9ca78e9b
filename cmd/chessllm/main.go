package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/board"
	appcfg "github.com/park285/cheese-llm-chess/internal/config"
	"github.com/park285/cheese-llm-chess/internal/eventbus"
	"github.com/park285/cheese-llm-chess/internal/game"
	"github.com/park285/cheese-llm-chess/internal/msgcat"
	"github.com/park285/cheese-llm-chess/internal/obslog"
	"github.com/park285/cheese-llm-chess/internal/provider"
	"github.com/park285/cheese-llm-chess/internal/terminal"
	"github.com/park285/cheese-llm-chess/internal/wsbridge"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.Init(obslog.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		ToConsole: cfg.LogToConsole,
		ToFile:    cfg.LogToFile,
		File:      cfg.LogFile,
		Caller:    cfg.LogCaller,
	})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("chessllm_exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *appcfg.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return err
	}
	mp, err := provider.New(cfg.ProviderConfig(), logger.Named("provider"))
	if err != nil {
		return err
	}

	var sinks game.Sinks

	if cfg.RedisURL != "" {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := eventbus.Dial(dctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		sinks = append(sinks, eventbus.NewPublisher(rdb, cfg.EventChannel, logger.Named("eventbus")))
		logger.Info("event_publisher_ready", zap.String("channel", cfg.EventChannel))
	}

	var hub *wsbridge.Hub
	if cfg.WSAddr != "" {
		hub = wsbridge.NewHub(logger.Named("wsbridge"))
		sinks = append(sinks, hub)
	}

	humanSide := board.White
	if cfg.StartFEN != "" {
		b, err := board.FromFEN(cfg.StartFEN)
		if err != nil {
			return err
		}
		humanSide = b.Turn()
	}
	presenter := terminal.NewPresenter(os.Stdout, cat, humanSide, mp.Name())
	sinks = append(sinks, presenter)

	ctrl, err := game.NewController(mp, sinks, game.Config{StartFEN: cfg.StartFEN, AITimeout: cfg.TurnTimeout()}, logger.Named("game"))
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	if hub != nil {
		hub.Attach(ctrl)
		srv := wsbridge.NewServer(cfg.WSAddr, hub)
		go func() {
			logger.Info("ws_bridge_listening", zap.String("addr", cfg.WSAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ws_bridge_failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	err = terminal.NewLoop(os.Stdin, os.Stdout, cat, presenter).Run(ctx, ctrl)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
