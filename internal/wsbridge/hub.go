// Package wsbridge exposes a game to WebSocket presenters.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-llm-chess/internal/game"
	"github.com/park285/cheese-llm-chess/internal/obslog"
	"github.com/park285/cheese-llm-chess/pkg/chessdto"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Game is the part of game.Controller the bridge needs.
type Game interface {
	ProposeHumanMove(text string) game.Proposal
	Snapshot() game.Snapshot
}

type peer struct {
	send chan chessdto.Message
}

// Hub fans game events out to connected clients and forwards their move proposals.
// It is a game.Sink; Attach must be called before serving.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	game  Game
	peers map[*peer]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = obslog.L()
	}
	return &Hub{logger: logger, peers: make(map[*peer]struct{})}
}

func (h *Hub) Attach(g Game) {
	h.mu.Lock()
	h.game = g
	h.mu.Unlock()
}

func (h *Hub) attached() Game {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.game
}

// Publish queues ev for every client. Clients that fall behind are disconnected.
func (h *Hub) Publish(ev game.Event) {
	dto := ev.DTO()
	msg := chessdto.Message{Kind: chessdto.MessageEvent, Event: &dto}
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		h.deliverLocked(p, msg)
	}
}

func (h *Hub) deliver(p *peer, msg chessdto.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(p, msg)
}

func (h *Hub) deliverLocked(p *peer, msg chessdto.Message) {
	if _, ok := h.peers[p]; !ok {
		return
	}
	select {
	case p.send <- msg:
	default:
		h.logger.Warn("ws_client_too_slow")
		h.removeLocked(p)
	}
}

func (h *Hub) register() *peer {
	p := &peer{send: make(chan chessdto.Message, sendBuffer)}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	return p
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	h.removeLocked(p)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(p *peer) {
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/state", h.handleState)
	r.Get("/ws", h.handleWS)
	return r
}

func (h *Hub) handleState(w http.ResponseWriter, _ *http.Request) {
	g := h.attached()
	if g == nil {
		writeJSON(w, http.StatusServiceUnavailable, chessdto.DomainError{Code: "no_game", Message: "no game attached", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot().DTO())
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	g := h.attached()
	if g == nil {
		writeJSON(w, http.StatusServiceUnavailable, chessdto.DomainError{Code: "no_game", Message: "no game attached", Retryable: true})
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{CompressionMode: websocket.CompressionNoContextTakeover})
	if err != nil {
		h.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := h.register()
	defer h.unregister(p)
	h.logger.Info("ws_client_connected", zap.String("remote", r.RemoteAddr), zap.String("request_id", middleware.GetReqID(r.Context())))

	state := g.Snapshot().DTO()
	h.deliver(p, chessdto.Message{Kind: chessdto.MessageState, State: &state})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		for msg := range p.send {
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			wcancel()
			if err != nil {
				return
			}
		}
	}()

	for {
		var proposal chessdto.MoveProposal
		if err := wsjson.Read(ctx, conn, &proposal); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				h.logger.Debug("ws_read_failed", zap.Error(err))
			}
			break
		}
		result := g.ProposeHumanMove(proposal.Move).DTO()
		h.deliver(p, chessdto.Message{Kind: chessdto.MessageResult, Result: &result})
	}

	h.unregister(p)
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("ws_client_disconnected", zap.String("remote", r.RemoteAddr))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewServer returns an HTTP server for h bound to addr.
func NewServer(addr string, h *Hub) *http.Server {
	return &http.Server{Addr: addr, Handler: h.Router(), ReadHeaderTimeout: 10 * time.Second}
}
