package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"amrfluid/config"
	"amrfluid/simulation"
)

// diagnosticsMessage is what clients receive after every step
type diagnosticsMessage struct {
	Type string `json:"type"`
	simulation.Diagnostics
}

// controlMessage is what clients may send
type controlMessage struct {
	Paused *bool `json:"paused"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // diagnostics are read-only
	},
}

// hub tracks connected clients; each connection has its own write lock
type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	latest  atomic.Pointer[diagnosticsMessage]
	paused  atomic.Bool
	logger  *zap.Logger
}

func newHub(logger *zap.Logger) *hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hub{clients: make(map[*websocket.Conn]*sync.Mutex), logger: logger}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = connMu
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	if msg := h.latest.Load(); msg != nil {
		connMu.Lock()
		err := conn.WriteJSON(msg)
		connMu.Unlock()
		if err != nil {
			return
		}
	}

	for {
		var ctl controlMessage
		if err := conn.ReadJSON(&ctl); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if ctl.Paused != nil {
			h.paused.Store(*ctl.Paused)
			h.logger.Info("pause toggled", zap.Bool("paused", *ctl.Paused))
		}
	}
}

// broadcast sends diag to every client and drops the ones that fail
func (h *hub) broadcast(diag simulation.Diagnostics) {
	msg := &diagnosticsMessage{Type: "diagnostics", Diagnostics: diag}
	h.latest.Store(msg)

	var failed []*websocket.Conn
	h.mu.RLock()
	for conn, connMu := range h.clients {
		connMu.Lock()
		err := conn.WriteJSON(msg)
		connMu.Unlock()
		if err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			conn.Close()
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	}
}

// serve runs the step loop and the HTTP server until ctx is cancelled
func serve(ctx context.Context, s *config.Settings, d *simulation.Driver, h *hub) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if msg := h.latest.Load(); msg != nil {
			_ = writeJSON(w, msg)
			return
		}
		_ = writeJSON(w, diagnosticsMessage{Type: "diagnostics", Diagnostics: d.Diagnostics()})
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", s.Server.Port), Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.logger.Info("serving diagnostics", zap.String("addr", srv.Addr), zap.String("run_id", d.RunID().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return stepLoop(ctx, time.Duration(s.Server.UpdateIntervalMs)*time.Millisecond, d, h)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stepLoop advances d once per tick unless a client paused it
func stepLoop(ctx context.Context, interval time.Duration, d *simulation.Driver, h *hub) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if h.paused.Load() {
			continue
		}
		start := time.Now()
		diag, err := d.Step()
		if err != nil {
			return err
		}
		h.broadcast(diag)
		if elapsed := time.Since(start); elapsed > interval {
			h.logger.Warn("slow step", zap.Int("step", diag.Step), zap.Duration("elapsed", elapsed))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
