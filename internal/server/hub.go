package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

// Hub is the websocket feed module: every transition is pushed to all
// connected clients.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]*rateLimiter
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]*rateLimiter)}
}

// Provider returns a module provider that always yields h, so the same hub
// serves HTTP and receives notifications.
func (h *Hub) Provider() module.Provider {
	return func(*config.Config) (module.Module, error) { return h, nil }
}

func (h *Hub) Title() string { return HubTitle }

func (h *Hub) Initialize(context.Context) error { return nil }

func (h *Hub) OnStarted(ctx context.Context, d screen.Display) error {
	display := d
	h.broadcast(ctx, EventMessage{Type: "started", Display: &display, At: time.Now()})
	return nil
}

func (h *Hub) OnEnded(ctx context.Context) error {
	h.broadcast(ctx, EventMessage{Type: "ended", At: time.Now()})
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *websocket.Conn) *rateLimiter {
	rl := &rateLimiter{}
	h.mu.Lock()
	h.conns[c] = rl
	h.mu.Unlock()
	return rl
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// broadcast writes msg to every client and waits for the writes. A client
// that cannot keep up is disconnected.
func (h *Hub) broadcast(ctx context.Context, msg any) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			defer cancel()
			if err := wsjson.Write(wctx, c, msg); err != nil {
				trace.Logger(ctx).Debug("dropping websocket client", "error", err)
				h.remove(c)
				_ = c.Close(websocket.StatusPolicyViolation, "write failed")
			}
		}()
	}
	wg.Wait()
}
