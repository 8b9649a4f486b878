// Package hub streams auth events to admins watching over a websocket.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"webauth/pkg/envelope"
	"webauth/pkg/models"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection the hub uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type watcher struct {
	conn Conn
	who  models.Identity
	mu   sync.Mutex
}

func (w *watcher) send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

type Hub struct {
	mu       sync.RWMutex
	watchers map[*watcher]struct{}
	log      *zap.Logger
}

func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		watchers: make(map[*watcher]struct{}),
		log:      log.With(zap.String("component", "hub")),
	}
}

// Serve registers conn and blocks until the peer goes away. The only
// message a watcher may send is a ping.
func (h *Hub) Serve(conn Conn, who models.Identity) {
	w := &watcher{conn: conn, who: who}

	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()
	h.log.Info("watcher connected", zap.String("user", who.Username), zap.Int("total", h.ClientCount()))

	defer func() {
		h.mu.Lock()
		delete(h.watchers, w)
		h.mu.Unlock()
		conn.Close()
		h.log.Info("watcher disconnected", zap.String("user", who.Username), zap.Int("total", h.ClientCount()))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		reply, ok := pong(raw, who)
		if !ok {
			continue
		}
		if err := w.send(reply); err != nil {
			return
		}
	}
}

// pong answers a bare text "ping" in kind and an envelope ping with an
// envelope. Anything else gets no reply.
func pong(raw []byte, who models.Identity) ([]byte, bool) {
	if string(bytes.TrimSpace(raw)) == "ping" {
		return []byte("pong"), true
	}
	var in envelope.Envelope
	if err := json.Unmarshal(raw, &in); err != nil || in.Action != "ping" {
		return nil, false
	}
	out, err := envelope.New("pong", "hub", who.Username, string(who.Role)).Marshal()
	return out, err == nil
}

// Publish sends env to every connected watcher.
func (h *Hub) Publish(_ context.Context, env envelope.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.watchers {
		if err := w.send(raw); err != nil {
			h.log.Debug("send failed", zap.String("user", w.who.Username), zap.Error(err))
		}
	}
	return nil
}

// Close disconnects every watcher.
func (h *Hub) Close() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.watchers {
		w.conn.Close()
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}
