// Package live pushes progress events to a user's open browser sessions
// over websockets.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-sheets/internal/auth"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
	pingInterval     = 30 * time.Second
)

type subscriber struct {
	events chan tracker.Event
}

// Hub fans progress events out to websocket subscribers keyed by user ID.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	accept *websocket.AcceptOptions
}

// NewHub creates a hub accepting connections from the given origin
// patterns. A "*" pattern disables the origin check.
func NewHub(originPatterns []string) *Hub {
	opts := &websocket.AcceptOptions{}
	if slices.Contains(originPatterns, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = originPatterns
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		accept: opts,
	}
}

// Publish queues ev for every connection of ev.UserID. Slow connections drop
// events rather than block the caller.
func (h *Hub) Publish(ev tracker.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.UserID] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("live subscriber is slow, dropping event", "user_id", ev.UserID, "type", ev.Type)
		}
	}
}

// Subscribers returns the number of open connections for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) subscribe(userID string) *subscriber {
	sub := &subscriber{events: make(chan tracker.Event, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(userID string, sub *subscriber) {
	h.mu.Lock()
	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams the caller's progress events as
// JSON messages until the client goes away. The user comes from the request
// context, so the route must sit behind auth.RequireUser.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer conn.CloseNow()

	sub := h.subscribe(userID)
	defer h.unsubscribe(userID, sub)
	slog.Info("live client connected", "user_id", userID, "connections", h.Subscribers(userID))

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer closes.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-sub.events:
			if err := write(ctx, conn, ev); err != nil {
				slog.Debug("live write failed", "user_id", userID, "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			slog.Info("live client disconnected", "user_id", userID)
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev tracker.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
