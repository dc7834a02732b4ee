package live_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-sheets/internal/auth"
	"github.com/p-n-ai/pai-sheets/internal/live"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

func newServer(t *testing.T, hub *live.Hub) *httptest.Server {
	t.Helper()
	a := auth.New("", "", nil)
	srv := httptest.NewServer(a.RequireUser(hub))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-ID": {userID}},
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *live.Hub, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(userID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("Subscribers(%s) = %d, want %d", userID, hub.Subscribers(userID), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_DeliversOnlyOwnEvents(t *testing.T) {
	hub := live.NewHub([]string{"*"})
	srv := newServer(t, hub)

	conn := dial(t, srv, "u1")
	waitForSubscribers(t, hub, "u1", 1)

	hub.Publish(tracker.Event{Type: tracker.EventProgressUpdated, UserID: "u2", ProblemID: "other"})
	hub.Publish(tracker.Event{Type: tracker.EventProgressUpdated, UserID: "u1", ProblemID: "p1"})

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	var got tracker.Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.UserID != "u1" || got.ProblemID != "p1" {
		t.Errorf("received %+v, want u1/p1", got)
	}
}

func TestHub_FanOutToEveryConnection(t *testing.T) {
	hub := live.NewHub([]string{"*"})
	srv := newServer(t, hub)

	a := dial(t, srv, "u1")
	b := dial(t, srv, "u1")
	waitForSubscribers(t, hub, "u1", 2)

	hub.Publish(tracker.Event{Type: tracker.EventProgressCleared, UserID: "u1", ProblemID: "p9"})

	for i, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
		var got tracker.Event
		err := wsjson.Read(ctx, conn, &got)
		cancel()
		if err != nil {
			t.Fatalf("conn %d Read() error = %v", i, err)
		}
		if got.Type != tracker.EventProgressCleared {
			t.Errorf("conn %d got type %q", i, got.Type)
		}
	}
}

func TestHub_UnsubscribesOnClose(t *testing.T) {
	hub := live.NewHub([]string{"*"})
	srv := newServer(t, hub)

	conn := dial(t, srv, "u1")
	waitForSubscribers(t, hub, "u1", 1)

	conn.Close(websocket.StatusNormalClosure, "bye")
	waitForSubscribers(t, hub, "u1", 0)
}

func TestHub_RejectsAnonymous(t *testing.T) {
	hub := live.NewHub(nil)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := live.NewHub(nil)
	hub.Publish(tracker.Event{UserID: "nobody"})
	if hub.Subscribers("nobody") != 0 {
		t.Error("Publish should not create subscribers")
	}
}
