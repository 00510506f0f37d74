package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tailspot/internal/logging"
	"tailspot/internal/scrape"
	"tailspot/internal/store"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsJobEvents(t *testing.T) {
	hub := NewHub(logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	received := make(chan []byte, 1)
	go func() {
		if _, message, err := conn.ReadMessage(); err == nil {
			received <- message
		}
	}()

	// Registration races the dial handshake, so emit until the subscriber
	// sees a frame.
	deadline := time.After(10 * time.Second)
	for {
		hub.JobChanged(scrape.JobEvent{
			JobID:        7,
			Registration: "G-STBA",
			Source:       "jetphotos",
			Status:       store.JobRunning,
			Attempts:     1,
		})
		select {
		case payload := <-received:
			var event Event
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("decode event %q: %v", payload, err)
			}
			if event.Type != EventJob {
				t.Fatalf("expected %q event, got %q", EventJob, event.Type)
			}
			data, ok := event.Data.(map[string]any)
			if !ok {
				t.Fatalf("unexpected event data: %#v", event.Data)
			}
			if data["job_id"] != float64(7) || data["status"] != "running" {
				t.Fatalf("unexpected job event: %v", data)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for broadcast")
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func TestHubClosesSubscribersOnShutdown(t *testing.T) {
	hub := NewHub(logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	// Confirm the subscription landed before stopping the hub, otherwise
	// the shutdown close has nothing to observe.
	received := make(chan struct{}, 1)
	go func() {
		if _, _, err := conn.ReadMessage(); err == nil {
			received <- struct{}{}
		}
	}()
	deadline := time.After(10 * time.Second)
subscribed:
	for {
		hub.Broadcast(EventReview, ReviewEvent{PhotoID: 1, Registration: "G-STBA", State: "approved"})
		select {
		case <-received:
			break subscribed
		case <-deadline:
			t.Fatal("timed out waiting for subscription")
		case <-time.After(25 * time.Millisecond):
		}
	}

	cancel()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("expected normal closure, got %v", err)
		}
		return
	}
}
