package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestEventHubBroadcastsStoreToConnectedClient(t *testing.T) {
	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	svr := newTestServer(t)
	svr.eventHub = hub

	ts := httptest.NewServer(svr.Handler())
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/api/events"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the server's register goroutine a moment to land before
	// broadcasting, since registration is asynchronous over a channel.
	time.Sleep(50 * time.Millisecond)

	rec := doJSON(t, svr.Handler(), "POST", "/api/memories", map[string]interface{}{
		"content": "event hub integration test memory",
	})
	require.Equal(t, 201, rec.Code)

	var evt map[string]interface{}
	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()
	require.NoError(t, wsjson.Read(readCtx, conn, &evt))
	require.Equal(t, "memory_created", evt["type"])
	require.NotEmpty(t, evt["content_hash"])
}

func TestServeWSReturns404WhenHubNotConfigured(t *testing.T) {
	svr := newTestServer(t)
	ts := httptest.NewServer(svr.Handler())
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/api/events"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, 404, resp.StatusCode)
	}
}

func TestEventHubBroadcastDropsWhenChannelSaturated(t *testing.T) {
	hub := &EventHub{
		clients:    make(map[*eventClient]bool),
		broadcast:  make(chan interface{}, 1),
		register:   make(chan *eventClient),
		unregister: make(chan *eventClient),
	}
	hub.ctx, hub.cancel = context.WithCancel(context.Background())
	defer hub.cancel()

	hub.Broadcast("memory_created", "hash-1")
	// Second call must not block even though Run is never started to drain it.
	hub.Broadcast("memory_created", "hash-2")
}
