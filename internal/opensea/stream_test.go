package opensea

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(u string) string {
	return strings.Replace(u, "http://", "ws://", 1)
}

func TestStreamJoinsAndDispatches(t *testing.T) {
	joined := make(chan phoenixMessage, 1)
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame phoenixMessage
		if err := json.Unmarshal(msg, &frame); err != nil {
			return
		}
		joined <- frame

		push := phoenixMessage{
			Topic: frame.Topic,
			Event: EventItemListed,
			Payload: json.RawMessage(`{
				"event_type": "item_listed",
				"payload": {
					"order_hash": "0xaa",
					"chain": "matic",
					"maker": "0xmaker",
					"nft": {"identifier": "42", "contract": "0xnft", "token_standard": "erc721"}
				}
			}`),
		}
		data, _ := json.Marshal(push)
		conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(200 * time.Millisecond)
	})

	var mu sync.Mutex
	var received []*Event
	handler := func(eventType string, ev *Event) error {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		return nil
	}

	stream, err := NewStream("test-key", handler, testLogger(), WithStreamURL(wsURL(srv.URL)))
	require.NoError(t, err)
	require.NoError(t, stream.Subscribe("cool-cats"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream.Start(ctx)
	defer stream.Stop()

	select {
	case frame := <-joined:
		assert.Equal(t, "collection:cool-cats", frame.Topic)
		assert.Equal(t, "phx_join", frame.Event)
	case <-time.After(time.Second):
		t.Fatal("no join frame received")
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventItemListed, received[0].EventType)
	assert.Equal(t, "0xaa", received[0].OrderHash)
	require.NotNil(t, received[0].NFT)
	assert.Equal(t, "42", received[0].NFT.Identifier)
}

func TestStreamIgnoresReplies(t *testing.T) {
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		reply := phoenixMessage{
			Topic:   "collection:cool-cats",
			Event:   "phx_reply",
			Payload: json.RawMessage(`{"status":"ok"}`),
		}
		data, _ := json.Marshal(reply)
		conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(200 * time.Millisecond)
	})

	called := false
	stream, err := NewStream("test-key", func(string, *Event) error {
		called = true
		return nil
	}, testLogger(), WithStreamURL(wsURL(srv.URL)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stream.Start(ctx)
	time.Sleep(150 * time.Millisecond)
	stream.Stop()

	assert.False(t, called)
}

func TestStreamGracefulStop(t *testing.T) {
	hold := make(chan struct{})
	srv := newStreamServer(t, func(conn *websocket.Conn) {
		<-hold
	})
	defer close(hold)

	stream, err := NewStream("test-key", func(string, *Event) error { return nil },
		testLogger(), WithStreamURL(wsURL(srv.URL)))
	require.NoError(t, err)

	stream.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		stream.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStreamSubscribeDeduplicates(t *testing.T) {
	stream, err := NewStream("test-key", func(string, *Event) error { return nil }, testLogger())
	require.NoError(t, err)

	require.NoError(t, stream.Subscribe("cool-cats"))
	require.NoError(t, stream.Subscribe("cool-cats"))
	assert.Len(t, stream.collections, 1)

	require.NoError(t, stream.Unsubscribe("cool-cats"))
	assert.Empty(t, stream.collections)
}

func TestBackoffCapped(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, 30*time.Second, backoff(5))

	// Long outages must never shrink the delay back down.
	for _, retry := range []int{6, 34, 64, 1000} {
		assert.Equal(t, 30*time.Second, backoff(retry), "retry %d", retry)
	}
}
