package opensea

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultStreamURL = "wss://stream.openseabeta.com/socket/websocket"

// phoenixMessage is the socket envelope: join, heartbeat, and pushed
// events all share this shape.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     int             `json:"ref"`
}

// streamEnvelope wraps every pushed marketplace event.
type streamEnvelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// EventHandler receives decoded stream events. Errors are logged, not
// fatal to the stream.
type EventHandler func(eventType string, ev *Event) error

// Stream maintains a websocket subscription to marketplace events for
// a set of collections. It reconnects with backoff and resubscribes
// on every connect.
type Stream struct {
	url     string
	handler EventHandler
	logger  *slog.Logger

	mu          sync.RWMutex
	conn        *websocket.Conn
	collections map[string]bool
	ref         int

	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// StreamOption tunes a Stream.
type StreamOption func(*Stream)

// WithStreamURL points the stream at a different socket endpoint.
// The API key is still appended as the token query parameter.
func WithStreamURL(u string) StreamOption { return func(s *Stream) { s.url = u } }

// NewStream builds a stream client. The API key rides in the socket
// URL query per the phoenix endpoint contract.
func NewStream(apiKey string, handler EventHandler, logger *slog.Logger, opts ...StreamOption) (*Stream, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	s := &Stream{
		url:               defaultStreamURL,
		handler:           handler,
		logger:            logger,
		collections:       make(map[string]bool),
		ReadTimeout:       60 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.url += "?token=" + url.QueryEscape(apiKey)
	return s, nil
}

// Subscribe registers a collection slug. Joins take effect immediately
// when connected, and are replayed on every reconnect.
func (s *Stream) Subscribe(slug string) error {
	s.mu.Lock()
	if s.collections[slug] {
		s.mu.Unlock()
		return nil
	}
	s.collections[slug] = true
	connected := s.conn != nil
	s.mu.Unlock()

	if !connected {
		return nil
	}
	return s.join(slug)
}

// Unsubscribe drops a collection slug.
func (s *Stream) Unsubscribe(slug string) error {
	s.mu.Lock()
	if !s.collections[slug] {
		s.mu.Unlock()
		return nil
	}
	delete(s.collections, slug)
	connected := s.conn != nil
	s.mu.Unlock()

	if !connected {
		return nil
	}
	return s.send(phoenixMessage{
		Topic:   "collection:" + slug,
		Event:   "phx_leave",
		Payload: json.RawMessage("{}"),
		Ref:     s.nextRef(),
	})
}

// Start launches the connection loop.
func (s *Stream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)
}

// Stop terminates the stream and waits for the loop to exit.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.close()
	s.wg.Wait()
}

func (s *Stream) runLoop(ctx context.Context) {
	defer s.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			delay := backoff(retry)
			s.logger.Warn("stream connect failed", "err", err, "retry", retry, "delay", delay)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		s.process(ctx)
	}
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	slugs := make([]string, 0, len(s.collections))
	for slug := range s.collections {
		slugs = append(slugs, slug)
	}
	s.mu.Unlock()

	for _, slug := range slugs {
		if err := s.join(slug); err != nil {
			s.close()
			return fmt.Errorf("join %s: %w", slug, err)
		}
	}

	go s.heartbeatLoop(ctx)

	s.logger.Info("stream connected", "collections", len(slugs))
	return nil
}

func (s *Stream) process(ctx context.Context) {
	for {
		s.mu.RLock()
		c := s.conn
		s.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			s.logger.Warn("stream read error", "err", err)
			s.close()
			return
		}

		s.dispatch(ctx, msg)
	}
}

func (s *Stream) dispatch(_ context.Context, msg []byte) {
	var frame phoenixMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		s.logger.Warn("stream bad frame", "err", err)
		return
	}

	switch frame.Event {
	case EventItemListed, EventItemCancelled, EventItemSold, EventItemTransferred:
	case "phx_reply", "phx_close", "phx_error":
		return
	default:
		return
	}

	var envelope streamEnvelope
	if err := json.Unmarshal(frame.Payload, &envelope); err != nil {
		s.logger.Warn("stream bad envelope", "event", frame.Event, "err", err)
		return
	}

	var ev Event
	if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
		s.logger.Warn("stream bad event payload", "event", frame.Event, "err", err)
		return
	}
	if ev.EventType == "" {
		ev.EventType = envelope.EventType
	}
	if ev.EventType == "" {
		ev.EventType = frame.Event
	}

	if err := s.handler(ev.EventType, &ev); err != nil {
		s.logger.Warn("stream handler error", "event", ev.EventType, "err", err)
	}
}

func (s *Stream) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			c := s.conn
			s.mu.RUnlock()
			if c == nil {
				return
			}
			err := s.send(phoenixMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage("{}"),
				Ref:     s.nextRef(),
			})
			if err != nil {
				s.logger.Warn("stream heartbeat error", "err", err)
				s.close()
				return
			}
		}
	}
}

func (s *Stream) join(slug string) error {
	return s.send(phoenixMessage{
		Topic:   "collection:" + slug,
		Event:   "phx_join",
		Payload: json.RawMessage("{}"),
		Ref:     s.nextRef(),
	})
}

func (s *Stream) send(msg phoenixMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	c := s.conn
	s.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("stream not connected")
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func (s *Stream) nextRef() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ref++
	return s.ref
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func backoff(retry int) time.Duration {
	// Cap the exponent first; 2^retry overflows the duration for long
	// outages.
	if retry > 5 {
		retry = 5
	}
	d := time.Duration(math.Pow(2, float64(retry))) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
