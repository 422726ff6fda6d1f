// Package chatsock implements the push channel protocol of the Shoplane
// support backend: JSON frames {event, data} over a WebSocket,
// authenticated with a bearer token during the handshake.
package chatsock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// DefaultPingTimeout is how long we wait without receiving any frame
// (including server pings) before treating the connection as dead.
// The server pings every ~10s, so 30s means ~3 missed pings.
var DefaultPingTimeout = 30 * time.Second

// ErrPingTimeout is returned when no frames are received within the ping timeout.
var ErrPingTimeout = errors.New("ping timeout: no frames received")

// Inbound event names.
const (
	EventReady       = "ready"
	EventPing        = "ping"
	EventError       = "error"
	EventMessageSent = "message:sent"
	EventMessageNew  = "message:new"
)

// EventMessageSend is the outbound send event.
const EventMessageSend = "message:send"

// frame is a raw JSON frame on the wire.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a message received from the push channel.
type Event struct {
	Name string          // event name, e.g. "message:new"
	Data json.RawMessage // the "data" field payload
	Err  error           // non-nil on read error or disconnect
}

// ErrorPayload is the data carried by an "error" event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SendPayload is the data carried by an outbound "message:send" event.
type SendPayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// Client is a push channel connection.
type Client struct {
	conn *websocket.Conn
	url  string
}

// maxReadSize caps the maximum WebSocket frame size to 1 MB.
// Chat frames are small JSON; anything larger is likely malformed.
const maxReadSize = 1 << 20 // 1 MB

// Dial connects to the push endpoint and waits for the ready frame.
// The token is passed explicitly; the client never reads ambient state.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxReadSize)

	// The server acknowledges a successful handshake with a ready frame;
	// an auth failure arrives as an error frame instead.
	_, data, err := conn.Read(ctx)
	if err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("read ready: %w", err)
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("parse ready: %w", err)
	}
	switch f.Event {
	case EventReady:
		return &Client{conn: conn, url: url}, nil
	case EventError:
		_ = conn.CloseNow()
		var p ErrorPayload
		_ = json.Unmarshal(f.Data, &p)
		if p.Message == "" {
			p.Message = "connection rejected"
		}
		return nil, fmt.Errorf("handshake rejected: %s", p.Message)
	default:
		_ = conn.CloseNow()
		return nil, fmt.Errorf("expected ready, got %q", f.Event)
	}
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Emit writes an outbound event. Fire-and-forget: delivery confirmation
// arrives asynchronously as an inbound event, not as a response.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	out, _ := json.Marshal(frame{Event: event, Data: data})
	if err := c.conn.Write(ctx, websocket.MessageText, out); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// Listen starts the read loop and returns a channel of events.
// Ping frames are handled silently. The channel closes when the
// connection drops or ctx is cancelled.
//
// A rolling ping timeout detects half-dead connections: if no frame
// (including server pings) arrives within DefaultPingTimeout, the
// connection is treated as dead and an ErrPingTimeout is emitted.
func (c *Client) Listen(ctx context.Context) <-chan Event {
	return c.ListenWithTimeout(ctx, DefaultPingTimeout)
}

// ListenWithTimeout is like Listen but with a configurable ping timeout.
// Use 0 to disable the timeout (not recommended in production).
func (c *Client) ListenWithTimeout(ctx context.Context, pingTimeout time.Duration) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		for {
			readCtx := ctx
			var readCancel context.CancelFunc
			if pingTimeout > 0 {
				readCtx, readCancel = context.WithTimeout(ctx, pingTimeout)
			}

			_, data, err := c.conn.Read(readCtx)

			if readCancel != nil {
				readCancel()
			}

			if err != nil {
				// Distinguish ping timeout from parent context cancellation.
				if pingTimeout > 0 && ctx.Err() == nil && readCtx.Err() != nil {
					err = ErrPingTimeout
				}
				select {
				case ch <- Event{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue // skip malformed frames
			}

			switch f.Event {
			case EventPing:
				continue
			case "":
				continue
			default:
				select {
				case ch <- Event{Name: f.Event, Data: f.Data}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
