package widget

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/chatsock"
)

// State is the connectivity state of the push channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by Transport.Send when the channel is not
// in the connected state. Callers fall back to the REST path.
var ErrNotConnected = errors.New("push channel not connected")

// Socket is the subset of chatsock.Client the transport drives.
type Socket interface {
	Listen(ctx context.Context) <-chan chatsock.Event
	Emit(ctx context.Context, event string, payload any) error
	Close() error
}

// Dialer establishes a push connection. The token is always an explicit
// argument; the transport never reads credentials from ambient state.
type Dialer func(ctx context.Context, url, token string) (Socket, error)

// DefaultDialer dials the real push endpoint.
func DefaultDialer(ctx context.Context, url, token string) (Socket, error) {
	c, err := chatsock.Dial(ctx, url, token)
	if err != nil {
		// Return an untyped nil so callers' sock != nil checks work.
		return nil, err
	}
	return c, nil
}

// Transport owns a single push connection scoped to the active chat and
// its disconnected -> connecting -> connected state machine. Any state
// can fall back to disconnected on network drop or explicit close.
//
// Connection failures never propagate to the caller as errors: they
// surface through the onError callback and leave the transport
// disconnected. The poll backstop keeps the session consistent in the
// meantime.
type Transport struct {
	dial Dialer
	url  string

	mu     sync.Mutex
	state  State
	sock   Socket
	cancel context.CancelFunc
	gen    uint64
}

// NewTransport returns a disconnected transport for the given push URL.
func NewTransport(url string, dial Dialer) *Transport {
	if dial == nil {
		dial = DefaultDialer
	}
	return &Transport{dial: dial, url: url}
}

// State returns the current connectivity state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Open establishes the connection and starts the listen loop. Inbound
// message events for chatID are handed to deliver; events for any other
// chat are discarded (guards against stale events after a chat switch).
// Errors, including a failed connect, go to onError and never block the
// caller. Calling Open while a connection exists replaces it.
func (t *Transport) Open(ctx context.Context, token, chatID string, deliver func(api.Message), onError func(error)) {
	t.mu.Lock()
	t.closeLocked()
	t.gen++
	gen := t.gen
	connCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = StateConnecting
	t.mu.Unlock()

	go func() {
		sock, err := t.dial(connCtx, t.url, token)

		t.mu.Lock()
		if t.gen != gen {
			// Closed mid-connect. Release whatever the dial produced.
			t.mu.Unlock()
			if sock != nil {
				_ = sock.Close()
			}
			return
		}
		if err != nil {
			t.state = StateDisconnected
			t.mu.Unlock()
			if connCtx.Err() == nil && onError != nil {
				onError(err)
			}
			return
		}
		t.sock = sock
		t.state = StateConnected
		t.mu.Unlock()

		var lastErr error
		for ev := range sock.Listen(connCtx) {
			if ev.Err != nil {
				lastErr = ev.Err
				break
			}
			switch ev.Name {
			case chatsock.EventMessageSent, chatsock.EventMessageNew:
				var m api.Message
				if err := json.Unmarshal(ev.Data, &m); err != nil {
					continue // skip malformed events
				}
				if m.ChatID != chatID {
					continue
				}
				if deliver != nil {
					deliver(m)
				}
			case chatsock.EventError:
				var p chatsock.ErrorPayload
				_ = json.Unmarshal(ev.Data, &p)
				if onError != nil && p.Message != "" {
					onError(errors.New(p.Message))
				}
			}
		}

		t.mu.Lock()
		stale := t.gen != gen
		if !stale {
			t.state = StateDisconnected
			t.sock = nil
		}
		t.mu.Unlock()
		if !stale {
			_ = sock.Close()
			if lastErr != nil && connCtx.Err() == nil && onError != nil {
				onError(lastErr)
			}
		}
	}()
}

// Send emits an outbound message event. Valid only while connected;
// fire-and-forget, the confirmation arrives as an inbound message:sent
// event.
func (t *Transport) Send(ctx context.Context, chatID, content string) error {
	t.mu.Lock()
	sock := t.sock
	connected := t.state == StateConnected
	t.mu.Unlock()
	if !connected || sock == nil {
		return ErrNotConnected
	}
	return sock.Emit(ctx, chatsock.EventMessageSend, chatsock.SendPayload{
		ChatID:  chatID,
		Content: content,
	})
}

// Close tears down the connection. Safe to call in any state, including
// mid-connect: the dial goroutine detects the generation bump and
// releases its socket.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *Transport) closeLocked() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.sock != nil {
		_ = t.sock.Close()
		t.sock = nil
	}
	t.state = StateDisconnected
}
