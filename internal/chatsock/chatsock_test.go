package chatsock

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockPush is a minimal push channel server for testing.
func mockPush(t *testing.T, handler func(ctx context.Context, r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer func() { _ = conn.CloseNow() }()
		handler(r.Context(), r, conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialReceivesReady(t *testing.T) {
	var gotAuth string
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		gotAuth = r.Header.Get("Authorization")
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ready"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "tok123")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization = %q, want Bearer tok123", gotAuth)
	}
}

func TestDialRejectedByErrorFrame(t *testing.T) {
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"error","data":{"message":"invalid token"}}`))
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, wsURL(srv), "bad")
	if err == nil {
		t.Fatal("expected error for rejected handshake")
	}
	if !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("error should carry the server message, got: %v", err)
	}
}

func TestDialRejectsUnexpectedFrame(t *testing.T) {
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"message:new","data":{}}`))
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, wsURL(srv), "t"); err == nil {
		t.Fatal("expected error for non-ready first frame")
	}
}

func TestEmitWritesFrame(t *testing.T) {
	frames := make(chan frame, 1)
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ready"}`))
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var f frame
		_ = json.Unmarshal(data, &f)
		frames <- f
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "t")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Emit(ctx, EventMessageSend, SendPayload{ChatID: "c1", Content: "hello"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case f := <-frames:
		if f.Event != EventMessageSend {
			t.Errorf("event = %q, want %q", f.Event, EventMessageSend)
		}
		var p SendPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if p.ChatID != "c1" || p.Content != "hello" {
			t.Errorf("payload = %+v", p)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for frame")
	}
}

func TestListenDeliversEventsAndFiltersPings(t *testing.T) {
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ready"}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ping"}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"message:new","data":{"id":"m1","chat":"c1","senderRole":"admin","content":"hi"}}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "t")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	events := c.Listen(ctx)
	select {
	case ev := <-events:
		if ev.Err != nil {
			t.Fatalf("event error: %v", ev.Err)
		}
		if ev.Name != EventMessageNew {
			t.Errorf("name = %q, want %q (pings must be filtered)", ev.Name, EventMessageNew)
		}
		var payload map[string]any
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload["id"] != "m1" {
			t.Errorf("id = %v, want m1", payload["id"])
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestListenPingTimeoutOnSilence(t *testing.T) {
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ready"}`))
		// Send nothing after ready. Simulates a half-dead connection.
		time.Sleep(2 * time.Second)
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "t")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	events := c.ListenWithTimeout(ctx, 200*time.Millisecond)
	select {
	case ev := <-events:
		if ev.Err == nil {
			t.Fatal("expected error from ping timeout")
		}
		if !errors.Is(ev.Err, ErrPingTimeout) {
			t.Fatalf("expected ErrPingTimeout, got: %v", ev.Err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for ping timeout event")
	}
}

func TestListenPingsKeepConnectionAlive(t *testing.T) {
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ready"}`))
		for i := 0; i < 5; i++ {
			if err := conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ping"}`)); err != nil {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"message:sent","data":{"id":"m2","chat":"c1","senderRole":"customer","content":"hello"}}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "t")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	// Timeout is 500ms, but pings arrive every 100ms. Must stay alive.
	events := c.ListenWithTimeout(ctx, 500*time.Millisecond)
	select {
	case ev := <-events:
		if ev.Err != nil {
			t.Fatalf("unexpected error (pings should have kept connection alive): %v", ev.Err)
		}
		if ev.Name != EventMessageSent {
			t.Errorf("name = %q, want %q", ev.Name, EventMessageSent)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestListenChannelClosesOnDisconnect(t *testing.T) {
	srv := mockPush(t, func(ctx context.Context, r *http.Request, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"ready"}`))
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "t")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	events := c.Listen(ctx)
	select {
	case ev := <-events:
		if ev.Err == nil {
			t.Fatal("expected error event on disconnect")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for disconnect")
	}
	if _, open := <-events; open {
		t.Fatal("channel should close after the error event")
	}
}
