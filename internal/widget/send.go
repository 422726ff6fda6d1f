package widget

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// pendingSend is an outbound message handed to the push channel whose
// confirmation echo has not arrived yet.
type pendingSend struct {
	content string
	sentAt  time.Time
}

// Send delivers an outgoing message, preferring the push channel and
// falling back to REST within the same call. On the push path the
// message becomes visible only when the server echoes it back; on the
// REST path the stored copy is appended exactly once on success.
//
// Empty (or whitespace-only) content and sends before a conversation is
// loaded are silent no-ops. A REST failure is returned to the caller so
// the input can be preserved for retry, and surfaces on the status line.
func (s *Session) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	if !s.opened || s.chat == nil {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	chatID := s.chat.ID
	s.mu.Unlock()

	if s.transport.State() == StateConnected {
		handle := uuid.NewString()
		s.mu.Lock()
		s.pending[handle] = pendingSend{content: content, sentAt: time.Now()}
		s.mu.Unlock()

		if err := s.transport.Send(ctx, chatID, content); err == nil {
			return nil
		}
		// Emit failed before anything reached the server; withdraw the
		// handle and fall through to REST.
		s.mu.Lock()
		delete(s.pending, handle)
		s.mu.Unlock()
	}

	return s.sendREST(ctx, gen, chatID, content)
}

func (s *Session) sendREST(ctx context.Context, gen uint64, chatID, content string) error {
	stored, err := s.client.Messages().Create(ctx, chatID, content)
	if err != nil {
		s.setStatus("send failed: " + err.Error())
		return err
	}

	s.mu.Lock()
	stale := s.gen != gen || !s.opened
	s.mu.Unlock()
	if stale {
		// The session closed while the request was in flight. The server
		// has the message; the next open's history load shows it.
		return nil
	}

	if s.log.Append(*stored) && s.onMessage != nil {
		s.onMessage(*stored)
	}
	s.setStatus("")
	return nil
}

// resolvePendingByContent retires the oldest pending push send whose
// content matches an arriving customer echo. Matching by content is a
// heuristic: the push protocol carries no client-side handle, so the
// echo is the only confirmation the channel gives us.
func (s *Session) resolvePendingByContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		oldest   string
		oldestAt time.Time
	)
	for handle, p := range s.pending {
		if p.content != content {
			continue
		}
		if oldest == "" || p.sentAt.Before(oldestAt) {
			oldest = handle
			oldestAt = p.sentAt
		}
	}
	if oldest != "" {
		delete(s.pending, oldest)
	}
}

// PendingSends reports how many push sends still await their echo.
func (s *Session) PendingSends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
