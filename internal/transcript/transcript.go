// Package transcript holds the in-memory message log for the active
// support chat.
//
// Three independent sources feed the log: the initial REST load, the
// background poll, and the push channel. Any two of them can observe the
// same message, and their relative order is not controlled by the
// client. The log is append-only and deduplicates by message ID, which
// is what keeps the visible transcript free of duplicates regardless of
// which channel delivered a message first.
package transcript

import (
	"sync"

	"github.com/shoplane/schat/internal/api"
)

// Log is an append-only, deduplicated, order-preserving message store
// scoped to exactly one chat ID at a time. Safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	chatID string
	order  []api.Message
	seen   map[string]struct{}
}

// New returns an empty, unbound log.
func New() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// Bind scopes the log to a chat. Binding to a different chat than the
// current one clears the log first; messages from two chats are never
// merged.
func (l *Log) Bind(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chatID != chatID {
		l.resetLocked()
	}
	l.chatID = chatID
}

// ChatID returns the chat the log is currently bound to.
func (l *Log) ChatID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chatID
}

// Append inserts a message at the end of the visible order. The call is
// a no-op when a message with the same ID is already present (the
// first-seen position wins) or when the message belongs to a different
// chat than the log is bound to. Reports whether the message was added.
func (l *Log) Append(m api.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(m)
}

func (l *Log) appendLocked(m api.Message) bool {
	if m.ID == "" {
		return false
	}
	if l.chatID != "" && m.ChatID != l.chatID {
		return false
	}
	if _, dup := l.seen[m.ID]; dup {
		return false
	}
	l.seen[m.ID] = struct{}{}
	l.order = append(l.order, m)
	return true
}

// Merge appends every message not already present, in the given order.
// Existing entries are never reordered or dropped, so locally appended
// messages the server has not reflected yet survive a stale fetch.
// Returns the messages that were actually added.
func (l *Log) Merge(messages []api.Message) []api.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var added []api.Message
	for _, m := range messages {
		if l.appendLocked(m) {
			added = append(added, m)
		}
	}
	return added
}

// ReplaceAll discards the current contents and installs a new ordered
// sequence. Used after a full reload; messages for a foreign chat are
// still skipped.
func (l *Log) ReplaceAll(messages []api.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
	for _, m := range messages {
		l.appendLocked(m)
	}
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

func (l *Log) resetLocked() {
	l.order = nil
	l.seen = make(map[string]struct{})
}

// Messages returns a copy of the log in visible order.
func (l *Log) Messages() []api.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]api.Message, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Last returns the most recent message, if any.
func (l *Log) Last() (api.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.order) == 0 {
		return api.Message{}, false
	}
	return l.order[len(l.order)-1], true
}
