// Package widget implements the support chat session: the controller
// that keeps one conversation consistent across the initial REST load,
// the background poll, and the push channel, and the coordinator that
// routes outgoing messages over the best available path.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/poll"
	"github.com/shoplane/schat/internal/transcript"
)

var (
	// ErrNotAuthenticated is returned when the session is opened without
	// a token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAdminAccount is returned when the authenticated user is a
	// support agent. The customer widget never opens for admin accounts.
	ErrAdminAccount = errors.New("admin accounts use the dashboard, not the chat widget")
)

// Options configures a Session.
type Options struct {
	// PollInterval between background refreshes. Defaults to
	// poll.DefaultInterval.
	PollInterval time.Duration

	// Dialer for the push channel. Defaults to the real endpoint;
	// tests substitute fakes.
	Dialer Dialer

	// OnMessage, when set, is invoked for every message that becomes
	// visible in the transcript, from any source. Called without
	// internal locks held beyond the log's own.
	OnMessage func(api.Message)

	// OnStatus, when set, is invoked whenever the status line changes.
	OnStatus func(string)
}

// Session gates the message log, poll scheduler, and push transport
// behind the widget's open/auth/role preconditions and owns the single
// error/status surface. All errors from child components are coalesced
// into one status string; the latest replaces the previous.
type Session struct {
	client    *api.Client
	transport *Transport
	poller    *poll.Scheduler
	log       *transcript.Log
	interval  time.Duration
	onMessage func(api.Message)
	onStatus  func(string)

	mu        sync.Mutex
	opened    bool
	gen       uint64 // bumped on every open/close; stale async results are discarded
	runCancel context.CancelFunc
	profile   *api.Profile
	chat      *api.Chat
	status    string
	pending   map[string]pendingSend
}

// NewSession creates a closed session around an authenticated API client.
func NewSession(client *api.Client, opts Options) *Session {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = poll.DefaultInterval
	}
	return &Session{
		client:    client,
		transport: NewTransport(client.SocketURL(), opts.Dialer),
		poller:    poll.New(),
		log:       transcript.New(),
		interval:  interval,
		onMessage: opts.OnMessage,
		onStatus:  opts.OnStatus,
		pending:   make(map[string]pendingSend),
	}
}

// Open loads the conversation and starts the poll scheduler and push
// channel. Preconditions: a token is configured and the account is not
// an admin. A load failure of the history alone is recoverable (the
// next poll tick retries); profile/chat failures abort the open.
func (s *Session) Open(ctx context.Context) error {
	if s.client.Token == "" {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Profile (identity/role gate) and chat (lazily created server-side)
	// are independent fetches.
	var (
		profile *api.Profile
		chat    *api.Chat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.client.Profile().Get(gctx)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		c, err := s.client.Chats().EnsureMine(gctx)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		chat = c
		return nil
	})
	if err := g.Wait(); err != nil {
		s.setStatus("could not open chat: " + err.Error())
		return err
	}
	if profile.IsAdmin() {
		return ErrAdminAccount
	}

	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return nil
	}
	if s.profile != nil && s.profile.ID != profile.ID {
		// Identity changed since the last session: the retained
		// transcript belongs to someone else.
		s.log.Clear()
		s.chat = nil
	}
	s.profile = profile
	s.chat = chat
	s.log.Bind(chat.ID)

	s.opened = true
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	token := s.client.Token
	chatID := chat.ID
	s.mu.Unlock()

	// Initial history load. Failure is non-fatal: the poller retries
	// within one interval.
	if messages, err := s.client.Messages().List(ctx, chatID); err != nil {
		s.setStatus("could not load messages: " + err.Error())
	} else {
		s.applyHistory(gen, messages)
		s.setStatus("")
	}

	s.poller.Start(runCtx, s.interval, func(tickCtx context.Context) {
		s.pollTick(tickCtx, gen, chatID)
	})
	s.transport.Open(runCtx, token, chatID,
		func(m api.Message) { s.deliver(gen, m) },
		func(err error) { s.transportError(gen, err) },
	)
	return nil
}

// Close stops the poll scheduler and tears down the push channel.
// The transcript and conversation are retained in memory for the next
// Open; only an identity change or Reset clears them.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return
	}
	s.opened = false
	s.gen++
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.transport.Close()
	s.poller.Stop()
}

// Reset closes the session and drops the conversation and transcript.
// Used on explicit logout.
func (s *Session) Reset() {
	s.Close()
	s.mu.Lock()
	s.chat = nil
	s.profile = nil
	s.status = ""
	s.pending = make(map[string]pendingSend)
	s.mu.Unlock()
	s.log.Clear()
}

// Messages returns the visible transcript in order.
func (s *Session) Messages() []api.Message {
	return s.log.Messages()
}

// Chat returns the cached conversation, if loaded.
func (s *Session) Chat() *api.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

// Profile returns the cached identity, if loaded.
func (s *Session) Profile() *api.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// State returns the push channel connectivity state.
func (s *Session) State() State {
	return s.transport.State()
}

// Status returns the current user-visible status line ("" when healthy).
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Opened reports whether the widget session is open.
func (s *Session) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	cb := s.onStatus
	s.mu.Unlock()
	if changed && cb != nil {
		cb(status)
	}
}

// applyHistory installs a full reload, unless the session moved on.
func (s *Session) applyHistory(gen uint64, messages []api.Message) {
	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.log.ReplaceAll(messages)
	if s.onMessage != nil {
		for _, m := range s.log.Messages() {
			s.onMessage(m)
		}
	}
}

// pollTick is the silent background refresh. Server results are merged,
// never replace-all: an entry appended locally via the REST fallback
// that the server has not reflected yet must survive the tick.
func (s *Session) pollTick(ctx context.Context, gen uint64, chatID string) {
	messages, err := s.client.Messages().List(ctx, chatID)

	s.mu.Lock()
	stale := s.gen != gen || !s.opened
	s.mu.Unlock()
	if stale || ctx.Err() != nil {
		return // late result for a session that is gone
	}

	if err != nil {
		s.setStatus("refresh failed: " + err.Error())
		return
	}
	added := s.log.Merge(messages)
	s.setStatus("")
	if s.onMessage != nil {
		for _, m := range added {
			s.onMessage(m)
		}
	}
}

// deliver feeds a push event into the log. The transport has already
// filtered foreign chats; the generation check discards events that
// raced with a close.
func (s *Session) deliver(gen uint64, m api.Message) {
	s.mu.Lock()
	stale := s.gen != gen || !s.opened
	s.mu.Unlock()
	if stale {
		return
	}

	if s.log.Append(m) {
		if m.FromCustomer() {
			s.resolvePendingByContent(m.Content)
		}
		if s.onMessage != nil {
			s.onMessage(m)
		}
	}
}

func (s *Session) transportError(gen uint64, err error) {
	s.mu.Lock()
	stale := s.gen != gen || !s.opened
	s.mu.Unlock()
	if stale || err == nil {
		return
	}
	// Non-fatal: polling and the REST fallback remain the backstop.
	s.setStatus("live connection lost: " + err.Error())
}
