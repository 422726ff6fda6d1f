package api

import (
	"context"
	"net/url"
)

// GetMine retrieves the support chat owned by the current user.
// Returns a not-found APIError when no chat exists yet.
func (s ChatsService) GetMine(ctx context.Context) (*Chat, error) {
	var chat Chat
	if err := s.do(ctx, "GET", s.apiPath("/chats/my"), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// Create opens a new support chat for the current user.
func (s ChatsService) Create(ctx context.Context) (*Chat, error) {
	var chat Chat
	if err := s.do(ctx, "POST", s.apiPath("/chats"), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// EnsureMine returns the current user's chat, creating it lazily when
// the backend has none yet.
func (s ChatsService) EnsureMine(ctx context.Context) (*Chat, error) {
	chat, err := s.GetMine(ctx)
	if err == nil {
		return chat, nil
	}
	if !IsNotFoundError(err) {
		return nil, err
	}
	return s.Create(ctx)
}

// SocketURL converts a storefront base URL to its push channel endpoint.
func SocketURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL // fallback
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}
