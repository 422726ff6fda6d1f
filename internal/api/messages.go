package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// List retrieves the ordered transcript for a chat.
func (s MessagesService) List(ctx context.Context, chatID string) ([]Message, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	path := fmt.Sprintf("/chats/%s/messages", chatID)
	var messages []Message
	if err := s.do(ctx, http.MethodGet, s.apiPath(path), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateMessageParams holds parameters for sending a message over REST.
type CreateMessageParams struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// Create stores a new message in a chat and returns the stored copy.
func (s MessagesService) Create(ctx context.Context, chatID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}
	params := CreateMessageParams{ChatID: chatID, Content: content}
	var message Message
	if err := s.do(ctx, http.MethodPost, s.apiPath("/messages"), params, &message); err != nil {
		return nil, err
	}
	return &message, nil
}
