package api

import "time"

// Sender roles as stored on a message.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Chat is the single support thread between one customer and the admin
// team. The backend owns it; clients hold a read-only cached copy that
// is replaced wholesale on each successful fetch.
type Chat struct {
	ID     string `json:"id"`
	UserID string `json:"user"`
}

// Message is one entry in a chat transcript.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat"`
	SenderRole string `json:"senderRole"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
}

// CreatedAtTime returns CreatedAt as time.Time.
func (m *Message) CreatedAtTime() time.Time {
	return time.Unix(m.CreatedAt, 0)
}

// FromCustomer reports whether the message was written by the customer.
func (m *Message) FromCustomer() bool {
	return m.SenderRole == RoleCustomer
}

// Profile describes the authenticated user.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsAdmin reports whether the profile belongs to a support agent.
// Admin accounts use the dashboard, not the customer widget.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
