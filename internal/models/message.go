package models

// Role tags a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleLoading marks the transient placeholder shown while a reply is pending.
	// It never leaves the client.
	RoleLoading Role = "loading"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleLoading:
		return true
	}
	return false
}

// Transient reports whether messages with this role are display-only
func (r Role) Transient() bool {
	return r == RoleLoading
}

// Message is a single entry of a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// HistoryEntry is the wire shape of a message sent to the chat endpoint
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string         `json:"message"`
	History []HistoryEntry `json:"history"`
}

// ToHistory converts messages to wire history, dropping transient entries
func ToHistory(msgs []Message) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.Role.Transient() {
			continue
		}
		out = append(out, HistoryEntry{Role: string(m.Role), Content: m.Content})
	}
	return out
}
