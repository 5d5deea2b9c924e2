package model

import "github.com/google/uuid"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation history.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// System, User and Assistant are shorthands for NewMessage.
func System(content string) Message { return NewMessage(RoleSystem, content) }
func User(content string) Message { return NewMessage(RoleUser, content) }
func Assistant(content string) Message { return NewMessage(RoleAssistant, content) }

// EnsureIDs assigns IDs to messages that arrived without one (e.g. decoded JSON).
func EnsureIDs(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		out[i] = m
	}
	return out
}
