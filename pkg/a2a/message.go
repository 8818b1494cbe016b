package a2a

import (
	"strings"

	"github.com/google/uuid"
)

// Message roles.  A message is produced either by the caller (user) or by
// the agent itself (progress narration, results).
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

/*
Message represents all non‑artifact communication between client & agent.
It is immutable once created.  TaskID and ContextID are optional: a message
without a TaskID starts a fresh task, a message without a ContextID starts
a fresh conversation.
*/
type Message struct {
	MessageID string         `json:"messageId"`
	Role      string         `json:"role"` // "user" or "agent"
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role string, text string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
	}
}

func NewFileMessage(role string, file *FilePart) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts: []Part{
			{Type: PartTypeFile, File: file},
		},
	}
}

func NewDataMessage(role string, data map[string]any) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts: []Part{
			{Type: PartTypeData, Data: data},
		},
	}
}

/*
Text concatenates the text content of every text part, in order.  Non‑text
parts contribute nothing.  This is the exact view of a message the engine
hands to a capability provider.
*/
func (msg *Message) Text() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		if part.Type == PartTypeText {
			sb.WriteString(part.Text)
		}
	}

	return sb.String()
}

func (msg *Message) String() string {
	return msg.Text()
}
