package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown message role %q", s)
}

// ToolCallStatus is the lifecycle state of a tool call
type ToolCallStatus string

const (
	ToolCallPending ToolCallStatus = "pending"
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallError   ToolCallStatus = "error"
)

// Message is one chronological entry of a conversation
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	// Extensions holds unstructured data from newer clients, passed through untouched
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// ToolCall records a tool invocation requested by the assistant
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    ToolCallStatus  `json:"status"`
}

// ToolResult is the outcome of a tool call; exactly one of Content or Error is set
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the tool call produced an error
func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// NewMessageID returns a time-ordered message id
func NewMessageID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// NewMessage creates a message stamped at now
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        NewMessageID(now),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// Validate checks the tool-call/result shape of a message
func (m *Message) Validate() error {
	calls := make(map[string]struct{}, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		if tc.ID == "" || tc.Name == "" {
			return fmt.Errorf("tool call requires id and name")
		}
		switch tc.Status {
		case ToolCallPending, ToolCallSuccess, ToolCallError:
		default:
			return fmt.Errorf("tool call %s: unknown status %q", tc.ID, tc.Status)
		}
		calls[tc.ID] = struct{}{}
	}
	for _, tr := range m.ToolResults {
		if tr.ToolCallID == "" {
			return fmt.Errorf("tool result requires tool_call_id")
		}
		if (tr.Content == "") == (tr.Error == "") {
			return fmt.Errorf("tool result %s: exactly one of content or error must be set", tr.ToolCallID)
		}
		if len(m.ToolCalls) > 0 {
			if _, ok := calls[tr.ToolCallID]; !ok {
				return fmt.Errorf("tool result references unknown tool call %s", tr.ToolCallID)
			}
		}
	}
	return nil
}
