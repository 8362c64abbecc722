// Package model defines data structures for the agent gateway.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCallStatus represents the lifecycle state of a tool call.
type ToolCallStatus string

const (
	ToolCallPending  ToolCallStatus = "pending"
	ToolCallComplete ToolCallStatus = "complete"
)

// ToolCall represents one tool invocation attached to an assistant message.
// Args grows by concatenating streamed argument fragments. Once Status is
// complete the tool call is immutable.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   string         `json:"args"`
	Result *string        `json:"result,omitempty"`
	Status ToolCallStatus `json:"status"`
}

// Message represents one conversation message. Content grows only by append
// during an active run. A message is owned exclusively by its thread.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	ToolCalls []*ToolCall `json:"toolCalls,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`

	// Truncated marks a message that was finalized by a run error before
	// its end event arrived. The partial content is kept.
	Truncated bool `json:"truncated,omitempty"`
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := *m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]*ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c := *tc
			if tc.Result != nil {
				r := *tc.Result
				c.Result = &r
			}
			out.ToolCalls[i] = &c
		}
	}
	return &out
}
