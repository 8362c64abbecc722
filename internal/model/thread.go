package model

import (
	"time"
)

// Thread represents a persistent conversation, identified by the
// (channel id, thread timestamp) pair delivered by the messaging ingress.
type Thread struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channelId"`
	ThreadTS     string    `json:"threadId"`
	Title        string    `json:"title,omitempty"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ThreadSummary is the listing shape for the dashboard.
type ThreadSummary struct {
	ThreadID           string    `json:"threadId"`
	ChannelID          string    `json:"channelId"`
	Title              string    `json:"title"`
	MessageCount       int       `json:"messageCount"`
	UpdatedAt          time.Time `json:"updatedAt"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty"`
}

// ListThreadsResponse is the response for listing threads.
type ListThreadsResponse struct {
	Threads []ThreadSummary `json:"threads"`
}

// ChatRequest is the submit request. Messages carries the client's view of
// the full prior+new list; it is used only to validate continuity, the
// authoritative history comes from the store.
type ChatRequest struct {
	Method   string     `json:"method,omitempty"`
	ThreadID string     `json:"threadId"`
	RunID    string     `json:"runId,omitempty"`
	Messages []*Message `json:"messages,omitempty"`
}

// ThreadResponse is the reload response: the persisted message list in the
// same shape live streaming produces.
type ThreadResponse struct {
	ThreadID string     `json:"threadId"`
	Messages []*Message `json:"messages"`
}
