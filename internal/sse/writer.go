// Package sse implements the transport codec: one event per self-delimited
// SSE frame outbound, and a chunk-tolerant frame decoder inbound.
package sse

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sline-ai/agent-gateway/internal/agui"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// PrepareHeaders sets the response headers for an SSE stream.
func PrepareHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

// Writer serializes events onto an SSE stream. Every event is flushed the
// moment it is written; buffering events would defeat streaming and is a
// correctness bug, not a performance one.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter wraps a ResponseWriter for event output.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes one event as a single frame and flushes.
func (sw *Writer) WriteEvent(ev agui.Event) error {
	data, err := agui.Marshal(ev)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.flusher.Flush()

	return nil
}
