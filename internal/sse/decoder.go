package sse

import (
	"bytes"
	"strings"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/pkg/logger"
	"github.com/sline-ai/agent-gateway/pkg/metrics"
)

var frameDelimiter = []byte("\n\n")

// Decoder reassembles events from a byte stream whose chunk boundaries do
// not align with frame boundaries. An incomplete trailing fragment is kept
// until the next chunk arrives. A frame that fails to parse is dropped with
// a diagnostic; decoding continues.
type Decoder struct {
	pending []byte
	logger  *logger.Logger
}

// NewDecoder creates a decoder.
func NewDecoder(log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{logger: log}
}

// Feed appends a chunk and returns every event completed by it, in order.
func (d *Decoder) Feed(chunk []byte) []agui.Event {
	d.pending = append(d.pending, chunk...)

	var events []agui.Event
	for {
		idx := bytes.Index(d.pending, frameDelimiter)
		if idx < 0 {
			break
		}

		frame := d.pending[:idx]
		d.pending = d.pending[idx+len(frameDelimiter):]

		ev, ok := d.parseFrame(frame)
		if ok {
			events = append(events, ev)
		}
	}

	return events
}

// Pending reports whether an incomplete frame fragment is buffered.
func (d *Decoder) Pending() bool {
	return len(bytes.TrimSpace(d.pending)) > 0
}

// parseFrame extracts the data payload of one SSE frame and decodes it.
// Comment lines and non-data fields are ignored per the SSE format.
func (d *Decoder) parseFrame(frame []byte) (agui.Event, bool) {
	var payload strings.Builder
	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if data, found := strings.CutPrefix(line, "data:"); found {
			payload.WriteString(strings.TrimPrefix(data, " "))
		}
	}

	if payload.Len() == 0 {
		// Heartbeats and comments carry no data payload.
		return nil, false
	}

	ev, err := agui.Unmarshal([]byte(payload.String()))
	if err != nil {
		d.logger.Warn("dropping unparseable frame", "error", err, "frame_bytes", len(frame))
		metrics.DroppedFramesTotal.Inc()
		return nil, false
	}

	return ev, true
}
