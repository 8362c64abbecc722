// Package client provides the consuming side of a run stream: it reads raw
// bytes from a connection, reassembles frames, and folds the events into
// reducer state. The Slack gateway and any reconnecting UI embed this.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/reducer"
	"github.com/sline-ai/agent-gateway/internal/sse"
	"github.com/sline-ai/agent-gateway/pkg/logger"
)

// ErrIdleTimeout is returned when no event arrives within the idle window.
var ErrIdleTimeout = errors.New("stream idle timeout")

const readBufferSize = 4096

// Consumer reads one run's event stream to its terminal event.
type Consumer struct {
	idleTimeout time.Duration
	logger      *logger.Logger
}

// NewConsumer creates a consumer. idleTimeout bounds the wait for the next
// event; zero disables the watchdog.
func NewConsumer(idleTimeout time.Duration, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Consumer{idleTimeout: idleTimeout, logger: log}
}

type readResult struct {
	data []byte
	err  error
}

// Consume reads r until a terminal event, the context is cancelled, the
// connection drops, or the idle window elapses. The returned state is always
// the partially-built state so far; it is never rolled back. A connection
// that ends before a terminal event yields a synthesized RunError in the
// state and a non-nil error.
func (c *Consumer) Consume(ctx context.Context, r io.Reader) (*reducer.State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := reducer.New()
	dec := sse.NewDecoder(c.logger)

	chunks := make(chan readResult)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, readBufferSize)
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- readResult{data: buf[:n]}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case chunks <- readResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	var idle *time.Timer
	var idleC <-chan time.Time
	if c.idleTimeout > 0 {
		idle = time.NewTimer(c.idleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	for {
		select {
		case <-ctx.Done():
			// Torn down mid-stream: keep what was built, apply nothing more.
			return state, ctx.Err()

		case <-idleC:
			c.synthesizeError(state, "no event within idle window")
			return state, ErrIdleTimeout

		case res, ok := <-chunks:
			if !ok {
				return state, ctx.Err()
			}
			if res.err != nil {
				if errors.Is(res.err, io.EOF) && state.Finished {
					return state, nil
				}
				c.synthesizeError(state, "connection terminated before terminal event")
				if errors.Is(res.err, io.EOF) {
					return state, fmt.Errorf("stream ended before terminal event")
				}
				return state, fmt.Errorf("stream read failed: %w", res.err)
			}

			for _, ev := range dec.Feed(res.data) {
				state.Apply(ev)
				if agui.IsTerminal(ev) {
					// Never wait past the terminal event.
					return state, nil
				}
			}

			if idle != nil {
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(c.idleTimeout)
			}
		}
	}
}

// synthesizeError finalizes the state with a local RunError so partial
// messages are kept in a truncated, readable form.
func (c *Consumer) synthesizeError(state *reducer.State, reason string) {
	if state.Finished {
		return
	}
	c.logger.Warn("synthesizing run error", "reason", reason, "thread_id", state.ThreadID, "run_id", state.RunID)
	state.Apply(agui.RunError{
		ThreadID: state.ThreadID,
		RunID:    state.RunID,
		Message:  reason,
	})
}
