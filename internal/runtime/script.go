package runtime

import (
	"context"

	"github.com/sline-ai/agent-gateway/internal/model"
)

// ScriptProducer replays a fixed sequence of facts. It backs tests and the
// no-API-key development mode.
type ScriptProducer struct {
	Facts []Fact
	// Err, if set, is returned after Facts are emitted, simulating a
	// runtime failure mid-trace.
	Err error
	// Panic, if set, panics after Facts are emitted, simulating an
	// uncaught translation failure.
	Panic string
}

// Run emits the scripted facts in order.
func (p *ScriptProducer) Run(ctx context.Context, history []*model.Message, emit EmitFunc) error {
	for _, fact := range p.Facts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(fact); err != nil {
			return err
		}
	}
	if p.Panic != "" {
		panic(p.Panic)
	}
	return p.Err
}

// EchoProducer answers with a canned acknowledgement of the last user
// message. Used when no LLM credentials are configured.
type EchoProducer struct{}

// Run emits a single text message echoing the request.
func (EchoProducer) Run(ctx context.Context, history []*model.Message, emit EmitFunc) error {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleUser {
			last = history[i].Content
			break
		}
	}

	if err := emit(TextStart{}); err != nil {
		return err
	}
	if err := emit(TextDelta{Text: "No model is configured. You said: " + last}); err != nil {
		return err
	}
	return emit(TextEnd{})
}
