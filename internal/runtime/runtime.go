// Package runtime defines the boundary to the agent's reasoning engine. The
// engine is opaque here: all the gateway sees is an ordered trace of facts
// about model text and tool execution, which the encoder turns into stream
// events.
package runtime

import (
	"context"

	"github.com/sline-ai/agent-gateway/internal/model"
)

// Fact is one observation from the agent runtime's execution trace.
type Fact interface {
	isFact()
}

// TextStart marks the beginning of assistant text output.
type TextStart struct{}

// TextDelta carries one chunk of assistant text.
type TextDelta struct {
	Text string
}

// TextEnd marks the end of assistant text output.
type TextEnd struct{}

// ToolStart marks a tool invocation. Ref is the runtime's own correlation
// key for this invocation; it is local to the trace and never leaves it.
type ToolStart struct {
	Ref  string
	Name string
}

// ToolArgs carries one fragment of the tool's argument string.
type ToolArgs struct {
	Ref   string
	Delta string
}

// ToolEnd marks tool completion. A failed tool reports its error in Result;
// it does not abort the run.
type ToolEnd struct {
	Ref    string
	Result string
}

// StepStart opens a reasoning/tool phase.
type StepStart struct {
	Name string
}

// StepEnd closes the open phase.
type StepEnd struct{}

func (TextStart) isFact() {}
func (TextDelta) isFact() {}
func (TextEnd) isFact()   {}
func (ToolStart) isFact() {}
func (ToolArgs) isFact()  {}
func (ToolEnd) isFact()   {}
func (StepStart) isFact() {}
func (StepEnd) isFact()   {}

// EmitFunc receives trace facts in causal order. Returning an error stops
// the producer.
type EmitFunc func(Fact) error

// Producer runs the agent once against the given history (ending with the
// new user message) and emits its trace. A non-nil error means the run
// failed; whatever facts were emitted before the failure stand.
type Producer interface {
	Run(ctx context.Context, history []*model.Message, emit EmitFunc) error
}
