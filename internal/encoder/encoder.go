// Package encoder translates the agent runtime's execution trace into a
// well-formed event sequence: RunStarted first, entity start/delta/end
// bracketing in causal order, and exactly one terminal event no matter how
// the runtime fails. An unterminated stream is the one unrecoverable
// client-visible failure mode, so any uncaught failure during translation
// becomes a RunError rather than silence.
package encoder

import (
	"context"
	"fmt"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/model"
	"github.com/sline-ai/agent-gateway/internal/runtime"
	"github.com/sline-ai/agent-gateway/pkg/logger"
)

// EmitFunc receives encoded events in order. An error aborts encoding; it
// signals the outbound channel is gone, so no further events are attempted.
type EmitFunc func(agui.Event) error

// Encoder drives one producer run per call.
type Encoder struct {
	logger *logger.Logger
}

// New creates an encoder.
func New(log *logger.Logger) *Encoder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Encoder{logger: log}
}

// translation tracks open entities so every start gets a matching end on
// the success path.
type translation struct {
	rc   *agui.RunContext
	emit EmitFunc

	messageID   string
	openTools   map[string]string // trace ref -> tool call id
	toolOrder   []string
	openStepID  string
	emitFailed  bool
}

// Run translates the producer's trace for the given run context. The
// returned error reports emit failures (consumer gone); producer failures
// and panics are converted into the RunError terminal event instead.
func (e *Encoder) Run(ctx context.Context, rc *agui.RunContext, producer runtime.Producer, history []*model.Message, emit EmitFunc) error {
	t := &translation{
		rc:        rc,
		emit:      emit,
		openTools: make(map[string]string),
	}

	if err := emit(agui.RunStarted{ThreadID: rc.ThreadID, RunID: rc.RunID}); err != nil {
		return err
	}

	runErr := e.drive(ctx, t, producer, history)

	if t.emitFailed {
		// The outbound channel is gone; nothing more can reach the client.
		return runErr
	}

	if runErr != nil {
		e.logger.Error("run failed", "thread_id", rc.ThreadID, "run_id", rc.RunID, "error", runErr)
		return emit(agui.RunError{ThreadID: rc.ThreadID, RunID: rc.RunID, Message: runErr.Error()})
	}

	if err := t.closeOpen(); err != nil {
		return err
	}
	return emit(agui.RunFinished{ThreadID: rc.ThreadID, RunID: rc.RunID})
}

// drive runs the producer with panic containment.
func (e *Encoder) drive(ctx context.Context, t *translation, producer runtime.Producer, history []*model.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("producer panicked", "run_id", t.rc.RunID, "panic", r)
			err = fmt.Errorf("agent runtime panic: %v", r)
		}
	}()

	return producer.Run(ctx, history, func(fact runtime.Fact) error {
		if err := t.apply(fact); err != nil {
			t.emitFailed = true
			return err
		}
		return nil
	})
}

// apply translates one trace fact into zero or more events.
func (t *translation) apply(fact runtime.Fact) error {
	switch f := fact.(type) {
	case runtime.TextStart:
		return t.ensureMessage()

	case runtime.TextDelta:
		if f.Text == "" {
			return nil
		}
		if err := t.ensureMessage(); err != nil {
			return err
		}
		return t.emit(agui.TextMessageContent{MessageID: t.messageID, Delta: f.Text})

	case runtime.TextEnd:
		// Reasoning engines run multiple model phases per turn; the message
		// stays open until the run ends so later phases append to it.
		return nil

	case runtime.StepStart:
		if err := t.finishStep(); err != nil {
			return err
		}
		t.openStepID = t.rc.NextStepID()
		return t.emit(agui.StepStarted{StepID: t.openStepID, StepName: f.Name})

	case runtime.StepEnd:
		return t.finishStep()

	case runtime.ToolStart:
		// A tool call needs a message to attach to even when the model has
		// produced no text yet.
		if err := t.ensureMessage(); err != nil {
			return err
		}
		if t.openStepID == "" {
			t.openStepID = t.rc.NextStepID()
			if err := t.emit(agui.StepStarted{StepID: t.openStepID, StepName: f.Name}); err != nil {
				return err
			}
		}
		id := t.rc.NextToolCallID()
		t.openTools[f.Ref] = id
		t.toolOrder = append(t.toolOrder, f.Ref)
		return t.emit(agui.ToolCallStart{ToolCallID: id, ToolName: f.Name, ParentMessageID: t.messageID})

	case runtime.ToolArgs:
		id, ok := t.openTools[f.Ref]
		if !ok {
			return nil
		}
		return t.emit(agui.ToolCallArgs{ToolCallID: id, Delta: f.Delta})

	case runtime.ToolEnd:
		id, ok := t.openTools[f.Ref]
		if !ok {
			return nil
		}
		delete(t.openTools, f.Ref)
		result := f.Result
		return t.emit(agui.ToolCallEnd{ToolCallID: id, Result: &result})
	}

	return nil
}

// ensureMessage starts the assistant message on first use.
func (t *translation) ensureMessage() error {
	if t.messageID != "" {
		return nil
	}
	t.messageID = t.rc.NextMessageID()
	return t.emit(agui.TextMessageStart{MessageID: t.messageID, Role: string(model.RoleAssistant)})
}

// finishStep closes the open step, if any.
func (t *translation) finishStep() error {
	if t.openStepID == "" {
		return nil
	}
	id := t.openStepID
	t.openStepID = ""
	return t.emit(agui.StepFinished{StepID: id})
}

// closeOpen ends every still-open entity so the success-path sequence is
// fully bracketed: tools first, then the step, then the message.
func (t *translation) closeOpen() error {
	for _, ref := range t.toolOrder {
		id, ok := t.openTools[ref]
		if !ok {
			continue
		}
		delete(t.openTools, ref)
		if err := t.emit(agui.ToolCallEnd{ToolCallID: id, Result: nil}); err != nil {
			return err
		}
	}
	if err := t.finishStep(); err != nil {
		return err
	}
	if t.messageID != "" {
		if err := t.emit(agui.TextMessageEnd{MessageID: t.messageID}); err != nil {
			return err
		}
		t.messageID = ""
	}
	return nil
}
