// Package reducer folds an ordered event sequence into presentation state.
// The fold is single-threaded and strictly order-preserving; it holds no
// reference to any transport or rendering concern, so it is the same code
// path for live streaming and for replaying a persisted transcript.
package reducer

import (
	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/model"
)

// State is the accumulated view of one run: an ordered message list for
// display plus keyed maps for delta routing.
type State struct {
	// Messages holds assistant messages in arrival order.
	Messages []*model.Message

	ThreadID string
	RunID    string

	// Started is set by RunStarted, Finished by either terminal event.
	Started  bool
	Finished bool

	// Err carries the RunError text. It is a distinct failure signal, never
	// appended into message content.
	Err string

	byMessage map[string]*model.Message
	toolCalls map[string]*model.ToolCall

	activeMessageID string
	activeStepID    string
}

// New creates an empty reducer state.
func New() *State {
	return &State{
		byMessage: make(map[string]*model.Message),
		toolCalls: make(map[string]*model.ToolCall),
	}
}

// Apply folds one event into the state. Events arriving after a terminal
// event are ignored; the consumer must never hang or mutate past it.
// Malformed orderings (deltas for unknown or stale ids, duplicate starts)
// are ignored defensively rather than crashing.
func (s *State) Apply(ev agui.Event) {
	if s.Finished {
		return
	}

	switch e := ev.(type) {
	case agui.RunStarted:
		s.Started = true
		s.ThreadID = e.ThreadID
		s.RunID = e.RunID

	case agui.RunFinished:
		s.closeActive(false)
		s.Finished = true

	case agui.RunError:
		// Entities left open are truncated, not discarded: the partial
		// content is more useful than none.
		s.closeActive(true)
		s.Err = e.Message
		s.Finished = true

	case agui.StepStarted:
		s.activeStepID = e.StepID

	case agui.StepFinished:
		if s.activeStepID == e.StepID {
			s.activeStepID = ""
		}

	case agui.TextMessageStart:
		if _, exists := s.byMessage[e.MessageID]; exists {
			return
		}
		role := model.Role(e.Role)
		if role == "" {
			role = model.RoleAssistant
		}
		msg := &model.Message{ID: e.MessageID, Role: role}
		s.byMessage[e.MessageID] = msg
		// Appended immediately so tool calls started before any content
		// delta have somewhere to attach.
		s.Messages = append(s.Messages, msg)
		s.activeMessageID = e.MessageID

	case agui.TextMessageContent:
		if e.MessageID != s.activeMessageID {
			return
		}
		if msg := s.byMessage[e.MessageID]; msg != nil {
			msg.Content += e.Delta
		}

	case agui.TextMessageEnd:
		if e.MessageID == s.activeMessageID {
			s.activeMessageID = ""
		}

	case agui.ToolCallStart:
		if _, exists := s.toolCalls[e.ToolCallID]; exists {
			return
		}
		tc := &model.ToolCall{
			ID:     e.ToolCallID,
			Name:   e.ToolName,
			Status: model.ToolCallPending,
		}
		s.toolCalls[e.ToolCallID] = tc
		if owner := s.owningMessage(e.ParentMessageID); owner != nil {
			owner.ToolCalls = append(owner.ToolCalls, tc)
		}

	case agui.ToolCallArgs:
		if tc := s.toolCalls[e.ToolCallID]; tc != nil && tc.Status == model.ToolCallPending {
			tc.Args += e.Delta
		}

	case agui.ToolCallEnd:
		if tc := s.toolCalls[e.ToolCallID]; tc != nil && tc.Status == model.ToolCallPending {
			tc.Result = e.Result
			tc.Status = model.ToolCallComplete
		}
	}
}

// Message returns the message with the given id, or nil.
func (s *State) Message(id string) *model.Message {
	return s.byMessage[id]
}

// ToolCall returns the tool call with the given id, or nil.
func (s *State) ToolCall(id string) *model.ToolCall {
	return s.toolCalls[id]
}

// owningMessage resolves the message a new tool call attaches to: the
// explicit parent when known, otherwise the active message, otherwise the
// most recent one.
func (s *State) owningMessage(parentID string) *model.Message {
	if parentID != "" {
		if msg := s.byMessage[parentID]; msg != nil {
			return msg
		}
	}
	if s.activeMessageID != "" {
		return s.byMessage[s.activeMessageID]
	}
	if n := len(s.Messages); n > 0 {
		return s.Messages[n-1]
	}
	return nil
}

// closeActive finalizes whatever is still open at a terminal event. On the
// error path the open message is kept with its partial content and marked
// truncated.
func (s *State) closeActive(truncated bool) {
	if s.activeMessageID != "" {
		if msg := s.byMessage[s.activeMessageID]; msg != nil && truncated {
			msg.Truncated = true
		}
		s.activeMessageID = ""
	}
	s.activeStepID = ""
}
