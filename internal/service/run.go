// Package service provides the conversation-state engine: it serializes
// runs per thread, drives the encoder, and persists reduced transcripts.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/encoder"
	"github.com/sline-ai/agent-gateway/internal/model"
	natsbus "github.com/sline-ai/agent-gateway/internal/nats"
	"github.com/sline-ai/agent-gateway/internal/reducer"
	"github.com/sline-ai/agent-gateway/internal/runtime"
	"github.com/sline-ai/agent-gateway/internal/store"
	"github.com/sline-ai/agent-gateway/pkg/logger"
	"github.com/sline-ai/agent-gateway/pkg/metrics"
)

// ErrRunActive is returned when a submit targets a thread that already has a
// run in flight. Concurrent runs on one thread would interleave writes and
// corrupt the transcript, so the second request is rejected.
var ErrRunActive = errors.New("a run is already active for this thread")

// ErrInvalidRequest is returned when a submit fails continuity validation.
var ErrInvalidRequest = errors.New("invalid chat request")

// RunService executes agent runs against threads.
type RunService struct {
	store     store.Store
	producer  runtime.Producer
	encoder   *encoder.Encoder
	publisher *natsbus.Publisher
	logger    *logger.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunService creates a run service. publisher may be nil when the bus is
// disabled.
func NewRunService(st store.Store, producer runtime.Producer, publisher *natsbus.Publisher, log *logger.Logger) *RunService {
	if log == nil {
		log = logger.NewNop()
	}
	return &RunService{
		store:     st,
		producer:  producer,
		encoder:   encoder.New(log),
		publisher: publisher,
		logger:    log,
		active:    make(map[string]struct{}),
	}
}

func threadKey(channelID, threadTS string) string {
	return channelID + ":" + threadTS
}

// acquire takes the thread's run slot or reports it busy.
func (s *RunService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[key]; busy {
		return false
	}
	s.active[key] = struct{}{}
	return true
}

func (s *RunService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, key)
}

// Submit executes one run: loads history, appends the new user message,
// drives the encoder over the producer's trace, and persists the reduced
// transcript at the terminal event. Events flow to emit in causal order;
// emit errors (client gone) stop production but the partial transcript is
// still saved.
func (s *RunService) Submit(ctx context.Context, channelID string, req *model.ChatRequest, emit encoder.EmitFunc) error {
	threadTS := req.ThreadID

	userText, err := validateContinuity(req)
	if err != nil {
		return err
	}

	key := threadKey(channelID, threadTS)
	if !s.acquire(key) {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		return ErrRunActive
	}
	defer s.release(key)

	history, err := s.store.Load(ctx, channelID, threadTS)
	if err != nil {
		return fmt.Errorf("loading thread history: %w", err)
	}
	if len(req.Messages) > 0 && len(req.Messages)-1 > len(history) {
		return fmt.Errorf("%w: client claims %d prior messages, store has %d",
			ErrInvalidRequest, len(req.Messages)-1, len(history))
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}

	userMsg := &model.Message{
		ID:        agui.UserMessageID(threadTS, countRole(history, model.RoleUser)),
		Role:      model.RoleUser,
		Content:   userText,
		CreatedAt: time.Now().UTC(),
	}
	transcript := append(history, userMsg)

	rc := agui.NewRunContext(threadTS, runID, countRole(history, model.RoleAssistant))

	s.logger.Info("run started",
		"channel_id", channelID,
		"thread_id", threadTS,
		"run_id", runID,
		"prior_messages", len(history),
	)

	// The run's own reducer mirrors what the client builds; its result is
	// what gets persisted.
	state := reducer.New()
	start := time.Now()

	runErr := s.encoder.Run(ctx, rc, s.producer, transcript, func(ev agui.Event) error {
		// Fold only after the event actually reached the client: the
		// persisted transcript must match what the client's reducer built.
		if err := emit(ev); err != nil {
			return err
		}
		state.Apply(ev)
		metrics.RecordEvent(string(ev.Type()))
		s.publisher.PublishEvent(channelID, threadTS, ev)
		return nil
	})

	outcome := "finished"
	if state.Err != "" {
		outcome = "error"
	}
	if runErr != nil && !state.Finished {
		// The outbound channel died before a terminal event could be sent;
		// finalize locally so the partial transcript is still usable.
		state.Apply(agui.RunError{ThreadID: threadTS, RunID: runID, Message: "client disconnected"})
		outcome = "disconnected"
	}
	metrics.RecordRun(outcome, time.Since(start).Seconds())

	// Partial transcripts are saved too: a truncated answer is more useful
	// than a vanished one. The request context is already canceled when the
	// client disconnected, so persistence runs on its own bounded context.
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelSave()

	transcript = append(transcript, state.Messages...)
	if err := s.store.Save(saveCtx, channelID, threadTS, transcript); err != nil {
		// The streamed transcript the user saw is correct; only next-turn
		// memory is at risk. Surfaced distinctly from run errors.
		metrics.PersistenceFailuresTotal.Inc()
		s.logger.Error("failed to persist transcript",
			"channel_id", channelID,
			"thread_id", threadTS,
			"run_id", runID,
			"messages", len(transcript),
			"error", err,
		)
	} else {
		// Only the messages this run appended; the replaced history was
		// already counted by the runs that produced it.
		metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
		for _, msg := range state.Messages {
			metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
		}
	}

	s.logger.Info("run completed",
		"thread_id", threadTS,
		"run_id", runID,
		"outcome", outcome,
		"new_messages", len(state.Messages),
	)

	return runErr
}

// Reload returns the persisted message list for a thread, empty if unknown.
// The shape matches what live streaming produces, ids included, so the same
// reducer logic rebuilds identical state.
func (s *RunService) Reload(ctx context.Context, channelID, threadTS string) ([]*model.Message, error) {
	return s.store.Load(ctx, channelID, threadTS)
}

// validateContinuity checks the client's message list and extracts the new
// user message. History authority stays with the store; the list is only a
// consistency signal.
func validateContinuity(req *model.ChatRequest) (string, error) {
	if strings.TrimSpace(req.ThreadID) == "" {
		return "", fmt.Errorf("%w: missing threadId", ErrInvalidRequest)
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != model.RoleUser {
		return "", fmt.Errorf("%w: last message must be from the user", ErrInvalidRequest)
	}
	if strings.TrimSpace(last.Content) == "" {
		return "", fmt.Errorf("%w: empty user message", ErrInvalidRequest)
	}
	return last.Content, nil
}

func countRole(messages []*model.Message, role model.Role) int {
	n := 0
	for _, msg := range messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}
