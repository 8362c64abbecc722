package runtime

import (
	"context"

	"github.com/sline-ai/agent-gateway/internal/llm"
	"github.com/sline-ai/agent-gateway/internal/model"
	"github.com/sline-ai/agent-gateway/pkg/logger"
)

// ModelProducer adapts a streaming LLM client into a trace producer: each
// token becomes a TextDelta fact. Tool orchestration lives in the reasoning
// engine behind the client and is outside this boundary.
type ModelProducer struct {
	client    llm.Client
	modelName string
	logger    *logger.Logger
}

// NewModelProducer creates a producer backed by an LLM client.
func NewModelProducer(client llm.Client, modelName string, log *logger.Logger) *ModelProducer {
	if log == nil {
		log = logger.NewNop()
	}
	return &ModelProducer{client: client, modelName: modelName, logger: log}
}

// Run streams one completion over the conversation history.
func (p *ModelProducer) Run(ctx context.Context, history []*model.Message, emit EmitFunc) error {
	messages := make([]llm.ChatMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	started := false
	result, err := p.client.Stream(ctx, &llm.StreamRequest{
		Model:    p.modelName,
		Messages: messages,
	}, func(token string, index int) error {
		if token == "" {
			return nil
		}
		if !started {
			started = true
			if err := emit(TextStart{}); err != nil {
				return err
			}
		}
		return emit(TextDelta{Text: token})
	})
	if err != nil {
		return err
	}

	if started {
		if err := emit(TextEnd{}); err != nil {
			return err
		}
	}

	p.logger.Debug("model stream finished",
		"provider", p.client.Name(),
		"model", result.Model,
		"stop_reason", result.StopReason,
		"latency_ms", result.LatencyMs,
	)

	return nil
}
