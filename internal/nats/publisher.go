package nats

import (
	"fmt"

	"github.com/sline-ai/agent-gateway/internal/agui"
)

const subjectPrefix = "agent.events"

// EventSubject returns the fan-out subject for a thread's run events.
func EventSubject(channelID, threadTS string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, channelID, threadTS)
}

// Publisher mirrors run events onto the bus. Publishing is fire-and-forget;
// a bus failure must never affect the primary stream, so errors are logged
// and swallowed.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher on an established client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// PublishEvent mirrors one event to the thread's subject.
func (p *Publisher) PublishEvent(channelID, threadTS string, ev agui.Event) {
	if p == nil || p.client == nil {
		return
	}

	data, err := agui.Marshal(ev)
	if err != nil {
		p.client.logger.Warn("failed to encode event for fan-out", "error", err)
		return
	}

	if err := p.client.conn.Publish(EventSubject(channelID, threadTS), data); err != nil {
		p.client.logger.Warn("failed to publish event",
			"subject", EventSubject(channelID, threadTS),
			"error", err,
		)
	}
}
