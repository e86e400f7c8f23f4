// Package memory contains an in-memory publisher used for local runs and
// tests: stage reports are kept instead of sent.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish canceled: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Reports returns the stage reports published so far, in publish order.
func (p *Publisher) Reports() []pipeline.StageReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []pipeline.StageReport
	for _, msg := range p.messages {
		switch r := msg.Payload.(type) {
		case pipeline.StageReport:
			out = append(out, r)
		case *pipeline.StageReport:
			if r != nil {
				out = append(out, *r)
			}
		}
	}
	return out
}
