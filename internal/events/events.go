// Package events publishes submission events to a message broker.
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	RoutingFeedback          = "feedback.submitted"
	RoutingMisclassification = "misclassification.reported"
)

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// FeedbackEvent is published after feedback is recorded.
type FeedbackEvent struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// MisclassificationEvent is published after a reported frame is archived.
type MisclassificationEvent struct {
	ID        string    `json:"id"`
	Emotion   string    `json:"emotion"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }
