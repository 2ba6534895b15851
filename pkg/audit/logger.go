// Package audit emits the structured event stream for triad components.
// Core logic never depends on these events; they exist for the external
// driver and for replay.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRegistry   EventType = "REGISTRY"
	EventArtifact   EventType = "ARTIFACT"
	EventValidation EventType = "VALIDATION"
	EventFeedback   EventType = "FEEDBACK"
	EventWorkflow   EventType = "WORKFLOW"
	EventChain      EventType = "CHAIN"
)

// Event represents a structured component event.
type Event struct {
	ID        string                 `json:"id"`
	Actor     string                 `json:"actor"`
	Type      EventType              `json:"type"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger defines the interface for recording component events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error
}

type actorKey struct{}

// WithActor binds the acting wallet address to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting wallet address, or "system" when unset.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// logger implements Logger, writing structured JSON to a configurable Writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Actor:     ActorFrom(ctx),
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}

// Nop returns a Logger that discards all events.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Record(context.Context, EventType, string, string, map[string]interface{}) error {
	return nil
}
