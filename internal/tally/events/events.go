package events

import (
	"time"

	"github.com/blueledger/tally-go/internal/tally/store"
)

type EventType string

const (
	ValueUpdate EventType = "value_update"
	Greeting    EventType = "greeting"
	Error       EventType = "error"
)

// StreamEvent is the shape pushed to SSE and websocket subscribers.
type StreamEvent struct {
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      any            `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// ValueUpdateData carries one applied operation and the resulting value.
type ValueUpdateData struct {
	Kind    store.OpKind `json:"kind"`
	Operand float64      `json:"operand"`
	Value   float64      `json:"value"`
	Result  string       `json:"result"`
}

// NewValueUpdate builds a value_update event for an applied operation.
func NewValueUpdate(userID, sessionID string, data ValueUpdateData) StreamEvent {
	return StreamEvent{
		Type:      ValueUpdate,
		UserID:    userID,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewError builds an error event.
func NewError(userID, sessionID, message string) StreamEvent {
	return StreamEvent{
		Type:      Error,
		UserID:    userID,
		SessionID: sessionID,
		Data:      map[string]any{"message": message},
		Timestamp: time.Now(),
	}
}
