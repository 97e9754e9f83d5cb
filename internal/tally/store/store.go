package store

import (
	"context"
	"errors"
	"time"
)

// OpKind identifies one of the two accumulator operations.
type OpKind string

const (
	OpAdd      OpKind = "add"
	OpMultiply OpKind = "multiply"
)

// ErrUnknownOp is returned when Apply is called with an OpKind other than
// add or multiply.
var ErrUnknownOp = errors.New("unknown operation kind")

// ErrNotFound is returned by Get, History and Delete for sessions that were
// never created.
var ErrNotFound = errors.New("session not found")

// Operation is one applied mutation, recorded in session history.
type Operation struct {
	Kind      OpKind    `json:"kind"`
	Operand   float64   `json:"operand"`
	Result    float64   `json:"result"`
	AppliedAt time.Time `json:"applied_at"`
}

// Session is the observable state of one accumulator session.
type Session struct {
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
	Value     float64 `json:"value"`
	OpCount   int64   `json:"op_count"`
}

// Store keeps accumulator sessions keyed by user and session ID. Every
// session starts at 0 and its value is always the left-to-right fold of the
// operations applied to it.
type Store interface {
	// Create initializes a session with value 0. Creating an existing
	// session is a no-op that returns its current state.
	Create(ctx context.Context, userID, sessionID string) (*Session, error)

	// Get returns the session state, or ErrNotFound.
	Get(ctx context.Context, userID, sessionID string) (*Session, error)

	// Apply folds one operation into the session value and returns the new
	// value. Applying to an unknown session creates it first, so the
	// operation runs against a fresh accumulator.
	Apply(ctx context.Context, userID, sessionID string, kind OpKind, operand float64) (float64, error)

	// History returns up to limit most recent operations, oldest first.
	// limit <= 0 means all.
	History(ctx context.Context, userID, sessionID string, limit int) ([]Operation, error)

	// Delete removes the session value and its history.
	Delete(ctx context.Context, userID, sessionID string) error
}
