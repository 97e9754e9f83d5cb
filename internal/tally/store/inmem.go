package store

import (
	"context"
	"sync"
	"time"

	"github.com/blueledger/tally-go/internal/tally/calc"
)

type inmemSession struct {
	acc     *calc.Accumulator
	history []Operation
}

// InmemStore keeps sessions in process memory. All access is serialized by a
// single mutex, which is what gives each underlying Accumulator its
// single-caller ownership guarantee.
type InmemStore struct {
	mu       sync.Mutex
	sessions map[string]*inmemSession
}

// NewInmem creates an empty in-memory store.
func NewInmem() *InmemStore {
	return &InmemStore{sessions: make(map[string]*inmemSession)}
}

func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func (s *InmemStore) Create(ctx context.Context, userID, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, sessionID)
	return snapshot(userID, sessionID, sess), nil
}

func (s *InmemStore) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(userID, sessionID, sess), nil
}

func (s *InmemStore) Apply(ctx context.Context, userID, sessionID string, kind OpKind, operand float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, sessionID)

	var result float64
	switch kind {
	case OpAdd:
		result = sess.acc.Add(operand)
	case OpMultiply:
		result = sess.acc.Multiply(operand)
	default:
		return 0, ErrUnknownOp
	}

	sess.history = append(sess.history, Operation{
		Kind:      kind,
		Operand:   operand,
		Result:    result,
		AppliedAt: time.Now(),
	})
	return result, nil
}

func (s *InmemStore) History(ctx context.Context, userID, sessionID string, limit int) ([]Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, ErrNotFound
	}

	history := sess.history
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Operation, len(history))
	copy(out, history)
	return out, nil
}

func (s *InmemStore) Delete(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(userID, sessionID)
	if _, ok := s.sessions[key]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, key)
	return nil
}

func (s *InmemStore) getOrCreateLocked(userID, sessionID string) *inmemSession {
	key := sessionKey(userID, sessionID)
	sess, ok := s.sessions[key]
	if !ok {
		sess = &inmemSession{acc: calc.New()}
		s.sessions[key] = sess
	}
	return sess
}

func snapshot(userID, sessionID string, sess *inmemSession) *Session {
	return &Session{
		UserID:    userID,
		SessionID: sessionID,
		Value:     sess.acc.Value(),
		OpCount:   int64(len(sess.history)),
	}
}
