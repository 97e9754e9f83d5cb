package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/pool"
	"github.com/redis/go-redis/v9"
)

// applyScript folds one operation into the stored value atomically. The value
// key holds the decimal rendering of the current value; a missing key reads
// as a fresh accumulator at 0.
const applyScript = `
local v = redis.call('GET', KEYS[1])
if not v then v = '0' end
local cur = tonumber(v)
local n = tonumber(ARGV[2])
local new
if ARGV[1] == 'add' then
  new = cur + n
else
  new = cur * n
end
redis.call('SET', KEYS[1], tostring(new))
return tostring(new)
`

// RedisStore keeps session values as string keys and histories as lists.
type RedisStore struct {
	pool   pool.Manager
	logger *logx.Logger
	prefix string
}

// NewRedis creates a store backed by the normal-priority Redis pool.
func NewRedis(p pool.Manager, logger *logx.Logger) *RedisStore {
	return &RedisStore{pool: p, logger: logger, prefix: "tally"}
}

func (s *RedisStore) valueKey(userID, sessionID string) string {
	return fmt.Sprintf("%s:value:%s:%s", s.prefix, userID, sessionID)
}

func (s *RedisStore) historyKey(userID, sessionID string) string {
	return fmt.Sprintf("%s:history:%s:%s", s.prefix, userID, sessionID)
}

func (s *RedisStore) client(ctx context.Context) (*redis.Client, error) {
	return s.pool.GetClient(ctx, "normal")
}

func (s *RedisStore) Create(ctx context.Context, userID, sessionID string) (*Session, error) {
	c, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	// SETNX keeps Create idempotent: an existing value is left untouched.
	if err := c.SetNX(ctx, s.valueKey(userID, sessionID), "0", 0).Err(); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.Get(ctx, userID, sessionID)
}

func (s *RedisStore) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	c, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := c.Get(ctx, s.valueKey(userID, sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session value: %w", err)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session value %q: %w", raw, err)
	}

	opCount, err := c.LLen(ctx, s.historyKey(userID, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session op count: %w", err)
	}

	return &Session{
		UserID:    userID,
		SessionID: sessionID,
		Value:     value,
		OpCount:   opCount,
	}, nil
}

func (s *RedisStore) Apply(ctx context.Context, userID, sessionID string, kind OpKind, operand float64) (float64, error) {
	if kind != OpAdd && kind != OpMultiply {
		return 0, ErrUnknownOp
	}

	c, err := s.client(ctx)
	if err != nil {
		return 0, err
	}

	raw, err := c.Eval(ctx, applyScript,
		[]string{s.valueKey(userID, sessionID)},
		string(kind), strconv.FormatFloat(operand, 'f', -1, 64)).Text()
	if err != nil {
		return 0, fmt.Errorf("apply %s: %w", kind, err)
	}

	result, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse applied value %q: %w", raw, err)
	}

	entry, err := json.Marshal(Operation{
		Kind:      kind,
		Operand:   operand,
		Result:    result,
		AppliedAt: time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal history entry: %w", err)
	}

	// History is advisory; a failed append never rolls back the value.
	if err := c.RPush(ctx, s.historyKey(userID, sessionID), entry).Err(); err != nil {
		s.logger.Warn(ctx, "history append failed",
			logx.KV("user_id", userID),
			logx.KV("session_id", sessionID),
			logx.KV("error", err))
	}

	return result, nil
}

func (s *RedisStore) History(ctx context.Context, userID, sessionID string, limit int) ([]Operation, error) {
	c, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	if exists, err := c.Exists(ctx, s.valueKey(userID, sessionID)).Result(); err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	} else if exists == 0 {
		return nil, ErrNotFound
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raws, err := c.LRange(ctx, s.historyKey(userID, sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	ops := make([]Operation, 0, len(raws))
	for _, raw := range raws {
		var op Operation
		if err := json.Unmarshal([]byte(raw), &op); err != nil {
			s.logger.Warn(ctx, "skipping malformed history entry",
				logx.KV("user_id", userID),
				logx.KV("session_id", sessionID),
				logx.KV("error", err))
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, sessionID string) error {
	c, err := s.client(ctx)
	if err != nil {
		return err
	}

	deleted, err := c.Del(ctx, s.valueKey(userID, sessionID), s.historyKey(userID, sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
