package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	first, err := s.Create(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.Value)

	_, err = s.Apply(ctx, "u1", "s1", OpAdd, 5)
	require.NoError(t, err)

	again, err := s.Create(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, again.Value, "re-creating must not reset the value")
}

func TestGetUnknownSession(t *testing.T) {
	s := NewInmem()
	_, err := s.Get(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyCreatesFreshSession(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	v, err := s.Apply(ctx, "u1", "s1", OpAdd, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = s.Apply(ctx, "u1", "s1", OpMultiply, 2)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestApplyUnknownOp(t *testing.T) {
	s := NewInmem()
	_, err := s.Apply(context.Background(), "u1", "s1", OpKind("divide"), 2)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestFoldInvariantThroughStore(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	ops := []Operation{
		{Kind: OpAdd, Operand: 5},
		{Kind: OpMultiply, Operand: 2},
		{Kind: OpAdd, Operand: -4},
		{Kind: OpMultiply, Operand: 0},
		{Kind: OpAdd, Operand: 7.5},
	}

	expected := 0.0
	var last float64
	for _, op := range ops {
		v, err := s.Apply(ctx, "u1", "s1", op.Kind, op.Operand)
		require.NoError(t, err)
		last = v

		switch op.Kind {
		case OpAdd:
			expected += op.Operand
		case OpMultiply:
			expected *= op.Operand
		}
		assert.Equal(t, expected, v)
	}

	sess, err := s.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, last, sess.Value)
	assert.Equal(t, int64(len(ops)), sess.OpCount)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	_, err := s.Apply(ctx, "u1", "s1", OpAdd, 5)
	require.NoError(t, err)

	other, err := s.Apply(ctx, "u1", "s2", OpAdd, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, other)

	sess, err := s.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, sess.Value)
}

func TestHistoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	_, _ = s.Apply(ctx, "u1", "s1", OpAdd, 1)
	_, _ = s.Apply(ctx, "u1", "s1", OpAdd, 2)
	_, _ = s.Apply(ctx, "u1", "s1", OpMultiply, 3)

	all, err := s.History(ctx, "u1", "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, OpAdd, all[0].Kind)
	assert.Equal(t, 9.0, all[2].Result)

	tail, err := s.History(ctx, "u1", "s1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, 2.0, tail[0].Operand)
	assert.Equal(t, OpMultiply, tail[1].Kind)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	_, err := s.Create(ctx, "u1", "s1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "u1", "s1"))
	_, err = s.Get(ctx, "u1", "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "u1", "s1"), ErrNotFound)
}

func TestConcurrentAddsAllLand(t *testing.T) {
	ctx := context.Background()
	s := NewInmem()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := s.Apply(ctx, "u1", "s1", OpAdd, 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	sess, err := s.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, float64(workers*perWorker), sess.Value)
}
