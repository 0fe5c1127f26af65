package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/dino-games/backend/repositories"
)

type txKey struct{}

// fakeTxManager runs fn in-process and records the outcome
type fakeTxManager struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (m *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, errors.New("not supported")
}

func (m *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.rolledBack = true
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func TestWithTransactionResult_Success(t *testing.T) {
	txMgr := &fakeTxManager{}

	got, err := WithTransactionResult(context.Background(), txMgr, func(ctx context.Context) (string, error) {
		assert.Equal(t, true, ctx.Value(txKey{}))
		return "saved", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "saved", got)
	assert.True(t, txMgr.committed)
	assert.False(t, txMgr.rolledBack)
}

func TestWithTransactionResult_ErrorInFunction(t *testing.T) {
	txMgr := &fakeTxManager{}
	expectedErr := errors.New("operation failed")

	got, err := WithTransactionResult(context.Background(), txMgr, func(ctx context.Context) (*int, error) {
		n := 1
		return &n, expectedErr
	})

	assert.ErrorIs(t, err, expectedErr)
	assert.Nil(t, got)
	assert.True(t, txMgr.rolledBack)
}

func TestWithTransactionResult_CommitFailure(t *testing.T) {
	txMgr := &fakeTxManager{commitErr: errors.New("commit failed")}

	got, err := WithTransactionResult(context.Background(), txMgr, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	assert.EqualError(t, err, "commit failed")
	assert.Zero(t, got)
}
