package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "carpool-backend/pkg/errors"
)

func condFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
}

func TestTableLockAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("puts the sentinel with a not-exists condition", func(t *testing.T) {
		client := &fakeClient{}
		lock := NewTableLock(client, "carpool", time.Millisecond, 3, zap.NewNop())

		require.NoError(t, lock.Acquire(ctx))

		require.Len(t, client.putInputs, 1)
		input := client.putInputs[0]
		assert.Equal(t, "carpool", aws.ToString(input.TableName))
		assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(input.ConditionExpression))
		pk := input.Item[attrPK].(*types.AttributeValueMemberS)
		assert.Equal(t, lockPartitionKey, pk.Value)
	})

	t.Run("held lock maps to ErrLockHeld", func(t *testing.T) {
		client := &fakeClient{
			putFn: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
				return nil, condFailed()
			},
		}
		lock := NewTableLock(client, "carpool", time.Millisecond, 3, zap.NewNop())

		assert.ErrorIs(t, lock.Acquire(ctx), ErrLockHeld)
	})
}

func TestTableLockDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the unit of work and releases", func(t *testing.T) {
		client := &fakeClient{}
		lock := NewTableLock(client, "carpool", time.Millisecond, 3, zap.NewNop())

		ran := false
		err := lock.Dispatch(ctx, func(ctx context.Context) error {
			ran = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		assert.Len(t, client.putInputs, 1)
		assert.Len(t, client.deleteInputs, 1)
	})

	t.Run("retries while held then succeeds", func(t *testing.T) {
		attempts := 0
		client := &fakeClient{}
		client.putFn = func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			attempts++
			if attempts < 3 {
				return nil, condFailed()
			}
			return &dynamodb.PutItemOutput{}, nil
		}
		lock := NewTableLock(client, "carpool", time.Millisecond, 5, zap.NewNop())

		err := lock.Dispatch(ctx, func(ctx context.Context) error { return nil })

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("exhausted budget fails with lock exceeded", func(t *testing.T) {
		client := &fakeClient{
			putFn: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
				return nil, condFailed()
			},
		}
		lock := NewTableLock(client, "carpool", time.Millisecond, 4, zap.NewNop())

		ran := false
		err := lock.Dispatch(ctx, func(ctx context.Context) error {
			ran = true
			return nil
		})

		assert.False(t, ran)
		assert.True(t, apperrors.IsLockExceeded(err))
		assert.Len(t, client.putInputs, 4)
		assert.Empty(t, client.deleteInputs)
	})

	t.Run("releases even when the unit of work fails", func(t *testing.T) {
		client := &fakeClient{}
		lock := NewTableLock(client, "carpool", time.Millisecond, 3, zap.NewNop())

		boom := errors.New("boom")
		err := lock.Dispatch(ctx, func(ctx context.Context) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.Len(t, client.deleteInputs, 1)
	})

	t.Run("transport failure on acquire is not retried", func(t *testing.T) {
		client := &fakeClient{
			putFn: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
				return nil, errors.New("throttled")
			},
		}
		lock := NewTableLock(client, "carpool", time.Millisecond, 5, zap.NewNop())

		err := lock.Dispatch(ctx, func(ctx context.Context) error { return nil })

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLock))
		assert.Len(t, client.putInputs, 1)
	})
}

func TestTableLockRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("delete is unconditional", func(t *testing.T) {
		client := &fakeClient{}
		lock := NewTableLock(client, "carpool", time.Millisecond, 3, zap.NewNop())

		require.NoError(t, lock.Release(ctx))

		require.Len(t, client.deleteInputs, 1)
		assert.Nil(t, client.deleteInputs[0].ConditionExpression)
	})
}
