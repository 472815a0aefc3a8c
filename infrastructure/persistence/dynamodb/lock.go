package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carpool-backend/application/ports"
	apperrors "carpool-backend/pkg/errors"
	"carpool-backend/pkg/utils"
)

// The single sentinel row representing the table-global advisory lock. It
// exists if and only if the lock is held.
const (
	lockPartitionKey = "LOCK#carpool-table"
	lockSortKey      = "LOCK"
)

// ErrLockHeld reports that the sentinel row already exists. It never escapes
// Dispatch; the retry loop consumes it.
var ErrLockHeld = errors.New("table lock is held")

// TableLock is the distributed mutex serializing every table-mutating unit of
// work. Acquire creates the sentinel row with a conditional write; Release
// deletes it. The lock is advisory and deliberately coarse: correctness over
// throughput.
type TableLock struct {
	client        DynamoDBAPI
	tableName     string
	retryInterval time.Duration
	maxAttempts   int
	logger        *zap.Logger
	metrics       ports.MetricsRecorder
}

// NewTableLock creates a table lock with the given retry budget.
func NewTableLock(client DynamoDBAPI, tableName string, retryInterval time.Duration, maxAttempts int, logger *zap.Logger) *TableLock {
	return &TableLock{
		client:        client,
		tableName:     tableName,
		retryInterval: retryInterval,
		maxAttempts:   maxAttempts,
		logger:        logger,
	}
}

// SetMetrics attaches an optional contention recorder.
func (l *TableLock) SetMetrics(m ports.MetricsRecorder) {
	l.metrics = m
}

// Acquire attempts to create the sentinel row. Returns ErrLockHeld when the
// row already exists, or the raw datastore error otherwise.
func (l *TableLock) Acquire(ctx context.Context) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			attrPK:       &types.AttributeValueMemberS{Value: lockPartitionKey},
			attrSK:       &types.AttributeValueMemberS{Value: lockSortKey},
			"Owner":      &types.AttributeValueMemberS{Value: uuid.New().String()},
			"AcquiredAt": &types.AttributeValueMemberS{Value: utils.NowRFC3339()},
		},
		ConditionExpression: aws.String("attribute_not_exists(" + attrPK + ")"),
	}

	if _, err := l.client.PutItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return ErrLockHeld
		}
		return err
	}
	return nil
}

// Release deletes the sentinel row. The delete is unconditional: releasing an
// already-free lock is a no-op success.
func (l *TableLock) Release(ctx context.Context) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: lockPartitionKey},
			attrSK: &types.AttributeValueMemberS{Value: lockSortKey},
		},
	}
	if _, err := l.client.DeleteItem(ctx, input); err != nil {
		return apperrors.NewLockError("failed to release table lock", err)
	}
	return nil
}

// Dispatch serializes fn behind the lock. While the lock is held elsewhere it
// retries every retryInterval up to maxAttempts, then fails with a
// lock-exceeded error so callers see a finite worst-case latency. On
// acquisition fn runs and the lock is always released, whether fn succeeded
// or not, before its result propagates.
func (l *TableLock) Dispatch(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	attempt := 1
	for {
		acquireErr := l.Acquire(ctx)
		if acquireErr == nil {
			break
		}
		if !errors.Is(acquireErr, ErrLockHeld) {
			return apperrors.NewLockError("failed to acquire table lock", acquireErr)
		}
		if attempt >= l.maxAttempts {
			l.logger.Warn("table lock retry budget exhausted",
				zap.Int("attempts", attempt),
			)
			return apperrors.NewLockExceededError(attempt)
		}
		attempt++
		select {
		case <-ctx.Done():
			return apperrors.NewLockError("cancelled while waiting for table lock", ctx.Err())
		case <-time.After(l.retryInterval):
		}
	}

	if attempt > 1 {
		l.logger.Debug("table lock acquired after contention",
			zap.Int("attempts", attempt),
		)
	}
	if l.metrics != nil {
		l.metrics.CountLockContention(ctx, attempt)
	}

	defer func() {
		if releaseErr := l.Release(ctx); releaseErr != nil {
			l.logger.Error("failed to release table lock", zap.Error(releaseErr))
			if err == nil {
				err = releaseErr
			}
		}
	}()

	return fn(ctx)
}
