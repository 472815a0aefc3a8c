package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"carpool-backend/domain/carpool"
	apperrors "carpool-backend/pkg/errors"
)

// CarpoolRepository issues the conditional and transactional writes enforcing
// the lifecycle invariants, and serves the carpool read paths.
type CarpoolRepository struct {
	client              DynamoDBAPI
	tableName           string
	membershipIndexName string
	statusIndexName     string
	logger              *zap.Logger
}

// NewCarpoolRepository creates a new CarpoolRepository.
func NewCarpoolRepository(client DynamoDBAPI, tableName, membershipIndexName, statusIndexName string, logger *zap.Logger) *CarpoolRepository {
	return &CarpoolRepository{
		client:              client,
		tableName:           tableName,
		membershipIndexName: membershipIndexName,
		statusIndexName:     statusIndexName,
		logger:              logger,
	}
}

func carpoolPrimaryKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: carpoolKey(id)},
		attrSK: &types.AttributeValueMemberS{Value: carpoolKey(id)},
	}
}

func membershipPrimaryKey(userName, carpoolID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: userKey(userName)},
		attrSK: &types.AttributeValueMemberS{Value: carpoolKey(carpoolID)},
	}
}

// Create writes the carpool row and the host membership row in one
// transaction, so a carpool never exists without its host link.
func (r *CarpoolRepository) Create(ctx context.Context, c *carpool.Carpool) error {
	carpoolAV, err := attributevalue.MarshalMap(carpoolItem{
		PK:               carpoolKey(c.ID),
		SK:               carpoolKey(c.ID),
		EntityType:       entityCarpool,
		HostName:         c.Host,
		Genre:            c.Genre,
		LicencePlate:     c.LicencePlate,
		ParticipantCount: 0,
		CarpoolStatus:    string(carpool.StatusAvailable),
	})
	if err != nil {
		return apperrors.NewDatastoreError("marshal carpool", err)
	}

	hostAV, err := attributevalue.MarshalMap(membershipItem{
		PK:            userKey(c.Host),
		SK:            carpoolKey(c.ID),
		EntityType:    entityMembership,
		IsHost:        true,
		CarpoolStatus: string(carpool.StatusAvailable),
	})
	if err != nil {
		return apperrors.NewDatastoreError("marshal host membership", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                carpoolAV,
					ConditionExpression: aws.String("attribute_not_exists(" + attrPK + ")"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(r.tableName),
					Item:      hostAV,
				},
			},
		},
	}

	if _, err := r.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewConflictError(fmt.Sprintf("carpool %s already exists", c.ID))
		}
		return apperrors.NewDatastoreError("create carpool", err)
	}

	r.logger.Info("carpool created",
		zap.String("carpoolID", c.ID),
		zap.String("host", c.Host),
		zap.String("genre", c.Genre),
	)
	return nil
}

// GetByID returns the carpool row or a not-found error.
func (r *CarpoolRepository) GetByID(ctx context.Context, id string) (*carpool.Carpool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       carpoolPrimaryKey(id),
	})
	if err != nil {
		return nil, apperrors.NewDatastoreError("get carpool", err)
	}
	if out.Item == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("carpool %s", id))
	}

	var item carpoolItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, apperrors.NewDatastoreError("unmarshal carpool", err)
	}
	return carpoolFromItem(item), nil
}

// ParticipantCount reads the count from the carpool row with a strongly
// consistent read. The 4th-join transition is decided from this value, so a
// stale index must never serve it.
func (r *CarpoolRepository) ParticipantCount(ctx context.Context, id string) (int, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            carpoolPrimaryKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, apperrors.NewDatastoreError("get participant count", err)
	}
	if out.Item == nil {
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("carpool %s", id))
	}

	var item carpoolItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return 0, apperrors.NewDatastoreError("unmarshal carpool", err)
	}
	return item.ParticipantCount, nil
}

// AddParticipant writes the membership row and bumps the carpool's count in
// one transaction. The operation list is computed up front: when
// currentCount is MaxParticipants-1 the count update also flips the status to
// full, so the available->full transition is part of the same write. The
// condition on the current count and status makes the transition happen
// exactly once even if the pre-read raced another join.
func (r *CarpoolRepository) AddParticipant(ctx context.Context, id, user string, currentCount int) error {
	memberAV, err := attributevalue.MarshalMap(membershipItem{
		PK:            userKey(user),
		SK:            carpoolKey(id),
		EntityType:    entityMembership,
		CarpoolStatus: string(carpool.StatusAvailable),
	})
	if err != nil {
		return apperrors.NewDatastoreError("marshal membership", err)
	}

	updateExpr := "SET #count = :next"
	values := map[string]types.AttributeValue{
		":next":  &types.AttributeValueMemberN{Value: strconv.Itoa(currentCount + 1)},
		":cur":   &types.AttributeValueMemberN{Value: strconv.Itoa(currentCount)},
		":avail": &types.AttributeValueMemberS{Value: string(carpool.StatusAvailable)},
	}
	if currentCount == carpool.MaxParticipants-1 {
		updateExpr += ", #status = :full"
		values[":full"] = &types.AttributeValueMemberS{Value: string(carpool.StatusFull)}
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(r.tableName),
					Item:      memberAV,
				},
			},
			{
				Update: &types.Update{
					TableName:           aws.String(r.tableName),
					Key:                 carpoolPrimaryKey(id),
					UpdateExpression:    aws.String(updateExpr),
					ConditionExpression: aws.String("#count = :cur AND #status = :avail"),
					ExpressionAttributeNames: map[string]string{
						"#count":  attrParticipantCount,
						"#status": attrStatus,
					},
					ExpressionAttributeValues: values,
				},
			},
		},
	}

	if _, err := r.client.TransactWriteItems(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewPreconditionFailedError(
				fmt.Sprintf("carpool %s changed while joining", id))
		}
		return apperrors.NewDatastoreError("add participant", err)
	}

	r.logger.Info("participant joined",
		zap.String("carpoolID", id),
		zap.String("participant", user),
		zap.Int("participantCount", currentCount+1),
	)
	return nil
}

// MarkStarted conditionally flips full -> started. The condition on status
// and host is the authoritative guard: a pre-read is never trusted for this
// transition.
func (r *CarpoolRepository) MarkStarted(ctx context.Context, id, host string) error {
	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 carpoolPrimaryKey(id),
		UpdateExpression:    aws.String("SET #status = :started"),
		ConditionExpression: aws.String("#status = :full AND #host = :host"),
		ExpressionAttributeNames: map[string]string{
			"#status": attrStatus,
			"#host":   attrHostName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":started": &types.AttributeValueMemberS{Value: string(carpool.StatusStarted)},
			":full":    &types.AttributeValueMemberS{Value: string(carpool.StatusFull)},
			":host":    &types.AttributeValueMemberS{Value: host},
		},
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewPreconditionFailedError(
				fmt.Sprintf("carpool %s is not full or %s is not its host", id, host))
		}
		return apperrors.NewDatastoreError("start carpool", err)
	}

	r.logger.Info("carpool started", zap.String("carpoolID", id), zap.String("host", host))
	return nil
}

// Close flips started -> closed, sets the winner, and marks every crew
// membership row closed, all in one transaction. The carpool update carries
// the status+host condition; if it fails nothing is applied.
func (r *CarpoolRepository) Close(ctx context.Context, id, host, winner string, crew carpool.Crew) error {
	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(r.tableName),
				Key:                 carpoolPrimaryKey(id),
				UpdateExpression:    aws.String("SET #status = :closed, #winner = :winner"),
				ConditionExpression: aws.String("#status = :started AND #host = :host"),
				ExpressionAttributeNames: map[string]string{
					"#status": attrStatus,
					"#winner": attrWinner,
					"#host":   attrHostName,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":closed":  &types.AttributeValueMemberS{Value: string(carpool.StatusClosed)},
					":started": &types.AttributeValueMemberS{Value: string(carpool.StatusStarted)},
					":winner":  &types.AttributeValueMemberS{Value: winner},
					":host":    &types.AttributeValueMemberS{Value: host},
				},
			},
		},
	}

	for _, participant := range crew.Participants {
		updateExpr := "SET #status = :closed"
		values := map[string]types.AttributeValue{
			":closed": &types.AttributeValueMemberS{Value: string(carpool.StatusClosed)},
		}
		names := map[string]string{"#status": attrStatus}
		if participant == winner {
			updateExpr += ", #isWinner = :won"
			names["#isWinner"] = attrIsWinner
			values[":won"] = &types.AttributeValueMemberBOOL{Value: true}
		}
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       membershipPrimaryKey(participant, id),
				UpdateExpression:          aws.String(updateExpr),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			},
		})
	}

	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                aws.String(r.tableName),
			Key:                      membershipPrimaryKey(crew.Host, id),
			UpdateExpression:         aws.String("SET #status = :closed"),
			ExpressionAttributeNames: map[string]string{"#status": attrStatus},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":closed": &types.AttributeValueMemberS{Value: string(carpool.StatusClosed)},
			},
		},
	})

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewPreconditionFailedError(
				fmt.Sprintf("carpool %s is not started or %s is not its host", id, host))
		}
		return apperrors.NewDatastoreError("close carpool", err)
	}

	r.logger.Info("carpool closed",
		zap.String("carpoolID", id),
		zap.String("host", host),
		zap.String("winner", winner),
	)
	return nil
}

// Crew resolves the carpool's host and participants from the membership
// index in one query. The index may lag the base table; the returned crew
// can be incomplete and callers that need all rows poll until it converges.
func (r *CarpoolRepository) Crew(ctx context.Context, id string) (carpool.Crew, error) {
	keyCond := expression.Key(attrSK).Equal(expression.Value(carpoolKey(id))).
		And(expression.KeyBeginsWith(expression.Key(attrPK), userKeyPrefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return carpool.Crew{}, apperrors.NewDatastoreError("build crew query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.membershipIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return carpool.Crew{}, apperrors.NewDatastoreError("query crew", err)
	}

	var crew carpool.Crew
	for _, raw := range out.Items {
		var item membershipItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("failed to unmarshal crew row", zap.Error(err))
			continue
		}
		if item.IsHost {
			crew.Host = userNameFromKey(item.PK)
		} else {
			crew.Participants = append(crew.Participants, userNameFromKey(item.PK))
		}
	}
	return crew, nil
}

// ListAvailable returns available carpools from the status index, optionally
// filtered by genre.
func (r *CarpoolRepository) ListAvailable(ctx context.Context, genre string) ([]carpool.Carpool, error) {
	keyCond := expression.Key(attrStatus).Equal(expression.Value(string(carpool.StatusAvailable)))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if genre != "" {
		builder = builder.WithFilter(expression.Name(attrGenre).Equal(expression.Value(genre)))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, apperrors.NewDatastoreError("build available query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.statusIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, apperrors.NewDatastoreError("query available carpools", err)
	}

	carpools := make([]carpool.Carpool, 0, len(out.Items))
	for _, raw := range out.Items {
		var item carpoolItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("failed to unmarshal carpool row", zap.Error(err))
			continue
		}
		carpools = append(carpools, *carpoolFromItem(item))
	}
	return carpools, nil
}

func carpoolFromItem(item carpoolItem) *carpool.Carpool {
	return &carpool.Carpool{
		ID:               carpoolIDFromKey(item.PK),
		Host:             item.HostName,
		Genre:            item.Genre,
		LicencePlate:     item.LicencePlate,
		Status:           carpool.Status(item.CarpoolStatus),
		ParticipantCount: item.ParticipantCount,
		Winner:           item.Winner,
	}
}
