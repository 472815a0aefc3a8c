package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"carpool-backend/application/ports"
	"carpool-backend/domain/carpool"
	apperrors "carpool-backend/pkg/errors"
)

// UserRepository persists user rows and answers relationship queries over a
// user's partition on the base table.
type UserRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *zap.Logger
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(client DynamoDBAPI, tableName string, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Create stores a new user row. The conditional put makes a duplicate name a
// conflict rather than a silent overwrite.
func (r *UserRepository) Create(ctx context.Context, user carpool.User) error {
	item := userItem{
		PK:         userKey(user.Name),
		SK:         userKey(user.Name),
		EntityType: entityUser,
		Longitude:  user.Longitude,
		Latitude:   user.Latitude,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperrors.NewDatastoreError("marshal user", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(" + attrPK + ")"),
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewConflictError(fmt.Sprintf("user %s already exists", user.Name))
		}
		return apperrors.NewDatastoreError("put user", err)
	}

	r.logger.Info("user created", zap.String("user", user.Name))
	return nil
}

// GetByName returns the user row or a not-found error.
func (r *UserRepository) GetByName(ctx context.Context, name string) (*carpool.User, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       userPrimaryKey(name),
	}

	out, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, apperrors.NewDatastoreError("get user", err)
	}
	if out.Item == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s", name))
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, apperrors.NewDatastoreError("unmarshal user", err)
	}

	return &carpool.User{
		Name:      userNameFromKey(item.PK),
		Longitude: item.Longitude,
		Latitude:  item.Latitude,
	}, nil
}

// UpdateLocation replaces the user's coordinates. The existence condition
// keeps an update from creating a phantom user row.
func (r *UserRepository) UpdateLocation(ctx context.Context, name string, loc carpool.Location) error {
	update := expression.Set(expression.Name(attrLongitude), expression.Value(loc.Longitude)).
		Set(expression.Name(attrLatitude), expression.Value(loc.Latitude))
	cond := expression.AttributeExists(expression.Name(attrPK))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return apperrors.NewDatastoreError("build location update", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       userPrimaryKey(name),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return apperrors.NewNotFoundError(fmt.Sprintf("user %s", name))
		}
		return apperrors.NewDatastoreError("update user location", err)
	}

	r.logger.Info("user location updated",
		zap.String("user", name),
		zap.Float64("longitude", loc.Longitude),
		zap.Float64("latitude", loc.Latitude),
	)
	return nil
}

// HostedCarpools returns the user's host-role membership links.
func (r *UserRepository) HostedCarpools(ctx context.Context, name string, filter *ports.StatusFilter, consistent bool) ([]carpool.Membership, error) {
	return r.relatedCarpools(ctx, name, true, filter, consistent)
}

// ParticipatedCarpools returns the user's participant-role membership links.
func (r *UserRepository) ParticipatedCarpools(ctx context.Context, name string, filter *ports.StatusFilter, consistent bool) ([]carpool.Membership, error) {
	return r.relatedCarpools(ctx, name, false, filter, consistent)
}

// relatedCarpools queries the user's partition for membership rows, filtered
// by role and optionally by the mirrored carpool status. When consistent is
// set the read goes strongly consistent against the base table; the mutating
// precondition gates depend on that.
func (r *UserRepository) relatedCarpools(ctx context.Context, name string, asHost bool, filter *ports.StatusFilter, consistent bool) ([]carpool.Membership, error) {
	keyCond := expression.Key(attrPK).Equal(expression.Value(userKey(name))).
		And(expression.KeyBeginsWith(expression.Key(attrSK), carpoolKeyPrefix))

	var cond expression.ConditionBuilder
	if asHost {
		cond = expression.Name(attrIsHost).Equal(expression.Value(true))
	} else {
		cond = expression.AttributeNotExists(expression.Name(attrIsHost))
	}
	if filter != nil {
		statusCond := expression.Name(attrStatus).Equal(expression.Value(string(filter.Status)))
		if filter.Negate {
			statusCond = expression.Name(attrStatus).NotEqual(expression.Value(string(filter.Status)))
		}
		cond = cond.And(statusCond)
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(cond).Build()
	if err != nil {
		return nil, apperrors.NewDatastoreError("build membership query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(consistent),
	}

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, apperrors.NewDatastoreError("query memberships", err)
	}

	memberships := make([]carpool.Membership, 0, len(out.Items))
	for _, raw := range out.Items {
		var item membershipItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("failed to unmarshal membership row", zap.Error(err))
			continue
		}
		memberships = append(memberships, carpool.Membership{
			CarpoolID: carpoolIDFromKey(item.SK),
			UserName:  name,
			IsHost:    item.IsHost,
			IsWinner:  item.IsWinner,
			Status:    carpool.Status(item.CarpoolStatus),
		})
	}
	return memberships, nil
}

func userPrimaryKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: userKey(name)},
		attrSK: &types.AttributeValueMemberS{Value: userKey(name)},
	}
}
