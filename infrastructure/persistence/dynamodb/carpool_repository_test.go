package dynamodb

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carpool-backend/domain/carpool"
	apperrors "carpool-backend/pkg/errors"
)

func newTestCarpoolRepo(client *fakeClient) *CarpoolRepository {
	return NewCarpoolRepository(client, "carpool", "MembershipIndex", "StatusIndex", zap.NewNop())
}

func transactCancelled() error {
	return &types.TransactionCanceledException{
		Message: aws.String("transaction cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}
}

func TestCarpoolRepositoryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("writes carpool and host membership in one transaction", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		err := repo.Create(ctx, &carpool.Carpool{
			ID:           "abc",
			Host:         "alice",
			Genre:        "rock",
			LicencePlate: "XYZ-123",
			Status:       carpool.StatusAvailable,
		})
		require.NoError(t, err)

		require.Len(t, client.transactInputs, 1)
		items := client.transactInputs[0].TransactItems
		require.Len(t, items, 2)

		carpoolPut := items[0].Put
		require.NotNil(t, carpoolPut)
		assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(carpoolPut.ConditionExpression))
		assert.Equal(t, "CARPOOL#abc", carpoolPut.Item[attrPK].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "available", carpoolPut.Item[attrStatus].(*types.AttributeValueMemberS).Value)

		hostPut := items[1].Put
		require.NotNil(t, hostPut)
		assert.Equal(t, "USER#alice", hostPut.Item[attrPK].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "CARPOOL#abc", hostPut.Item[attrSK].(*types.AttributeValueMemberS).Value)
		assert.True(t, hostPut.Item[attrIsHost].(*types.AttributeValueMemberBOOL).Value)
		assert.Equal(t, "available", hostPut.Item[attrStatus].(*types.AttributeValueMemberS).Value)
	})

	t.Run("existing carpool is a conflict", func(t *testing.T) {
		client := &fakeClient{
			transactFn: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, transactCancelled()
			},
		}
		repo := newTestCarpoolRepo(client)

		err := repo.Create(ctx, &carpool.Carpool{ID: "abc", Host: "alice"})
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestCarpoolRepositoryAddParticipant(t *testing.T) {
	ctx := context.Background()

	t.Run("regular join bumps the count only", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		require.NoError(t, repo.AddParticipant(ctx, "abc", "bob", 1))

		require.Len(t, client.transactInputs, 1)
		items := client.transactInputs[0].TransactItems
		require.Len(t, items, 2)

		memberPut := items[0].Put
		require.NotNil(t, memberPut)
		assert.Equal(t, "USER#bob", memberPut.Item[attrPK].(*types.AttributeValueMemberS).Value)
		_, hasIsHost := memberPut.Item[attrIsHost]
		assert.False(t, hasIsHost)

		update := items[1].Update
		require.NotNil(t, update)
		assert.Equal(t, "SET #count = :next", aws.ToString(update.UpdateExpression))
		assert.Equal(t, "#count = :cur AND #status = :avail", aws.ToString(update.ConditionExpression))
		assert.Equal(t, "2", update.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberN).Value)
		assert.Equal(t, "1", update.ExpressionAttributeValues[":cur"].(*types.AttributeValueMemberN).Value)
	})

	t.Run("fourth join also flips the status to full", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		require.NoError(t, repo.AddParticipant(ctx, "abc", "erin", 3))

		update := client.transactInputs[0].TransactItems[1].Update
		require.NotNil(t, update)
		assert.Equal(t, "SET #count = :next, #status = :full", aws.ToString(update.UpdateExpression))
		assert.Equal(t, "full", update.ExpressionAttributeValues[":full"].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "4", update.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberN).Value)
	})

	t.Run("lost count condition is a precondition failure", func(t *testing.T) {
		client := &fakeClient{
			transactFn: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, transactCancelled()
			},
		}
		repo := newTestCarpoolRepo(client)

		err := repo.AddParticipant(ctx, "abc", "bob", 1)
		assert.True(t, apperrors.IsPreconditionFailed(err))
	})
}

func TestCarpoolRepositoryMarkStarted(t *testing.T) {
	ctx := context.Background()

	t.Run("conditional update encodes status and host", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		require.NoError(t, repo.MarkStarted(ctx, "abc", "alice"))

		require.Len(t, client.updateInputs, 1)
		input := client.updateInputs[0]
		assert.Equal(t, "#status = :full AND #host = :host", aws.ToString(input.ConditionExpression))
		assert.Equal(t, "alice", input.ExpressionAttributeValues[":host"].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "started", input.ExpressionAttributeValues[":started"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("wrong status or host is a precondition failure", func(t *testing.T) {
		client := &fakeClient{
			updateFn: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
				return nil, condFailed()
			},
		}
		repo := newTestCarpoolRepo(client)

		err := repo.MarkStarted(ctx, "abc", "mallory")
		assert.True(t, apperrors.IsPreconditionFailed(err))
	})
}

func TestCarpoolRepositoryClose(t *testing.T) {
	ctx := context.Background()

	crew := carpool.Crew{
		Host:         "alice",
		Participants: []string{"bob", "carol", "dave", "erin"},
	}

	t.Run("transaction touches carpool, participants and host", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		require.NoError(t, repo.Close(ctx, "abc", "alice", "carol", crew))

		require.Len(t, client.transactInputs, 1)
		items := client.transactInputs[0].TransactItems
		require.Len(t, items, 6)

		head := items[0].Update
		require.NotNil(t, head)
		assert.Equal(t, "#status = :started AND #host = :host", aws.ToString(head.ConditionExpression))
		assert.Equal(t, "carol", head.ExpressionAttributeValues[":winner"].(*types.AttributeValueMemberS).Value)

		// exactly one membership row gets the winner flag
		winners := 0
		for _, item := range items[1:] {
			require.NotNil(t, item.Update)
			if _, ok := item.Update.ExpressionAttributeValues[":won"]; ok {
				winners++
				assert.Equal(t, "USER#carol", item.Update.Key[attrPK].(*types.AttributeValueMemberS).Value)
			}
		}
		assert.Equal(t, 1, winners)

		tail := items[len(items)-1].Update
		assert.Equal(t, "USER#alice", tail.Key[attrPK].(*types.AttributeValueMemberS).Value)
	})

	t.Run("wrong status or host is a precondition failure", func(t *testing.T) {
		client := &fakeClient{
			transactFn: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, transactCancelled()
			},
		}
		repo := newTestCarpoolRepo(client)

		err := repo.Close(ctx, "abc", "alice", "carol", crew)
		assert.True(t, apperrors.IsPreconditionFailed(err))
	})
}

func TestCarpoolRepositoryCrew(t *testing.T) {
	ctx := context.Background()

	t.Run("splits host from participants", func(t *testing.T) {
		host, err := attributevalue.MarshalMap(membershipItem{
			PK: "USER#alice", SK: "CARPOOL#abc", EntityType: entityMembership, IsHost: true,
		})
		require.NoError(t, err)
		rider, err := attributevalue.MarshalMap(membershipItem{
			PK: "USER#bob", SK: "CARPOOL#abc", EntityType: entityMembership,
		})
		require.NoError(t, err)

		client := &fakeClient{
			queryFn: func(input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
				return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{host, rider}}, nil
			},
		}
		repo := newTestCarpoolRepo(client)

		crew, err := repo.Crew(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "alice", crew.Host)
		assert.Equal(t, []string{"bob"}, crew.Participants)

		require.Len(t, client.queryInputs, 1)
		assert.Equal(t, "MembershipIndex", aws.ToString(client.queryInputs[0].IndexName))
	})
}

func TestCarpoolRepositoryGetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("absent row is not found", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		_, err := repo.GetByID(ctx, "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("participant count uses a consistent read", func(t *testing.T) {
		item, err := attributevalue.MarshalMap(carpoolItem{
			PK: "CARPOOL#abc", SK: "CARPOOL#abc", EntityType: entityCarpool,
			HostName: "alice", CarpoolStatus: "available", ParticipantCount: 2,
		})
		require.NoError(t, err)

		client := &fakeClient{
			getFn: func(input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
				return &dynamodb.GetItemOutput{Item: item}, nil
			},
		}
		repo := newTestCarpoolRepo(client)

		count, err := repo.ParticipantCount(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.True(t, aws.ToBool(client.getInputs[0].ConsistentRead))
	})
}

func TestCarpoolRepositoryListAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("queries the status index, genre adds a filter", func(t *testing.T) {
		client := &fakeClient{}
		repo := newTestCarpoolRepo(client)

		_, err := repo.ListAvailable(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "StatusIndex", aws.ToString(client.queryInputs[0].IndexName))
		assert.Nil(t, client.queryInputs[0].FilterExpression)

		_, err = repo.ListAvailable(ctx, "rock")
		require.NoError(t, err)
		assert.NotNil(t, client.queryInputs[1].FilterExpression)
	})
}
