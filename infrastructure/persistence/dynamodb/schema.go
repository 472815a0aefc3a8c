// Package dynamodb implements the application ports against a single
// DynamoDB table with a composite PK/SK key and two GSIs: a membership index
// (SK as partition) resolving a carpool's crew, and a status index
// (CarpoolStatus as partition) listing carpools by lifecycle state.
package dynamodb

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the carpool table.
const (
	attrPK               = "PK"
	attrSK               = "SK"
	attrEntityType       = "EntityType"
	attrHostName         = "HostName"
	attrGenre            = "Genre"
	attrLicencePlate     = "LicencePlate"
	attrParticipantCount = "ParticipantCount"
	attrStatus           = "CarpoolStatus"
	attrWinner           = "Winner"
	attrIsHost           = "IsHost"
	attrIsWinner         = "IsWinner"
	attrLongitude        = "Longitude"
	attrLatitude         = "Latitude"
)

// Entity type discriminators.
const (
	entityUser       = "USER"
	entityCarpool    = "CARPOOL"
	entityMembership = "MEMBERSHIP"
)

// Key prefixes disambiguate entity types sharing the key space.
const (
	carpoolKeyPrefix = "CARPOOL#"
	userKeyPrefix    = "USER#"
)

func carpoolKey(id string) string {
	return carpoolKeyPrefix + id
}

func userKey(name string) string {
	return userKeyPrefix + name
}

func carpoolIDFromKey(key string) string {
	return strings.TrimPrefix(key, carpoolKeyPrefix)
}

func userNameFromKey(key string) string {
	return strings.TrimPrefix(key, userKeyPrefix)
}

// DynamoDBAPI is the slice of the DynamoDB client surface this package uses.
// *dynamodb.Client satisfies it; tests substitute fakes.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// userItem is the DynamoDB item shape for a user row (PK = SK = USER#name).
type userItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	EntityType string  `dynamodbav:"EntityType"`
	Longitude  float64 `dynamodbav:"Longitude"`
	Latitude   float64 `dynamodbav:"Latitude"`
}

// carpoolItem is the item shape for a carpool row (PK = SK = CARPOOL#id).
type carpoolItem struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	EntityType       string `dynamodbav:"EntityType"`
	HostName         string `dynamodbav:"HostName"`
	Genre            string `dynamodbav:"Genre"`
	LicencePlate     string `dynamodbav:"LicencePlate"`
	ParticipantCount int    `dynamodbav:"ParticipantCount"`
	CarpoolStatus    string `dynamodbav:"CarpoolStatus"`
	Winner           string `dynamodbav:"Winner,omitempty"`
}

// membershipItem is the item shape for a membership row
// (PK = USER#name, SK = CARPOOL#id). CarpoolStatus mirrors the carpool's
// status at write time so user-partition queries can filter non-closed links
// without a second lookup; the carpool row stays authoritative for
// full/started.
type membershipItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	IsHost        bool   `dynamodbav:"IsHost,omitempty"`
	IsWinner      bool   `dynamodbav:"IsWinner,omitempty"`
	CarpoolStatus string `dynamodbav:"CarpoolStatus"`
}

// isConditionalCheckFailed reports whether err is a lost write-time
// condition, either on a single-item write or inside a cancelled transaction.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tc *types.TransactionCanceledException
	if errors.As(err, &tc) {
		for _, reason := range tc.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
