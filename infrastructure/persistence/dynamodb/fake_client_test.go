package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeClient implements DynamoDBAPI with pluggable behavior per call. Inputs
// are recorded so tests can assert on the exact wire shapes.
type fakeClient struct {
	putInputs      []*dynamodb.PutItemInput
	getInputs      []*dynamodb.GetItemInput
	updateInputs   []*dynamodb.UpdateItemInput
	deleteInputs   []*dynamodb.DeleteItemInput
	queryInputs    []*dynamodb.QueryInput
	transactInputs []*dynamodb.TransactWriteItemsInput

	putFn      func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	getFn      func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	updateFn   func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteFn   func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	queryFn    func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	transactFn func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
}

func (f *fakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInputs = append(f.putInputs, params)
	if f.putFn != nil {
		return f.putFn(params)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getInputs = append(f.getInputs, params)
	if f.getFn != nil {
		return f.getFn(params)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInputs = append(f.updateInputs, params)
	if f.updateFn != nil {
		return f.updateFn(params)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deleteInputs = append(f.deleteInputs, params)
	if f.deleteFn != nil {
		return f.deleteFn(params)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, params)
	if f.queryFn != nil {
		return f.queryFn(params)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactInputs = append(f.transactInputs, params)
	if f.transactFn != nil {
		return f.transactFn(params)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
