package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edu-notify-api/internal/domain"
)

// DeviceRegistrationRepo provides typed DynamoDB operations for the device registrations table.
// Tokens live in a string set, so concurrent adds and removes never lose each other.
type DeviceRegistrationRepo struct {
	client    API
	tableName string
}

func NewDeviceRegistrationRepo(client API, tableName string) *DeviceRegistrationRepo {
	return &DeviceRegistrationRepo{client: client, tableName: tableName}
}

// AddToken adds token to the user's set, creating the record on first use.
// deviceInfo replaces the stored value only when non-nil.
func (r *DeviceRegistrationRepo) AddToken(ctx context.Context, userID, token string, deviceInfo map[string]any) (*domain.DeviceRegistration, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{fieldUpdatedAt: now}
	if deviceInfo != nil {
		updates[fieldDeviceInfo] = deviceInfo
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	createdAt, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, err
	}
	ue.Names["#tokens"] = fieldTokens
	ue.Names["#ca"] = fieldCreatedAt
	ue.Values[":tok"] = &types.AttributeValueMemberSS{Value: []string{token}}
	ue.Values[":ca"] = createdAt

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String("ADD #tokens :tok " + ue.Expr + ", #ca = if_not_exists(#ca, :ca)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var reg domain.DeviceRegistration
	if err := attributevalue.UnmarshalMap(out.Attributes, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// RemoveToken deletes token from the user's set. A missing record or token is not an error.
func (r *DeviceRegistrationRepo) RemoveToken(ctx context.Context, userID, token string) error {
	updatedAt, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("DELETE #tokens :tok SET #ua = :ua"),
		ConditionExpression: aws.String("attribute_exists(#uid)"),
		ExpressionAttributeNames: map[string]string{
			"#tokens": fieldTokens,
			"#ua":     fieldUpdatedAt,
			"#uid":    fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok": &types.AttributeValueMemberSS{Value: []string{token}},
			":ua":  updatedAt,
		},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}

// ClearTokens empties the user's set and returns the tokens it held.
// The record itself is kept.
func (r *DeviceRegistrationRepo) ClearTokens(ctx context.Context, userID string) ([]string, error) {
	updatedAt, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("REMOVE #tokens SET #ua = :ua"),
		ConditionExpression: aws.String("attribute_exists(#uid)"),
		ExpressionAttributeNames: map[string]string{
			"#tokens": fieldTokens,
			"#ua":     fieldUpdatedAt,
			"#uid":    fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ua": updatedAt,
		},
		ReturnValues: types.ReturnValueUpdatedOld,
	})
	if isConditionFailed(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	old, ok := out.Attributes[fieldTokens].(*types.AttributeValueMemberSS)
	if !ok {
		return nil, nil
	}
	return old.Value, nil
}

// Get returns the user's registration or ErrNotFound.
func (r *DeviceRegistrationRepo) Get(ctx context.Context, userID string) (*domain.DeviceRegistration, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("device registration not found: %w", domain.ErrNotFound)
	}
	var reg domain.DeviceRegistration
	if err := attributevalue.UnmarshalMap(out.Item, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}
