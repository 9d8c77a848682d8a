package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edu-notify-api/internal/domain"
)

// UserRepo reads the platform users table. The table is owned by the user service;
// this repo never writes to it.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListIDsByRole returns the ids of enabled users holding role.
func (r *UserRepo) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	return r.scanIDs(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		FilterExpression:     aws.String("contains(#roles, :r) AND #en = :one"),
		ProjectionExpression: aws.String("#uid"),
		ExpressionAttributeNames: map[string]string{
			"#roles": fieldRoles,
			"#en":    fieldEnable,
			"#uid":   fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r":   &types.AttributeValueMemberS{Value: string(role)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
}

// ListAllIDs returns the ids of every enabled user.
func (r *UserRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	return r.scanIDs(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		FilterExpression:     aws.String("#en = :one"),
		ProjectionExpression: aws.String("#uid"),
		ExpressionAttributeNames: map[string]string{
			"#en":  fieldEnable,
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
}

func (r *UserRepo) scanIDs(ctx context.Context, in *dynamodb.ScanInput) ([]string, error) {
	items, err := scanAll(ctx, r.client, in)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if v, ok := item[fieldUserID].(*types.AttributeValueMemberS); ok {
			ids = append(ids, v.Value)
		}
	}
	return ids, nil
}
