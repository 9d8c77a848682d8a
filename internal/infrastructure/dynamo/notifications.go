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

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    API
	tableName string
}

func NewNotificationRepo(client API, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// Put inserts a single notification. An existing id is a conflict, never an overwrite.
func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldNotificationID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("notification %s exists: %w", n.NotificationID, domain.ErrConflict)
	}
	return err
}

// PutMany inserts one independent item per notification and returns how many were written.
func (r *NotificationRepo) PutMany(ctx context.Context, ns []domain.Notification) (int, error) {
	requests := make([]types.WriteRequest, 0, len(ns))
	for i := range ns {
		item, err := attributevalue.MarshalMap(&ns[i])
		if err != nil {
			return 0, fmt.Errorf("marshal notification: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return batchWrite(ctx, r.client, r.tableName, requests)
}

// List returns the requested page of a recipient's notifications, newest first,
// plus the total number of notifications matching the query.
func (r *NotificationRepo) List(ctx context.Context, userID string, q domain.NotificationQuery) ([]domain.Notification, int, error) {
	items, err := queryAll(ctx, r.client, r.byUserQuery(userID, q.UnreadOnly))
	if err != nil {
		return nil, 0, err
	}
	total := len(items)
	skip := q.Skip()
	if skip < 0 || skip >= total {
		return []domain.Notification{}, total, nil
	}
	end := total
	if q.Limit > 0 {
		end = skip + min(q.Limit, total-skip)
	}
	page := make([]domain.Notification, 0, end-skip)
	if err := attributevalue.UnmarshalListOfMaps(items[skip:end], &page); err != nil {
		return nil, 0, err
	}
	return page, total, nil
}

// CountUnread counts a recipient's notifications with read = false.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	in := r.byUserQuery(userID, true)
	in.Select = types.SelectCount
	count := 0
	for {
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return 0, err
		}
		count += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return count, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// MarkRead sets read = true on a notification owned by userID. A missing item and
// an item owned by someone else both yield ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldNotificationID, notificationID),
		UpdateExpression:    aws.String("SET #r = :t"),
		ConditionExpression: aws.String("#uid = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#r":   fieldRead,
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Attributes, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkAllRead flips every unread notification of userID and returns how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	in := r.byUserQuery(userID, true)
	in.ProjectionExpression = aws.String("#id")
	in.ExpressionAttributeNames["#id"] = fieldNotificationID
	items, err := queryAll(ctx, r.client, in)
	if err != nil {
		return 0, err
	}
	modified := 0
	for _, item := range items {
		idAttr, ok := item[fieldNotificationID].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                aws.String(r.tableName),
			Key:                      strKey(fieldNotificationID, idAttr.Value),
			UpdateExpression:         aws.String("SET #r = :t"),
			ConditionExpression:      aws.String("#r = :f"),
			ExpressionAttributeNames: map[string]string{"#r": fieldRead},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberBOOL{Value: true},
				":f": &types.AttributeValueMemberBOOL{Value: false},
			},
		})
		if isConditionFailed(err) {
			// Read concurrently; not ours to count.
			continue
		}
		if err != nil {
			return modified, err
		}
		modified++
	}
	return modified, nil
}

// Delete removes a notification owned by userID and returns it. Missing and
// foreign items both yield ErrNotFound.
func (r *NotificationRepo) Delete(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldNotificationID, notificationID),
		ConditionExpression:      aws.String("#uid = :uid"),
		ExpressionAttributeNames: map[string]string{"#uid": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Attributes, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteAll removes every notification of userID and returns how many were deleted.
func (r *NotificationRepo) DeleteAll(ctx context.Context, userID string) (int, error) {
	in := r.byUserQuery(userID, false)
	in.ProjectionExpression = aws.String("#id")
	in.ExpressionAttributeNames = map[string]string{"#id": fieldNotificationID}
	items, err := queryAll(ctx, r.client, in)
	if err != nil {
		return 0, err
	}
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		idAttr, ok := item[fieldNotificationID].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: strKey(fieldNotificationID, idAttr.Value)},
		})
	}
	return batchWrite(ctx, r.client, r.tableName, requests)
}

// byUserQuery queries the recipient index newest first, optionally unread only.
func (r *NotificationRepo) byUserQuery(userID string, unreadOnly bool) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(notificationsByUserIndex),
		KeyConditionExpression: aws.String("#uid = :uid"),
		ScanIndexForward:       aws.Bool(false),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	if unreadOnly {
		in.FilterExpression = aws.String("#r = :f")
		in.ExpressionAttributeNames["#r"] = fieldRead
		in.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	return in
}
