package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notify-api-nosql/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications
// table. The table is keyed by user_id (partition) and notification_id (sort),
// so a descending query over notification_id yields per-user recency order.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// QueryLast returns the notification with the highest notification_id for the
// user, or nil if the user has none. With consistent=false the read is
// eventually consistent and may miss a very recent write; callers resolving a
// write conflict must pass consistent=true.
func (r *NotificationRepo) QueryLast(ctx context.Context, userID string, consistent bool) (*domain.Notification, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(consistent),
	})
	if err != nil {
		if isTransient(err) {
			return nil, fmt.Errorf("query last notification: %w: %v", domain.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("query last notification: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Items[0], &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	return &n, nil
}

// Insert creates the record iff no record exists at (user_id, notification_id).
// Returns domain.ErrConflict when another writer already committed that id and
// domain.ErrUnavailable on transient store faults; anything else is fatal.
func (r *NotificationRepo) Insert(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(notification_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("notification id %d already in use: %w", n.NotificationID, domain.ErrConflict)
		}
		if isTransient(err) {
			return fmt.Errorf("insert notification: %w: %v", domain.ErrUnavailable, err)
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListDescending returns up to limit notifications for the user in descending
// id order, starting strictly below beforeID. Pass beforeID <= 0 to start from
// the newest record.
func (r *NotificationRepo) ListDescending(ctx context.Context, userID string, beforeID int64, limit int32) ([]domain.Notification, error) {
	keyCond := "user_id = :uid"
	values := map[string]types.AttributeValue{
		":uid": &types.AttributeValueMemberS{Value: userID},
	}
	if beforeID > 0 {
		keyCond += " AND notification_id < :before"
		values[":before"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", beforeID)}
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	return notifications, nil
}

// Get fetches a single notification by its composite key.
func (r *NotificationRepo) Get(ctx context.Context, userID string, notificationID int64) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       notificationKey(userID, notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	return &n, nil
}
