package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-auth-api/internal/domain"
)

// SessionRepo provides typed DynamoDB operations for the sessions table.
// PK: token (the opaque session token handed to clients inside refresh JWTs).
type SessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSessionRepo(client *dynamodb.Client, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	return err
}

// Revoke stamps revoked_at on the session iff it exists and is not already
// revoked. Returns true when a row was actually changed, the only signal a
// logout caller gets about the validity of the presented token.
func (r *SessionRepo) Revoke(ctx context.Context, token string, at time.Time) (bool, error) {
	av, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return false, fmt.Errorf("marshal revoked_at: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("token", token),
		UpdateExpression:    aws.String("SET #r = :at"),
		ConditionExpression: aws.String("attribute_exists(#t) AND attribute_not_exists(#r)"),
		ExpressionAttributeNames: map[string]string{
			"#r": fieldRevokedAt,
			"#t": fieldToken,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{":at": av},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RevokeByUser revokes every live session owned by userID, via the user_id GSI.
func (r *SessionRepo) RevokeByUser(ctx context.Context, userID int64, at time.Time) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberN{Value: strconv.FormatInt(userID, 10)},
		},
	})
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range out.Items {
		tokenAttr, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if _, err := r.Revoke(ctx, tokenAttr.Value, at); err != nil {
			slog.Warn("failed to revoke session during user revoke-all", "user_id", userID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DeleteExpired lazily removes sessions past their TTL.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("expires_at <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
		ProjectionExpression: aws.String("#t"),
		ExpressionAttributeNames: map[string]string{
			"#t": fieldToken,
		},
	})
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range out.Items {
		tokenAttr, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.Delete(ctx, tokenAttr.Value); err != nil {
			slog.Warn("failed to delete expired session", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
