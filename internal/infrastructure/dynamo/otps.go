package dynamo

import (
	"context"
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

// OtpRepo manages one-time passcodes.
// PK: identifier, SK: purpose ("login" | "onboarding").
type OtpRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpRepo(client *dynamodb.Client, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

// Put stores a code. Writing to an existing (identifier, purpose) key
// overwrites the previous item, so at most one code is live per key.
func (r *OtpRepo) Put(ctx context.Context, o *domain.OtpCode) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OtpRepo) Get(ctx context.Context, identifier, purpose string) (*domain.OtpCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("identifier", identifier, "purpose", purpose),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp code not found: %w", domain.ErrNotFound)
	}
	var o domain.OtpCode
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OtpRepo) Delete(ctx context.Context, identifier, purpose string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("identifier", identifier, "purpose", purpose),
	})
	return err
}

// DeleteExpired removes every code whose TTL has passed. DynamoDB's own TTL
// reaper runs with hours of lag, so repos sweep inline before reads/writes.
func (r *OtpRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("expires_at <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
		ProjectionExpression: aws.String("identifier, purpose"),
	})
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range out.Items {
		idAttr, ok := item["identifier"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		purposeAttr, ok := item["purpose"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.Delete(ctx, idAttr.Value, purposeAttr.Value); err != nil {
			slog.Warn("failed to delete expired otp code", "identifier", idAttr.Value, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
