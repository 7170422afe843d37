package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const skRecord = "RECORD#"

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps a DynamoDB table of patient records, one item per patient.
type Client struct {
	api       dynamodbAPI
	tableName string
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// patientPK returns the DynamoDB partition key for a patient record.
func patientPK(key string) string {
	return "PATIENT#" + key
}

func recordKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: patientPK(key)},
		"SK": &types.AttributeValueMemberS{Value: skRecord},
	}
}

// GetDocument returns the record text stored for key.
func (c *Client) GetDocument(ctx context.Context, key string) (string, error) {
	key, ok := normalizeKey(key)
	if !ok {
		return "", ErrNotFound
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            recordKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("repository: GetDocument get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", ErrNotFound
	}
	content, err := strAttr(out.Item, "content")
	if err != nil {
		return "", fmt.Errorf("repository: GetDocument decode: %w", err)
	}
	return content, nil
}

// PutDocument writes or replaces the record text for key.
func (c *Client) PutDocument(ctx context.Context, key, content string) error {
	key, ok := normalizeKey(key)
	if !ok {
		return fmt.Errorf("repository: PutDocument: invalid key %q", key)
	}
	item := recordKey(key)
	item["patientKey"] = &types.AttributeValueMemberS{Value: key}
	item["content"] = &types.AttributeValueMemberS{Value: content}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: PutDocument: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
