package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/johnwmail/pastelite/models"
)

// dynamoAPI is the subset of the DynamoDB client used by DynamoStore
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore implements PasteStore using DynamoDB.
// The table needs a string partition key "id" and TTL enabled on "ttl".
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoStore creates a new DynamoDB storage backend. A non-empty
// endpoint overrides the service URL (DynamoDB Local, LocalStack).
func NewDynamoStore(ctx context.Context, tableName, region, endpoint string) (*DynamoStore, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}, nil
}

// Store saves a paste to DynamoDB
func (d *DynamoStore) Store(ctx context.Context, paste *models.Paste) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                pasteToItem(paste),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrDuplicateID
	}
	return err
}

// Get retrieves a paste by its ID
func (d *DynamoStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	if result.Item == nil {
		return nil, nil // Not found
	}

	return itemToPaste(result.Item)
}

// IncrementViewAndFetch adds one to view_count and returns ALL_NEW attributes
func (d *DynamoStore) IncrementViewAndFetch(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("ADD view_count :inc"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		// ADD would otherwise create the item
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, nil
		}
		return nil, err
	}

	return itemToPaste(out.Attributes)
}

// Delete removes a paste from DynamoDB
func (d *DynamoStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})

	return err
}

// Ping describes the table to verify credentials and reachability
func (d *DynamoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	return err
}

// Close is a no-op for DynamoDB
func (d *DynamoStore) Close() error {
	return nil
}

// pasteToItem converts a Paste model to a DynamoDB item
func pasteToItem(paste *models.Paste) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: paste.ID},
		"content":    &types.AttributeValueMemberS{Value: paste.Content},
		"view_count": &types.AttributeValueMemberN{Value: strconv.Itoa(paste.ViewCount)},
		"created_at": &types.AttributeValueMemberS{Value: paste.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}

	if paste.MaxViews != nil {
		item["max_views"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*paste.MaxViews)}
	}

	// Add TTL if expires_at is set. DynamoDB TTL wants epoch seconds, rounded
	// up so the item never disappears before it has expired.
	if paste.ExpiresAt != nil {
		item["expires_at"] = &types.AttributeValueMemberS{Value: paste.ExpiresAt.UTC().Format(time.RFC3339Nano)}
		ttl := paste.ExpiresAt.Unix()
		if paste.ExpiresAt.Nanosecond() > 0 {
			ttl++
		}
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)}
	}

	return item
}

// itemToPaste converts a DynamoDB item to a Paste model
func itemToPaste(item map[string]types.AttributeValue) (*models.Paste, error) {
	paste := &models.Paste{}

	if id, ok := item["id"].(*types.AttributeValueMemberS); ok {
		paste.ID = id.Value
	}

	if content, ok := item["content"].(*types.AttributeValueMemberS); ok {
		paste.Content = content.Value
	}

	if viewCount, ok := item["view_count"].(*types.AttributeValueMemberN); ok {
		count, err := strconv.Atoi(viewCount.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid view_count %q: %w", viewCount.Value, err)
		}
		paste.ViewCount = count
	}

	if maxViews, ok := item["max_views"].(*types.AttributeValueMemberN); ok {
		limit, err := strconv.Atoi(maxViews.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid max_views %q: %w", maxViews.Value, err)
		}
		paste.MaxViews = &limit
	}

	if createdAt, ok := item["created_at"].(*types.AttributeValueMemberS); ok {
		ts, err := time.Parse(time.RFC3339Nano, createdAt.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt.Value, err)
		}
		paste.CreatedAt = ts
	}

	if expiresAt, ok := item["expires_at"].(*types.AttributeValueMemberS); ok {
		ts, err := time.Parse(time.RFC3339Nano, expiresAt.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_at %q: %w", expiresAt.Value, err)
		}
		paste.ExpiresAt = &ts
	}

	return paste, nil
}
