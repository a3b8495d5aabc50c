package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"site-assistant/internal/domain"
)

const (
	skPrefixExchange = "EXCH#"
	ttlDuration      = 30 * 24 * time.Hour // 30-day TTL
)

// DynamoDBAPI is the minimal DynamoDB interface required by Client.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client records chat exchange metadata in a DynamoDB table partitioned by day.
type Client struct {
	api       DynamoDBAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api DynamoDBAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// dayPK returns the partition key for exchanges recorded on the given day.
func dayPK(ts time.Time) string {
	return "DAY#" + ts.UTC().Format(time.DateOnly)
}

// exchangeSK orders exchanges chronologically and keeps same-instant
// exchanges apart by correlation id.
func exchangeSK(ts time.Time, correlationID string) string {
	return skPrefixExchange + ts.UTC().Format(time.RFC3339Nano) + "#" + correlationID
}

// ExchangeTime recovers the recording time from the sort key. It returns the
// zero time for keys it does not recognise.
func ExchangeTime(ex domain.Exchange) time.Time {
	rest, ok := strings.CutPrefix(ex.SK, skPrefixExchange)
	if !ok {
		return time.Time{}
	}
	stamp, _, _ := strings.Cut(rest, "#")
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// NewExchange stamps keys and TTL on an exchange recorded at ts.
func NewExchange(ts time.Time, ex domain.Exchange) domain.Exchange {
	ex.PK = dayPK(ts)
	ex.SK = exchangeSK(ts, ex.CorrelationID)
	ex.TTL = ts.Add(ttlDuration).Unix()
	return ex
}

// RecordExchange persists one exchange. Keys and TTL are derived from the
// current time when not already set.
func (c *Client) RecordExchange(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.CorrelationID) == "" {
		return errors.New("repository: RecordExchange: correlation id is required")
	}
	if ex.PK == "" || ex.SK == "" {
		ex = NewExchange(c.now(), ex)
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordExchange: %w", err)
	}
	return nil
}

// ListExchanges returns up to limit exchanges recorded on day, oldest first.
func (c *Client) ListExchanges(ctx context.Context, day time.Time, limit int) ([]domain.Exchange, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: dayPK(day)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixExchange},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListExchanges query: %w", err)
	}

	exchanges := make([]domain.Exchange, 0, len(out.Items))
	for _, item := range out.Items {
		ex, err := itemToExchange(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListExchanges unmarshal: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, nil
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: ex.PK},
		"SK":            &types.AttributeValueMemberS{Value: ex.SK},
		"correlationId": &types.AttributeValueMemberS{Value: ex.CorrelationID},
		"model":         &types.AttributeValueMemberS{Value: ex.Model},
		"status":        numAttr(int64(ex.Status)),
		"reason":        &types.AttributeValueMemberS{Value: ex.Reason},
		"promptChars":   numAttr(int64(ex.PromptChars)),
		"replyChars":    numAttr(int64(ex.ReplyChars)),
		"historyTurns":  numAttr(int64(ex.HistoryTurns)),
		"latencyMs":     numAttr(ex.LatencyMillis),
		"ttl":           numAttr(ex.TTL),
	}
}

func itemToExchange(item map[string]types.AttributeValue) (domain.Exchange, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Exchange{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Exchange{}, err
	}
	correlationID, err := strAttr(item, "correlationId")
	if err != nil {
		return domain.Exchange{}, err
	}
	status, err := intAttr(item, "status")
	if err != nil {
		return domain.Exchange{}, err
	}
	model, _ := strAttr(item, "model")   // allow empty
	reason, _ := strAttr(item, "reason") // allow empty
	promptChars, _ := intAttr(item, "promptChars")
	replyChars, _ := intAttr(item, "replyChars")
	historyTurns, _ := intAttr(item, "historyTurns")
	latency, _ := intAttr(item, "latencyMs")

	return domain.Exchange{
		PK:            pk,
		SK:            sk,
		CorrelationID: correlationID,
		Model:         model,
		Status:        int(status),
		Reason:        reason,
		PromptChars:   int(promptChars),
		ReplyChars:    int(replyChars),
		HistoryTurns:  int(historyTurns),
		LatencyMillis: latency,
	}, nil
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
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

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
