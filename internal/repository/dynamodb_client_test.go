package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"site-assistant/internal/domain"
)

type fakeDynamo struct {
	putErr       error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	lastPutInput *dynamodb.PutItemInput
	lastQueryIn  *dynamodb.QueryInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

var fixedNow = time.Date(2026, 10, 17, 12, 30, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "audit-table")
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func sAttr(item map[string]types.AttributeValue, key string) string {
	return item[key].(*types.AttributeValueMemberS).Value
}

func nAttr(item map[string]types.AttributeValue, key string) string {
	return item[key].(*types.AttributeValueMemberN).Value
}

func TestRecordExchange_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.RecordExchange(context.Background(), domain.Exchange{
		CorrelationID: "corr-1",
		Model:         "model-a",
		Status:        200,
		PromptChars:   12,
		ReplyChars:    40,
		HistoryTurns:  2,
		LatencyMillis: 850,
	})
	require.NoError(t, err)

	item := db.lastPutInput.Item
	require.Equal(t, "audit-table", *db.lastPutInput.TableName)
	require.Equal(t, "DAY#2026-10-17", sAttr(item, "PK"))
	require.Equal(t, "EXCH#2026-10-17T12:30:00Z#corr-1", sAttr(item, "SK"))
	require.Equal(t, "200", nAttr(item, "status"))
	require.Equal(t, "850", nAttr(item, "latencyMs"))
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *db.lastPutInput.ConditionExpression)
	require.NotContains(t, item, "prompt")
	require.NotContains(t, item, "reply")
}

func TestRecordExchange_KeepsPresetKeys(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ex := NewExchange(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), domain.Exchange{CorrelationID: "corr-2", Status: 502})

	require.NoError(t, c.RecordExchange(context.Background(), ex))
	require.Equal(t, "DAY#2026-01-02", sAttr(db.lastPutInput.Item, "PK"))
}

func TestRecordExchange_MissingCorrelationID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	err := c.RecordExchange(context.Background(), domain.Exchange{Status: 200})
	require.Error(t, err)
	require.Contains(t, err.Error(), "correlation id")
}

func TestRecordExchange_DynamoError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")})
	err := c.RecordExchange(context.Background(), domain.Exchange{CorrelationID: "corr-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "RecordExchange")
}

func TestListExchanges_HappyPath(t *testing.T) {
	recorded := NewExchange(fixedNow, domain.Exchange{CorrelationID: "corr-1", Model: "model-a", Status: 200, ReplyChars: 9})
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{exchangeItem(recorded)}}}
	c := mustNewClient(t, db)

	out, err := c.ListExchanges(context.Background(), fixedNow, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "corr-1", out[0].CorrelationID)
	require.Equal(t, 200, out[0].Status)
	require.Equal(t, 9, out[0].ReplyChars)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.lastQueryIn.KeyConditionExpression)
	require.True(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(50), *db.lastQueryIn.Limit)
}

func TestListExchanges_NoLimit(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	out, err := c.ListExchanges(context.Background(), fixedNow, 0)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Nil(t, db.lastQueryIn.Limit)
}

func TestListExchanges_QueryError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.ListExchanges(context.Background(), fixedNow, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ListExchanges")
}

func TestListExchanges_MalformedItem(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "DAY#2026-10-17"},
		"SK": &types.AttributeValueMemberS{Value: "EXCH#ts#x"},
	}
	c := mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}})
	_, err := c.ListExchanges(context.Background(), fixedNow, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "correlationId")
}

func TestListExchanges_StatusNotNumber(t *testing.T) {
	item := exchangeItem(NewExchange(fixedNow, domain.Exchange{CorrelationID: "c"}))
	item["status"] = &types.AttributeValueMemberS{Value: "bad"}
	c := mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}})
	_, err := c.ListExchanges(context.Background(), fixedNow, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a number")
}

func TestNewExchange_Fields(t *testing.T) {
	ex := NewExchange(fixedNow, domain.Exchange{CorrelationID: "corr-9"})
	require.Equal(t, "DAY#2026-10-17", ex.PK)
	require.Contains(t, ex.SK, "EXCH#")
	require.Contains(t, ex.SK, "corr-9")
	require.Equal(t, fixedNow.Add(ttlDuration).Unix(), ex.TTL)
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "audit-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}

func TestExchangeTime(t *testing.T) {
	ex := NewExchange(fixedNow, domain.Exchange{CorrelationID: "corr-a#b"})
	require.True(t, fixedNow.Equal(ExchangeTime(ex)))

	require.True(t, ExchangeTime(domain.Exchange{SK: "OTHER#x"}).IsZero())
	require.True(t, ExchangeTime(domain.Exchange{SK: "EXCH#not-a-time#c"}).IsZero())
}
