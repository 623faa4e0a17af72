package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"payledger/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var occurred = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e Event) error {
	return m.Called(ctx, e).Error(0)
}

func sampleTransaction() *models.Transaction {
	parent := "parent-1"
	return &models.Transaction{
		ID:                  "tx-1",
		OwnerID:             7,
		Amount:              decimal.RequireFromString("42.50"),
		Currency:            "EUR",
		Type:                models.TransactionTypeRefund,
		Status:              models.StatusFailed,
		AttemptCount:        1,
		ParentTransactionID: &parent,
		FailureMessage:      "declined",
	}
}

func TestFromTransaction(t *testing.T) {
	e := FromTransaction(TypeFailed, sampleTransaction(), occurred)

	assert.Len(t, e.ID, 26)
	assert.Equal(t, "tx-1", e.TransactionID)
	assert.Equal(t, "parent-1", e.ParentTransactionID)
	assert.Equal(t, models.StatusFailed, e.Status)
	assert.Equal(t, "declined", e.Message)
	assert.Equal(t, occurred, e.OccurredAt)

	other := FromTransaction(TypeFailed, sampleTransaction(), occurred)
	assert.Less(t, e.ID, other.ID)
}

func TestForStatus(t *testing.T) {
	assert.Equal(t, TypeRetried, ForStatus(models.StatusPending))
	assert.Equal(t, TypePartiallyRefunded, ForStatus(models.StatusPartiallyRefunded))
	assert.Equal(t, TypeDisputed, ForStatus(models.StatusDisputed))
}

func TestRedisPublisher(t *testing.T) {
	rdb := new(MockRedis)
	rdb.On("Publish", mock.Anything, "ledger_events", mock.MatchedBy(func(payload []byte) bool {
		var decoded Event
		return json.Unmarshal(payload, &decoded) == nil && decoded.TransactionID == "tx-1" && decoded.Amount.Equal(decimal.RequireFromString("42.5"))
	})).Return(1, nil).Once()
	rdb.On("Publish", mock.Anything, "ledger_events", mock.Anything).Return(0, errors.New("redis down")).Once()

	p := NewRedisPublisher(rdb, "", nil)
	e := FromTransaction(TypeFailed, sampleTransaction(), occurred)

	require.NoError(t, p.Publish(context.Background(), e))
	err := p.Publish(context.Background(), e)
	assert.ErrorContains(t, err, "redis down")
	rdb.AssertExpectations(t)
}

func TestKafkaPublisher(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && string(msgs[0].Key) == "tx-1" &&
			string(msgs[0].Headers[0].Value) == string(TypeFailed)
	})).Return(nil)
	w.On("Close").Return(nil)

	p := newKafkaPublisher(w, nil)
	require.NoError(t, p.Publish(context.Background(), FromTransaction(TypeFailed, sampleTransaction(), occurred)))
	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	e := FromTransaction(TypeSucceeded, sampleTransaction(), occurred)

	failing := new(MockPublisher)
	failing.On("Publish", ctx, e).Return(errors.New("broker unavailable"))
	rec := &Recorder{}

	err := Multi{failing, rec, Noop{}}.Publish(ctx, e)
	assert.ErrorContains(t, err, "broker unavailable")
	assert.Equal(t, []Type{TypeSucceeded}, rec.Types())
	assert.Equal(t, 1, rec.Count(TypeSucceeded))
	assert.NoError(t, Multi{}.Publish(ctx, e))
}
