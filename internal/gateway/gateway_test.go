package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/config"
	"ms-lottery/internal/gateway"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
	"ms-lottery/internal/sse"
)

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func testTopics() config.TopicConfig {
	return config.TopicConfig{
		LotteryPosted:    "lottery.posted",
		TicketsSold:      "lottery.tickets_sold",
		LotteryFinalized: "lottery.finalized",
	}
}

func TestLotteryPostedFansOut(t *testing.T) {
	mockKafka := new(MockKafkaPublisher)
	emitter := sse.NewLotteryEventEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := emitter.Subscribe(ctx)

	gw := gateway.New(mockKafka, testTopics(), nil, emitter, &logger.Logger{})

	summary := models.LotterySummary{ID: "lot-1", Item: "Sword", SellerID: "seller-1", State: models.StateOpen}
	mockKafka.On("Publish", "lottery.posted", "lot-1", mock.MatchedBy(func(value []byte) bool {
		var got models.LotterySummary
		return json.Unmarshal(value, &got) == nil && got.Item == "Sword"
	})).Return(nil)

	require.NoError(t, gw.LotteryPosted(summary))
	mockKafka.AssertExpectations(t)

	select {
	case update := <-events:
		assert.Equal(t, "posted", update.Kind)
		require.NotNil(t, update.Lottery)
		assert.Equal(t, "lot-1", update.Lottery.ID)
	case <-time.After(time.Second):
		t.Fatal("no SSE update received")
	}
}

func TestTicketsSoldPayload(t *testing.T) {
	mockKafka := new(MockKafkaPublisher)
	gw := gateway.New(mockKafka, testTopics(), nil, nil, &logger.Logger{})

	mockKafka.On("Publish", "lottery.tickets_sold", "lot-1", mock.MatchedBy(func(value []byte) bool {
		var got struct {
			LotteryID   string `json:"lottery_id"`
			TicketsSold int    `json:"tickets_sold"`
		}
		return json.Unmarshal(value, &got) == nil && got.LotteryID == "lot-1" && got.TicketsSold == 7
	})).Return(nil)

	require.NoError(t, gw.TicketsSold("lot-1", 7))
	mockKafka.AssertExpectations(t)
}

func TestLotteryFinalizedKeyedByLottery(t *testing.T) {
	mockKafka := new(MockKafkaPublisher)
	gw := gateway.New(mockKafka, testTopics(), nil, nil, &logger.Logger{})

	winner := models.Ticket{Code: "ABCD1234", BuyerID: "alice"}
	outcome := models.Outcome{LotteryID: "lot-1", Item: "Sword", TicketsSold: 3, Winner: &winner, DrawnAt: time.Now().UTC()}

	mockKafka.On("Publish", "lottery.finalized", "lot-1", mock.Anything).Return(nil)

	require.NoError(t, gw.LotteryFinalized(outcome))
	mockKafka.AssertExpectations(t)
}

func TestKafkaErrorPropagates(t *testing.T) {
	mockKafka := new(MockKafkaPublisher)
	gw := gateway.New(mockKafka, testTopics(), nil, nil, &logger.Logger{})

	mockKafka.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := gw.LotteryPosted(models.LotterySummary{ID: "lot-1"})
	assert.Error(t, err)
}

func TestAbsentSurfacesAreSkipped(t *testing.T) {
	// No Kafka, no Redis, no SSE: every delivery degrades to a no-op.
	gw := gateway.New(nil, testTopics(), nil, nil, &logger.Logger{})

	assert.NoError(t, gw.LotteryPosted(models.LotterySummary{ID: "lot-1"}))
	assert.NoError(t, gw.TicketsSold("lot-1", 1))
	assert.NoError(t, gw.LotteryFinalized(models.Outcome{LotteryID: "lot-1"}))
	assert.NoError(t, gw.TicketsPurchasedPrivate("alice", "Sword", []string{"ABCD1234"}))
}
