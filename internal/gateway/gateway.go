package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ms-lottery/internal/config"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
	"ms-lottery/internal/sse"
)

// KafkaPublisher is the producer boundary, mockable in tests.
type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// Gateway fans lottery events out to the notification surfaces: Kafka for
// the public display feed, SSE for connected browsers, Redis pub/sub for
// private per-buyer ticket code delivery. Any surface may be absent; a nil
// field is skipped.
type Gateway struct {
	Kafka  KafkaPublisher
	Topics config.TopicConfig
	Redis  *redis.Client
	Events *sse.LotteryEventEmitter
	Logger *logger.Logger
}

func New(kafka KafkaPublisher, topics config.TopicConfig, redisClient *redis.Client, events *sse.LotteryEventEmitter, log *logger.Logger) *Gateway {
	return &Gateway{
		Kafka:  kafka,
		Topics: topics,
		Redis:  redisClient,
		Events: events,
		Logger: log,
	}
}

// soldEvent is the payload of the tickets_sold topic.
type soldEvent struct {
	LotteryID   string `json:"lottery_id"`
	TicketsSold int    `json:"tickets_sold"`
}

// privateDelivery is the payload pushed to a buyer's dm channel.
type privateDelivery struct {
	Item  string   `json:"item"`
	Codes []string `json:"codes"`
}

// LotteryPosted publishes the initial public snapshot of a new lottery.
func (g *Gateway) LotteryPosted(summary models.LotterySummary) error {
	if g.Events != nil {
		g.Events.Emit(sse.LotteryUpdate{Kind: "posted", Lottery: &summary})
	}
	if g.Kafka == nil {
		return nil
	}
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal posted event: %w", err)
	}
	if err := g.Kafka.Publish(g.Topics.LotteryPosted, summary.ID, value); err != nil {
		return fmt.Errorf("publish posted event: %w", err)
	}
	g.Logger.LogKafka("PUBLISH", g.Topics.LotteryPosted, fmt.Sprintf("lottery %s posted", summary.ID))
	return nil
}

// TicketsSold announces an updated sold count so displays re-render.
func (g *Gateway) TicketsSold(lotteryID string, soldCount int) error {
	if g.Events != nil {
		g.Events.Emit(sse.LotteryUpdate{Kind: "sold", Lottery: &models.LotterySummary{ID: lotteryID, TicketsSold: soldCount}})
	}
	if g.Kafka == nil {
		return nil
	}
	value, err := json.Marshal(soldEvent{LotteryID: lotteryID, TicketsSold: soldCount})
	if err != nil {
		return fmt.Errorf("marshal sold event: %w", err)
	}
	if err := g.Kafka.Publish(g.Topics.TicketsSold, lotteryID, value); err != nil {
		return fmt.Errorf("publish sold event: %w", err)
	}
	return nil
}

// LotteryFinalized announces the outcome of a settled lottery.
func (g *Gateway) LotteryFinalized(outcome models.Outcome) error {
	if g.Events != nil {
		g.Events.Emit(sse.LotteryUpdate{Kind: "finalized", Outcome: &outcome})
	}
	if g.Kafka == nil {
		return nil
	}
	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := g.Kafka.Publish(g.Topics.LotteryFinalized, outcome.LotteryID, value); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	g.Logger.LogKafka("PUBLISH", g.Topics.LotteryFinalized, fmt.Sprintf("lottery %s finalized", outcome.LotteryID))
	return nil
}

// TicketsPurchasedPrivate delivers purchased codes to the buyer's private
// channel. Failures here are reported back to the caller as a warning and
// never undo the purchase.
func (g *Gateway) TicketsPurchasedPrivate(buyerID, item string, codes []string) error {
	if g.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(privateDelivery{Item: item, Codes: codes})
	if err != nil {
		return fmt.Errorf("marshal private delivery: %w", err)
	}
	channel := "dm:" + buyerID
	if err := g.Redis.Publish(context.Background(), channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
