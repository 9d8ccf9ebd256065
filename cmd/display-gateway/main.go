package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-lottery/internal/config"
	"ms-lottery/internal/kafka"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

// display-gateway is the read side of the lottery pipeline: it consumes the
// public lifecycle topics and renders them for storefront displays. The
// engine itself never formats display text, it only emits events.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Display Gateway initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	if !cfg.Kafka.Enabled {
		log.Fatal("KAFKA", "Display gateway requires Kafka, set KAFKA_ENABLED=true")
	}

	topics := []string{
		cfg.Kafka.Topics.LotteryPosted,
		cfg.Kafka.Topics.TicketsSold,
		cfg.Kafka.Topics.LotteryFinalized,
	}

	log.Info("KAFKA", fmt.Sprintf("Consuming topics %v from %v", topics, cfg.Kafka.Brokers))
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, "display-gateway")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer.Start(ctx, func(ev kafka.Event) {
		switch ev.Topic {
		case cfg.Kafka.Topics.LotteryPosted:
			renderPosted(log, ev)
		case cfg.Kafka.Topics.TicketsSold:
			renderSold(log, ev)
		case cfg.Kafka.Topics.LotteryFinalized:
			renderFinalized(log, ev)
		default:
			log.Warn("DISPLAY", fmt.Sprintf("Unknown topic %s", ev.Topic))
		}
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Display gateway running, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, closing consumers")
	cancel()
}

func renderPosted(log *logger.Logger, ev kafka.Event) {
	var summary models.LotterySummary
	if err := json.Unmarshal(ev.Value, &summary); err != nil {
		log.Error("DISPLAY", fmt.Sprintf("Bad posted payload for key %s: %v", ev.Key, err))
		return
	}
	capacity := "unlimited"
	if summary.MaxTickets > 0 {
		capacity = fmt.Sprintf("%d", summary.MaxTickets)
	}
	log.Info("DISPLAY", fmt.Sprintf("🎟️ New lottery %s: %q by %s, %s per ticket, %s tickets, ends %s",
		summary.ID, summary.Item, summary.SellerID, summary.TicketPrice, capacity, summary.EndTime.Format("2006-01-02 15:04:05")))
}

func renderSold(log *logger.Logger, ev kafka.Event) {
	var sold struct {
		LotteryID   string `json:"lottery_id"`
		TicketsSold int    `json:"tickets_sold"`
	}
	if err := json.Unmarshal(ev.Value, &sold); err != nil {
		log.Error("DISPLAY", fmt.Sprintf("Bad sold payload for key %s: %v", ev.Key, err))
		return
	}
	log.Info("DISPLAY", fmt.Sprintf("Lottery %s now at %d tickets sold", sold.LotteryID, sold.TicketsSold))
}

func renderFinalized(log *logger.Logger, ev kafka.Event) {
	var outcome models.Outcome
	if err := json.Unmarshal(ev.Value, &outcome); err != nil {
		log.Error("DISPLAY", fmt.Sprintf("Bad finalized payload for key %s: %v", ev.Key, err))
		return
	}
	if outcome.NoSale() {
		log.Info("DISPLAY", fmt.Sprintf("Lottery %s (%q) ended with no tickets sold", outcome.LotteryID, outcome.Item))
		return
	}
	log.Info("DISPLAY", fmt.Sprintf("🏆 Lottery %s (%q): winner %s with code %s out of %d tickets",
		outcome.LotteryID, outcome.Item, outcome.Winner.BuyerID, outcome.Winner.Code, outcome.TicketsSold))
}
