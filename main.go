package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-lottery/internal/archive"
	"ms-lottery/internal/auth"
	"ms-lottery/internal/config"
	"ms-lottery/internal/gateway"
	"ms-lottery/internal/kafka"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/lottery"
	"ms-lottery/internal/lottery_api"
	"ms-lottery/internal/sse"
)

// openArchiveDB connects the terminal-record archive: Postgres when a DSN is
// configured, a local sqlite file otherwise.
func openArchiveDB(cfg *config.Config, log *logger.Logger) *bun.DB {
	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		var sqldb *sql.DB
		var err error
		maxRetries := 5

		for i := 0; i < maxRetries; i++ {
			log.Info("ARCHIVE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
			sqldb, err = sql.Open("postgres", dsn)
			if err == nil {
				err = sqldb.Ping()
			}
			if err == nil {
				break
			}
			log.Error("ARCHIVE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
			if i < maxRetries-1 {
				time.Sleep(2 * time.Second)
			}
		}
		if err != nil {
			log.Fatal("ARCHIVE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
		}

		log.Info("ARCHIVE", "✅ PostgreSQL connection successful")
		return bun.NewDB(sqldb, pgdialect.New())
	}

	sqldb, err := sql.Open("sqlite", cfg.Archive.SQLitePath)
	if err != nil {
		log.Fatal("ARCHIVE", fmt.Sprintf("Failed to open sqlite archive: %v", err))
	}
	log.Info("ARCHIVE", fmt.Sprintf("✅ Using sqlite archive at %s", cfg.Archive.SQLitePath))
	return bun.NewDB(sqldb, sqlitedialect.New())
}

func connectRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		log.Warn("REDIS", "Redis disabled, private ticket delivery is off")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis connection error, private ticket delivery is off: %v", err))
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Lottery Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	if err := os.MkdirAll("data", 0755); err != nil {
		log.Fatal("APP", fmt.Sprintf("Failed to create data directory: %v", err))
	}

	bunDB := openArchiveDB(cfg, log)
	defer bunDB.Close()

	archiveStore := archive.New(bunDB)
	if err := archiveStore.Migrate(context.Background()); err != nil {
		log.Fatal("ARCHIVE", fmt.Sprintf("Failed to migrate archive tables: %v", err))
	}

	redisClient := connectRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var producer gateway.KafkaPublisher
	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer kafkaProducer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.LotteryPosted,
			cfg.Kafka.Topics.TicketsSold,
			cfg.Kafka.Topics.LotteryFinalized,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		producer = kafkaProducer
	} else {
		log.Warn("KAFKA", "Kafka disabled, public lottery events go to SSE only")
	}

	emitter := sse.NewLotteryEventEmitter()
	gw := gateway.New(producer, cfg.Kafka.Topics, redisClient, emitter, log)

	store := lottery.NewStore(cfg.Snapshot.Path, log)
	store.Load()

	service := lottery.NewService(store, gw, archiveStore, log)

	// Recovery must finish before the periodic saver or any request touches
	// the store: expired lotteries are finalized here, live ones re-armed.
	log.Info("APP", "Running startup recovery")
	service.Recover()
	log.Info("APP", fmt.Sprintf("Recovery complete, %d countdowns armed", service.PendingTimers()))

	saveCtx, stopSaver := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Snapshot.SaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := store.Save(); err != nil {
					log.Error("STORE", fmt.Sprintf("Periodic save failed: %v", err))
				}
			case <-saveCtx.Done():
				return
			}
		}
	}()

	handler := lottery_api.NewHandler(service, archiveStore, log, cfg.Auth.AdminRole)
	sseHandler := lottery_api.NewSSEHandler(log, emitter)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/lottery/events", sseHandler.HandleLotteryEvents)
	r.Get("/api/lottery/stats", handler.Stats)
	r.Get("/api/lottery/tickets/{code}/qr", handler.TicketQR)
	log.Info("ROUTER", "Public lottery endpoints registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/lottery", func(r chi.Router) {
			r.Post("/", handler.CreateLottery)
			r.Get("/", handler.ListActive)
			r.Get("/mine", handler.MyTickets)
			r.Post("/{lotteryId}/tickets", handler.BuyTickets)
			r.Post("/{lotteryId}/finalize", handler.ForceFinalize)
		})
		log.Info("ROUTER", "Lottery routes registered under /api/lottery")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Lottery Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopSaver()
	service.Drain()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Lottery Service shutdown complete")
	}

	if err := store.Save(); err != nil {
		log.Error("STORE", fmt.Sprintf("Final snapshot save failed: %v", err))
	}
}
