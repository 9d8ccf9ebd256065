package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Snapshot SnapshotConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Archive  ArchiveConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SnapshotConfig controls the durable store file and the periodic safety-net
// save that runs between committing mutations.
type SnapshotConfig struct {
	Path         string
	SaveInterval time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	LotteryPosted    string
	TicketsSold      string
	LotteryFinalized string
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

// ArchiveConfig selects where settled lotteries are retained. Postgres when
// a DSN is set, a local sqlite file otherwise.
type ArchiveConfig struct {
	PostgresDSN string
	SQLitePath  string
}

type AuthConfig struct {
	OIDCIssuer string
	AdminRole  string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8085"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Path:         getEnv("SNAPSHOT_PATH", "data/lotteries.json"),
			SaveInterval: time.Duration(getEnvInt("SNAPSHOT_SAVE_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				LotteryPosted:    getEnv("KAFKA_TOPIC_POSTED", "lottery.posted"),
				TicketsSold:      getEnv("KAFKA_TOPIC_SOLD", "lottery.tickets_sold"),
				LotteryFinalized: getEnv("KAFKA_TOPIC_FINALIZED", "lottery.finalized"),
			},
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Archive: ArchiveConfig{
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
			SQLitePath:  getEnv("ARCHIVE_SQLITE_PATH", "data/archive.db"),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			AdminRole:  getEnv("ADMIN_ROLE", "lottery-admin"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
