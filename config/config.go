package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"clover-api"`
	Port                          int    `env:"PORT" env-default:"3004"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`

	// PostgreSQL
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Auth
	BatchAuthToken string `env:"BATCH_AUTH_TOKEN" env-default:""`

	// Kafka producer
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"grant-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol   string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`

	// Embedding backend
	EmbeddingAPIURL         string `env:"EMBEDDING_API_URL" env-default:""`
	EmbeddingAPIKey         string `env:"EMBEDDING_API_KEY" env-default:""`
	EmbeddingModel          string `env:"EMBEDDING_MODEL" env-default:"nomic-embed-text"`
	EmbeddingTimeoutSeconds int    `env:"EMBEDDING_TIMEOUT_SECONDS" env-default:"30"`

	// Engine tunables
	MatchBatchSize     int     `env:"MATCH_BATCH_SIZE" env-default:"50"`
	BatchPauseMs       int     `env:"BATCH_PAUSE_MS" env-default:"1000"`
	AutoMergeThreshold float64 `env:"AUTO_MERGE_THRESHOLD" env-default:"0.85"`
	MinMergeConfidence float64 `env:"MIN_MERGE_CONFIDENCE" env-default:"0.5"`
	OrgSimilarityFloor float64 `env:"ORG_SIMILARITY_FLOOR" env-default:"0.6"`
	GroupNameWeight    float64 `env:"GROUP_NAME_WEIGHT" env-default:"0.6"`
	GroupOrgWeight     float64 `env:"GROUP_ORG_WEIGHT" env-default:"0.25"`
	GroupMetaWeight    float64 `env:"GROUP_META_WEIGHT" env-default:"0.15"`
	ScoreCategoryPts   int     `env:"SCORE_CATEGORY_POINTS" env-default:"30"`
	ScoreRegionPts     int     `env:"SCORE_REGION_POINTS" env-default:"20"`
	ScoreAmountPts     int     `env:"SCORE_AMOUNT_POINTS" env-default:"25"`
	ScoreSemanticPts   int     `env:"SCORE_SEMANTIC_POINTS" env-default:"25"`
}

// Load reads the environment, after loading a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppName:                       getString("APP_NAME", "clover-api"),
		Port:                          getInt("PORT", 3004),
		LogLevel:                      getString("LOG_LEVEL", "info"),
		PrettyLogs:                    getBool("PRETTY_LOGS", false),
		HttpServerWriteTimeoutSeconds: getInt("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 10),
		HttpServerReadTimeoutSeconds:  getInt("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10),
		HttpServerIdleTimeoutSeconds:  getInt("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 10),

		DatabaseDriver:              getString("DB_DRIVER", "postgres"),
		DatabaseHost:                getString("DB_HOST", ""),
		DatabasePort:                getString("DB_PORT", "5432"),
		DatabaseUserName:            getString("DB_USER_NAME", ""),
		DatabasePassword:            getString("DB_PASSWORD", ""),
		DatabaseName:                getString("DB_NAME", "clover"),
		DatabaseSSLMode:             getString("DB_SSL_MODE", "disable"),
		DatabaseMaxOpenConns:        getInt("DB_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:        getInt("DB_MAX_IDLE_CONNS", 10),
		DatabaseConnMaxLifetime:     getDuration("DB_CONN_MAX_LIFETIME", 10*time.Second),
		DatabaseMigrationFolderPath: getString("DB_MIGRATION_FOLDER_PATH", "db/pg"),
		DatabaseMigrationVersion:    getInt("DB_MIGRATION_VERSION", 0),

		BatchAuthToken: getString("BATCH_AUTH_TOKEN", ""),

		KafkaEnabled:      getBool("KAFKA_ENABLED", false),
		KafkaBrokers:      getStrings("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaOutputTopic:  getString("KAFKA_OUTPUT_TOPIC", "grant-events"),
		KafkaBatchSize:    getInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout: getInt("KAFKA_BATCH_TIMEOUT_MS", 100),
		KafkaRequiredAcks: getInt("KAFKA_REQUIRED_ACKS", 1),
		KafkaCompression:  getString("KAFKA_COMPRESSION", "snappy"),

		TracingEnabled: getBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getString("OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:   getString("OTLP_PROTOCOL", "grpc"),
		OTLPInsecure:   getBool("OTLP_INSECURE", true),

		EmbeddingAPIURL:         getString("EMBEDDING_API_URL", ""),
		EmbeddingAPIKey:         getString("EMBEDDING_API_KEY", ""),
		EmbeddingModel:          getString("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingTimeoutSeconds: getInt("EMBEDDING_TIMEOUT_SECONDS", 30),

		MatchBatchSize:     getInt("MATCH_BATCH_SIZE", 50),
		BatchPauseMs:       getInt("BATCH_PAUSE_MS", 1000),
		AutoMergeThreshold: getFloat("AUTO_MERGE_THRESHOLD", 0.85),
		MinMergeConfidence: getFloat("MIN_MERGE_CONFIDENCE", 0.5),
		OrgSimilarityFloor: getFloat("ORG_SIMILARITY_FLOOR", 0.6),
		GroupNameWeight:    getFloat("GROUP_NAME_WEIGHT", 0.6),
		GroupOrgWeight:     getFloat("GROUP_ORG_WEIGHT", 0.25),
		GroupMetaWeight:    getFloat("GROUP_META_WEIGHT", 0.15),
		ScoreCategoryPts:   getInt("SCORE_CATEGORY_POINTS", 30),
		ScoreRegionPts:     getInt("SCORE_REGION_POINTS", 20),
		ScoreAmountPts:     getInt("SCORE_AMOUNT_POINTS", 25),
		ScoreSemanticPts:   getInt("SCORE_SEMANTIC_POINTS", 25),
	}
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getStrings(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
