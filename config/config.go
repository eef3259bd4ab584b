package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Environment                   string   `env:"APP_ENV" env-default:"development"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (reference ledger + match audit)
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  int           `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"migrations"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (consumer idempotency + index rebuild lock)
	RedisHost           string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort           int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword       string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB             int           `env:"REDIS_DB" env-default:"0"`
	RedisIdempotencyTTL time.Duration `env:"REDIS_IDEMPOTENCY_TTL" env-default:"24h"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Kafka Consumer (extraction pipeline intake)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaClaimsTopic     string   `env:"KAFKA_CLAIMS_TOPIC" env-default:"extracted-claims"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer settings
	KafkaEventsTopic  string `env:"KAFKA_EVENTS_TOPIC" env-default:"match-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Matching
	MatchWorkerCount     int           `env:"MATCH_WORKER_COUNT" env-default:"8"`
	BatchReportRetention time.Duration `env:"BATCH_REPORT_RETENTION" env-default:"1h"`

	// Reference ledger snapshots
	ReferenceS3Bucket     string `env:"REFERENCE_S3_BUCKET" env-default:""`
	ReferenceS3Region     string `env:"REFERENCE_S3_REGION" env-default:"us-east-1"`
	ReferenceOrdersKey    string `env:"REFERENCE_ORDERS_KEY" env-default:"data/filemaker/orders.parquet"`
	ReferenceLineItemsKey string `env:"REFERENCE_LINE_ITEMS_KEY" env-default:"data/filemaker/line_items.parquet"`

	// Telemetry
	TracingEnabled     bool    `env:"TRACING_ENABLED" env-default:"false"`
	TracingProtocol    string  `env:"TRACING_PROTOCOL" env-default:"grpc"`
	TracingEndpoint    string  `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingInsecure    bool    `env:"TRACING_INSECURE" env-default:"true"`
	TracingSampleRatio float64 `env:"TRACING_SAMPLE_RATIO" env-default:"1.0"`
}
