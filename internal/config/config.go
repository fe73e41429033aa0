package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage backends
const (
	StorageFilesystem = "filesystem"
	StorageMongoDB    = "mongodb"
	StorageDynamoDB   = "dynamodb"
	StorageRedis      = "redis"
	StoragePostgres   = "postgres"
	StorageS3         = "s3"
)

var validStorageTypes = []string{StorageFilesystem, StorageMongoDB, StorageDynamoDB, StorageRedis, StoragePostgres, StorageS3}

// Config holds all configuration options for the pastelite server
type Config struct {
	// Server configuration
	Port        int
	FrontendURL string
	CORSOrigins []string
	BufferSize  int64

	// Storage configuration
	StorageType    string
	DataDir        string
	ReaperInterval time.Duration

	// Database configuration
	MongoDBURI        string
	MongoDBDatabase   string
	MongoDBCollection string
	DynamoDBTable     string
	DynamoDBRegion    string
	DynamoDBEndpoint  string
	RedisURL          string
	RedisPrefix       string
	PostgresDSN       string
	S3Bucket          string
	S3Prefix          string

	// Operational configuration
	LogLevel string
	LogFile  string
	GinMode  string

	// Feature flags
	EnableMetrics bool
	TestMode      bool
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:              8080,
		BufferSize:        1024 * 1024, // 1MB
		StorageType:       StorageFilesystem,
		DataDir:           "./data",
		ReaperInterval:    time.Minute,
		MongoDBURI:        "mongodb://localhost:27017",
		MongoDBDatabase:   "pastelite",
		MongoDBCollection: "pastes",
		DynamoDBTable:     "pastelite-pastes",
		RedisURL:          "redis://localhost:6379/0",
		RedisPrefix:       "paste:",
		S3Prefix:          "pastes",
		LogLevel:          "info",
		GinMode:           "release",
		EnableMetrics:     true,
	}
}

// Load reads an optional .env file and then parses flags and environment
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFromFlags(args)
}

// LoadFromFlags parses command-line flags; each flag defaults to its
// PASTELITE_ environment variable.
func LoadFromFlags(args []string) (*Config, error) {
	cfg := DefaultConfig()
	fset := flag.NewFlagSet("pastelite", flag.ContinueOnError)

	fset.IntVar(&cfg.Port, "port", getEnvInt(cfg.Port, "PASTELITE_PORT", "PORT"), "HTTP port to listen on")
	fset.StringVar(&cfg.FrontendURL, "frontend-url", getEnvString(cfg.FrontendURL, "PASTELITE_FRONTEND_URL", "FRONTEND_URL"), "Base URL used in share links")
	corsOrigins := fset.String("cors-origins", getEnvString("", "PASTELITE_CORS_ORIGINS"), "Comma separated list of allowed CORS origins (empty allows all)")
	fset.Int64Var(&cfg.BufferSize, "buffer-size", getEnvInt64(cfg.BufferSize, "PASTELITE_BUFFER_SIZE"), "Maximum request body size in bytes")

	fset.StringVar(&cfg.StorageType, "storage-type", getEnvString(cfg.StorageType, "PASTELITE_STORAGE_TYPE"), "Storage backend: "+strings.Join(validStorageTypes, ", "))
	fset.StringVar(&cfg.DataDir, "data-dir", getEnvString(cfg.DataDir, "PASTELITE_DATA_DIR"), "Directory to store pastes (filesystem only)")
	fset.DurationVar(&cfg.ReaperInterval, "reaper-interval", getEnvDuration(cfg.ReaperInterval, "PASTELITE_REAPER_INTERVAL"), "How often expired pastes are swept")

	fset.StringVar(&cfg.MongoDBURI, "mongodb-uri", getEnvString(cfg.MongoDBURI, "PASTELITE_MONGODB_URI", "MONGODB_URI"), "MongoDB connection URI")
	fset.StringVar(&cfg.MongoDBDatabase, "mongodb-database", getEnvString(cfg.MongoDBDatabase, "PASTELITE_MONGODB_DATABASE"), "MongoDB database name")
	fset.StringVar(&cfg.MongoDBCollection, "mongodb-collection", getEnvString(cfg.MongoDBCollection, "PASTELITE_MONGODB_COLLECTION"), "MongoDB collection name")
	fset.StringVar(&cfg.DynamoDBTable, "dynamodb-table", getEnvString(cfg.DynamoDBTable, "PASTELITE_DYNAMODB_TABLE"), "DynamoDB table name")
	fset.StringVar(&cfg.DynamoDBRegion, "dynamodb-region", getEnvString(cfg.DynamoDBRegion, "PASTELITE_DYNAMODB_REGION"), "DynamoDB region (defaults to the AWS SDK chain)")
	fset.StringVar(&cfg.DynamoDBEndpoint, "dynamodb-endpoint", getEnvString(cfg.DynamoDBEndpoint, "PASTELITE_DYNAMODB_ENDPOINT"), "DynamoDB endpoint override (e.g. DynamoDB Local)")
	fset.StringVar(&cfg.RedisURL, "redis-url", getEnvString(cfg.RedisURL, "PASTELITE_REDIS_URL", "REDIS_URL"), "Redis connection URL")
	fset.StringVar(&cfg.RedisPrefix, "redis-prefix", getEnvString(cfg.RedisPrefix, "PASTELITE_REDIS_PREFIX"), "Redis key prefix")
	fset.StringVar(&cfg.PostgresDSN, "postgres-dsn", getEnvString(cfg.PostgresDSN, "PASTELITE_POSTGRES_DSN", "DATABASE_URL"), "PostgreSQL connection string")
	fset.StringVar(&cfg.S3Bucket, "s3-bucket", getEnvString(cfg.S3Bucket, "PASTELITE_S3_BUCKET"), "S3 bucket name")
	fset.StringVar(&cfg.S3Prefix, "s3-prefix", getEnvString(cfg.S3Prefix, "PASTELITE_S3_PREFIX"), "S3 key prefix")

	fset.StringVar(&cfg.LogLevel, "log-level", getEnvString(cfg.LogLevel, "PASTELITE_LOG_LEVEL"), "Log level (debug, info, warn, error)")
	fset.StringVar(&cfg.LogFile, "log-file", getEnvString(cfg.LogFile, "PASTELITE_LOG_FILE"), "Path to log file (JSON format)")
	fset.StringVar(&cfg.GinMode, "gin-mode", getEnvString(cfg.GinMode, "PASTELITE_GIN_MODE", "GIN_MODE"), "Gin mode (debug, release, test)")

	fset.BoolVar(&cfg.EnableMetrics, "enable-metrics", getEnvBool(cfg.EnableMetrics, "PASTELITE_ENABLE_METRICS"), "Expose Prometheus metrics on /metrics")
	fset.BoolVar(&cfg.TestMode, "test-mode", getEnvBool(cfg.TestMode, "PASTELITE_TEST_MODE", "TEST_MODE"), "Honour the X-Test-Now-Ms header for deterministic time")

	fset.Usage = func() {
		out := fset.Output()
		fmt.Fprintf(out, "pastelite - minimal text sharing service\n\n")
		fmt.Fprintf(out, "Usage: pastelite [options]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fset.PrintDefaults()
		fmt.Fprintf(out, "\nEnvironment Variables:\n")
		fmt.Fprintf(out, "  All flags can be set via environment variables with PASTELITE_ prefix\n")
		fmt.Fprintf(out, "  Example: PASTELITE_STORAGE_TYPE=redis\n")
	}

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = splitList(*corsOrigins)

	return cfg, cfg.Validate()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Port)
	}

	if c.BufferSize < 1024 || c.BufferSize > 100*1024*1024 {
		return fmt.Errorf("buffer size must be between 1KB and 100MB: %d", c.BufferSize)
	}

	if c.ReaperInterval <= 0 {
		return fmt.Errorf("reaper interval must be positive: %s", c.ReaperInterval)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %s", c.GinMode)
	}

	switch c.StorageType {
	case StorageFilesystem:
		if c.DataDir == "" {
			return fmt.Errorf("data dir cannot be empty for filesystem storage")
		}
	case StorageMongoDB:
		if c.MongoDBURI == "" {
			return fmt.Errorf("mongodb uri cannot be empty")
		}
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("dynamodb table cannot be empty")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis url cannot be empty")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn cannot be empty")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (valid: %s)", c.StorageType, strings.Join(validStorageTypes, ", "))
	}

	return nil
}

// Helper functions for environment variable parsing. Each takes the
// default first and returns the value of the first key that is set.
func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value, true
		}
	}
	return "", false
}

func getEnvString(defaultValue string, keys ...string) string {
	if value, ok := lookupEnv(keys...); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(defaultValue int, keys ...string) int {
	if value, ok := lookupEnv(keys...); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(defaultValue int64, keys ...string) int64 {
	if value, ok := lookupEnv(keys...); ok {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(defaultValue bool, keys ...string) bool {
	if value, ok := lookupEnv(keys...); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(defaultValue time.Duration, keys ...string) time.Duration {
	if value, ok := lookupEnv(keys...); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
