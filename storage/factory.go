package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johnwmail/pastelite/internal/config"
)

// NewStore creates a storage backend based on the configuration
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (PasteStore, error) {
	switch cfg.StorageType {
	case config.StorageFilesystem:
		logger.Info("Using filesystem storage", "data_dir", cfg.DataDir)
		return NewFilesystemStore(cfg.DataDir)

	case config.StorageMongoDB:
		logger.Info("Using MongoDB storage",
			"database", cfg.MongoDBDatabase,
			"collection", cfg.MongoDBCollection)
		return NewMongoStore(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase, cfg.MongoDBCollection)

	case config.StorageDynamoDB:
		logger.Info("Using DynamoDB storage",
			"table", cfg.DynamoDBTable,
			"region", cfg.DynamoDBRegion,
			"endpoint", cfg.DynamoDBEndpoint)
		return NewDynamoStore(ctx, cfg.DynamoDBTable, cfg.DynamoDBRegion, cfg.DynamoDBEndpoint)

	case config.StorageRedis:
		logger.Info("Using Redis storage", "prefix", cfg.RedisPrefix)
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)

	case config.StoragePostgres:
		logger.Info("Using PostgreSQL storage")
		return NewPostgresStore(ctx, cfg.PostgresDSN)

	case config.StorageS3:
		logger.Info("Using S3 storage", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
