package config

import (
	"context"
	"fmt"
	"time"

	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB holds the database connections
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	Redis    *redis.Client
}

// InitDB initializes and returns the database connections. Redis is optional.
func InitDB(cfg *Config) (*DB, error) {
	if cfg.PostgresConnStr == "" {
		return nil, fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable not set")
	}

	postgresDB, err := initPostgres(cfg.PostgresConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	mongoClient, err := initMongo(cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := &DB{Postgres: postgresDB, Mongo: mongoClient}

	if cfg.RedisAddr != "" {
		rdb, err := initRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, user cache disabled", zap.Error(err))
		} else {
			db.Redis = rdb
		}
	}

	return db, nil
}

func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	logger.Info("connected to PostgreSQL")
	return db, nil
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("connected to MongoDB")
	return client, nil
}

func initRedis(addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("connected to Redis", zap.String("addr", addr))
	return rdb, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			logger.Error("getting SQL DB from GORM", zap.Error(err))
		} else if err := sqlDB.Close(); err != nil {
			logger.Error("closing PostgreSQL connection", zap.Error(err))
		} else {
			logger.Info("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			logger.Error("closing MongoDB connection", zap.Error(err))
		} else {
			logger.Info("MongoDB connection closed")
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			logger.Error("closing Redis connection", zap.Error(err))
		}
	}
}
