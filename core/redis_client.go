// Package core provides Redis connection management for cacheflight.
// This file opens and verifies the go-redis connection that backs a remote
// cache, applying database selection, timeouts and pool sizing from Config.
//
// Scope:
//   - RedisClient: owns a *redis.Client plus the identity of the connection
//   - Database selection using Redis DB numbers (0-15)
//   - Key namespacing for logical separation of caches
//   - Connection health checking and graceful shutdown
//
// Usage:
//
//	client, err := NewRedisClient(RedisClientOptions{
//	    RedisURL:  "redis://localhost:6379",
//	    DB:        RedisDBCache,
//	    Namespace: "cacheflight:orders",
//	})
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient owns the connection to a Redis server.
type RedisClient struct {
	client    *redis.Client
	dbID      int
	namespace string
	logger    ContextLogger
}

// RedisClientOptions configures the Redis client
type RedisClientOptions struct {
	RedisURL     string
	DB           int    // Redis DB number (0-15), negative keeps the URL's DB
	Namespace    string // Key namespace for organization
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	Logger       Logger // Optional logger
}

// RedisOptionsFromConfig maps the redis section of Config onto client options.
func RedisOptionsFromConfig(cfg RedisConfig, namespace string, logger Logger) RedisClientOptions {
	return RedisClientOptions{
		RedisURL:     cfg.URL,
		DB:           cfg.DB,
		Namespace:    namespace,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		Logger:       logger,
	}
}

// NewRedisClient creates a new Redis client and verifies connectivity.
func NewRedisClient(opts RedisClientOptions) (*RedisClient, error) {
	logger := WithContext(opts.Logger)
	logger.Debug("Initializing Redis client", map[string]interface{}{
		"redis_url": opts.RedisURL,
		"db":        opts.DB,
		"namespace": opts.Namespace,
	})

	if opts.RedisURL == "" {
		logger.Error("Failed to initialize Redis client", map[string]interface{}{
			"error":      "Redis URL is required",
			"error_type": "ErrInvalidConfiguration",
		})
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"redis_url":  opts.RedisURL,
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}

	if opts.DB >= 0 && opts.DB <= RedisDBMax {
		redisOpt.DB = opts.DB
		logger.Debug("Using Redis DB isolation", map[string]interface{}{
			"db":      opts.DB,
			"db_name": GetRedisDBName(opts.DB),
		})
	}
	if opts.DialTimeout > 0 {
		redisOpt.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpt.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpt.WriteTimeout = opts.WriteTimeout
	}
	if opts.PoolSize > 0 {
		redisOpt.PoolSize = opts.PoolSize
	}

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         redisOpt.DB,
			"db_name":    GetRedisDBName(redisOpt.DB),
			"namespace":  opts.Namespace,
		})
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %w", redisOpt.DB, ErrConnectionFailed)
	}

	rc := &RedisClient{
		client:    client,
		dbID:      redisOpt.DB,
		namespace: opts.Namespace,
		logger:    logger,
	}

	logger.Info("Redis client connected", map[string]interface{}{
		"db":        rc.dbID,
		"db_name":   GetRedisDBName(rc.dbID),
		"namespace": rc.namespace,
	})

	return rc, nil
}

// Client exposes the underlying go-redis client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	r.logger.Info("Closing Redis client connection", map[string]interface{}{
		"db":        r.dbID,
		"db_name":   GetRedisDBName(r.dbID),
		"namespace": r.namespace,
	})

	err := r.client.Close()
	if err != nil {
		r.logger.Error("Failed to close Redis client", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         r.dbID,
			"namespace":  r.namespace,
		})
	}
	return err
}

// GetDB returns the DB number being used
func (r *RedisClient) GetDB() int {
	return r.dbID
}

// GetNamespace returns the namespace being used
func (r *RedisClient) GetNamespace() string {
	return r.namespace
}

// FormatKey prefixes key with the namespace.
func (r *RedisClient) FormatKey(key string) string {
	if r.namespace != "" {
		return fmt.Sprintf("%s:%s", r.namespace, key)
	}
	return key
}

// HealthCheck verifies Redis connectivity
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	r.logger.DebugWithContext(ctx, "Performing Redis health check", map[string]interface{}{
		"db":        r.dbID,
		"namespace": r.namespace,
	})

	err := r.client.Ping(ctx).Err()
	if err != nil {
		r.logger.ErrorWithContext(ctx, "Redis health check failed", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         r.dbID,
			"db_name":    GetRedisDBName(r.dbID),
			"namespace":  r.namespace,
		})
		return fmt.Errorf("redis health check: %w: %v", ErrConnectionFailed, err)
	}
	r.logger.DebugWithContext(ctx, "Redis health check passed", map[string]interface{}{
		"db":        r.dbID,
		"namespace": r.namespace,
	})
	return nil
}
