package core

import (
	"fmt"
	"time"
)

// Environment Variables
const (
	EnvRedisURL     = "REDIS_URL"                    // Redis connection URL for the remote cache
	EnvServiceName  = "OTEL_SERVICE_NAME"            // Service name reported on telemetry
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT" // Collector endpoint for the otlp exporter
)

// Cache Key Defaults
const (
	// DefaultKeyPrefix is the default prefix for every key written by the cache.
	// Format: <prefix>:<cache-name>:e:<key>
	// Example: cacheflight:orders:e:order-42
	DefaultKeyPrefix = "cacheflight"

	// DefaultPingTimeout bounds the connectivity check done at construction.
	DefaultPingTimeout = 5 * time.Second
)

// Redis Database Allocation
// Redis supports 16 databases (0-15) by default. cacheflight stores entries in
// RedisDBCache unless configured otherwise.
const (
	RedisDBDefault = 0

	// RedisDBCache is for cache entries
	RedisDBCache = 3

	// RedisDBTelemetry is for telemetry data
	RedisDBTelemetry = 6

	// RedisDBMax is the highest database index of a default Redis build.
	// Configure `databases` in redis.conf for more.
	RedisDBMax = 15
)

// GetRedisDBName returns a human-readable name for the Redis DB
func GetRedisDBName(db int) string {
	switch db {
	case RedisDBDefault:
		return "Default"
	case RedisDBCache:
		return "Cache"
	case RedisDBTelemetry:
		return "Telemetry"
	default:
		return fmt.Sprintf("DB %d", db)
	}
}
