package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// Response cache settings
	ResponseLRUSize  int
	ResponseTTLHours int

	// S3 archive tier
	EnableS3Cache bool
	ArchiveBucket string

	// DynamoDB catalog snapshot tier
	EnableDynamoCache bool
	SnapshotTable     string

	// Circuit breaker around the DWD client
	EnableBreaker bool
}

const (
	// Default values
	defaultResponseLRUSize  = 64
	defaultResponseTTLHours = 8
	defaultArchiveBucket    = "dwd-archive-cache"
	defaultSnapshotTable    = "dwd-catalog-snapshots"
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		ResponseLRUSize:   getEnvInt("CACHE_RESPONSE_LRU_SIZE", defaultResponseLRUSize),
		ResponseTTLHours:  getEnvInt("CACHE_RESPONSE_TTL_HOURS", defaultResponseTTLHours),
		EnableS3Cache:     getEnvBool("CACHE_ENABLE_S3", false),
		ArchiveBucket:     getEnvOrDefault("CACHE_ARCHIVE_BUCKET", defaultArchiveBucket),
		EnableDynamoCache: getEnvBool("CACHE_ENABLE_DYNAMO", false),
		SnapshotTable:     getEnvOrDefault("CACHE_SNAPSHOT_TABLE", defaultSnapshotTable),
		EnableBreaker:     getEnvBool("CACHE_ENABLE_BREAKER", true),
	}

	log.Debug().
		Int("ResponseLRUSize", config.ResponseLRUSize).
		Int("ResponseTTLHours", config.ResponseTTLHours).
		Bool("EnableS3Cache", config.EnableS3Cache).
		Str("ArchiveBucket", config.ArchiveBucket).
		Bool("EnableDynamoCache", config.EnableDynamoCache).
		Str("SnapshotTable", config.SnapshotTable).
		Bool("EnableBreaker", config.EnableBreaker).
		Msg("Cache configuration loaded")

	return config
}

func (c *CacheConfig) GetResponseTTL() time.Duration {
	return time.Duration(c.ResponseTTLHours) * time.Hour
}

// Helper functions to get environment variables with defaults
func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
