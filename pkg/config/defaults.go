package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "roomly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultTimeZone           = "UTC"
	DefaultBookingWindowDays  = 30
	DefaultMaxBookingDuration = 24 * time.Hour

	DefaultSlotLockTTL        = 10 * time.Second
	DefaultSlotLockRetries    = 5
	DefaultSlotLockRetryDelay = 50 * time.Millisecond

	DefaultJWTTTL = 60 * time.Minute

	DefaultKafkaBookingTopic = "booking-events"
	DefaultKafkaNotifyGroup  = "roomly-notifier"

	DefaultPhoneRegion = "RU"

	DefaultLogLevel = "info"

	DefaultPaginationLimit    = 100
	DefaultPaginationFallback = 20
)
