package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTimeZone           = "TIME_ZONE"
	EnvBookingWindowDays  = "BOOKING_WINDOW_DAYS"
	EnvMaxBookingDuration = "MAX_BOOKING_DURATION"

	EnvSlotLockTTL        = "SLOT_LOCK_TTL"
	EnvSlotLockRetries    = "SLOT_LOCK_RETRIES"
	EnvSlotLockRetryDelay = "SLOT_LOCK_RETRY_DELAY"

	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTTTL         = "JWT_TTL"
	EnvCookieHashKey  = "COOKIE_HASH_KEY"
	EnvCookieBlockKey = "COOKIE_BLOCK_KEY"

	EnvKafkaBrokers      = "KAFKA_BROKERS"
	EnvKafkaBookingTopic = "KAFKA_BOOKING_TOPIC"
	EnvKafkaNotifyGroup  = "KAFKA_NOTIFY_GROUP"

	EnvPublicBaseURL = "PUBLIC_BASE_URL"
	EnvPhoneRegions  = "PHONE_REGIONS"

	EnvAdminUsername = "ADMIN_USERNAME"
	EnvAdminEmail    = "ADMIN_EMAIL"
	EnvAdminPassword = "ADMIN_PASSWORD"
)
