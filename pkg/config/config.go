package config

import (
	"fmt"
	"os"
	"regexp"
	"roomly/pkg/client"
	"roomly/pkg/logger"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	TimeZone           string
	Location           *time.Location
	BookingWindowDays  int
	MaxBookingDuration time.Duration

	SlotLockTTL        time.Duration
	SlotLockRetries    int
	SlotLockRetryDelay time.Duration

	JWTSecret      string
	JWTTTL         time.Duration
	CookieHashKey  string
	CookieBlockKey string

	KafkaBrokers      []string
	KafkaBookingTopic string
	KafkaNotifyGroup  string

	PublicBaseURL string
	// PhoneRegions are tried in order when a phone number has no country prefix.
	PhoneRegions []string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		TimeZone:           getEnvStr(EnvTimeZone, DefaultTimeZone),
		BookingWindowDays:  getEnvNum(EnvBookingWindowDays, DefaultBookingWindowDays),
		MaxBookingDuration: getEnvDuration(EnvMaxBookingDuration, DefaultMaxBookingDuration),

		SlotLockTTL:        getEnvDuration(EnvSlotLockTTL, DefaultSlotLockTTL),
		SlotLockRetries:    getEnvNum(EnvSlotLockRetries, DefaultSlotLockRetries),
		SlotLockRetryDelay: getEnvDuration(EnvSlotLockRetryDelay, DefaultSlotLockRetryDelay),

		JWTSecret:      getEnvStr(EnvJWTSecret, ""),
		JWTTTL:         getEnvDuration(EnvJWTTTL, DefaultJWTTTL),
		CookieHashKey:  getEnvStr(EnvCookieHashKey, ""),
		CookieBlockKey: getEnvStr(EnvCookieBlockKey, ""),

		KafkaBrokers:      getEnvList(EnvKafkaBrokers),
		KafkaBookingTopic: getEnvStr(EnvKafkaBookingTopic, DefaultKafkaBookingTopic),
		KafkaNotifyGroup:  getEnvStr(EnvKafkaNotifyGroup, DefaultKafkaNotifyGroup),

		PublicBaseURL: strings.TrimRight(getEnvStr(EnvPublicBaseURL, ""), "/"),
		PhoneRegions:  getEnvList(EnvPhoneRegions),

		AdminUsername: getEnvStr(EnvAdminUsername, ""),
		AdminEmail:    getEnvStr(EnvAdminEmail, ""),
		AdminPassword: getEnvStr(EnvAdminPassword, ""),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if len(cfg.PhoneRegions) == 0 {
		cfg.PhoneRegions = []string{DefaultPhoneRegion}
	}

	if loc, err := time.LoadLocation(cfg.TimeZone); err == nil {
		cfg.Location = loc
	}

	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// KafkaEnabled reports whether booking events should be published.
func (cfg *Config) KafkaEnabled() bool {
	return len(cfg.KafkaBrokers) > 0
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("TimeZone must be a valid IANA zone name, got: %s", cfg.TimeZone))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.BookingWindowDays < 0 {
		errors = append(errors, fmt.Sprintf("BookingWindowDays cannot be negative, got: %d", cfg.BookingWindowDays))
	}
	if cfg.MaxBookingDuration <= 0 || cfg.MaxBookingDuration > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("MaxBookingDuration must be in (0, 24h], got: %s", cfg.MaxBookingDuration))
	}

	if cfg.SlotLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("SlotLockTTL must be positive, got: %s", cfg.SlotLockTTL))
	}
	if cfg.SlotLockRetries < 0 {
		errors = append(errors, fmt.Sprintf("SlotLockRetries cannot be negative, got: %d", cfg.SlotLockRetries))
	}
	if cfg.SlotLockRetryDelay <= 0 {
		errors = append(errors, fmt.Sprintf("SlotLockRetryDelay must be positive, got: %s", cfg.SlotLockRetryDelay))
	}

	if len(cfg.JWTSecret) < 32 {
		errors = append(errors, "JWTSecret must be at least 32 characters")
	}
	if cfg.JWTTTL <= 0 {
		errors = append(errors, fmt.Sprintf("JWTTTL must be positive, got: %s", cfg.JWTTTL))
	}
	if n := len(cfg.CookieHashKey); n != 32 && n != 64 {
		errors = append(errors, fmt.Sprintf("CookieHashKey must be 32 or 64 bytes, got: %d", n))
	}
	if n := len(cfg.CookieBlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		errors = append(errors, fmt.Sprintf("CookieBlockKey must be empty or 16, 24 or 32 bytes, got: %d", n))
	}

	if cfg.KafkaEnabled() && cfg.KafkaBookingTopic == "" {
		errors = append(errors, "KafkaBookingTopic cannot be empty when KafkaBrokers is set")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"time_zone", cfg.TimeZone,
		"booking_window_days", cfg.BookingWindowDays,
		"max_booking_duration", cfg.MaxBookingDuration,
		"slot_lock_ttl", cfg.SlotLockTTL,
		"slot_lock_retries", cfg.SlotLockRetries,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_ttl", cfg.JWTTTL,
		"cookie_encryption", cfg.CookieBlockKey != "",
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_booking_topic", cfg.KafkaBookingTopic,
		"public_base_url", cfg.PublicBaseURL,
		"phone_regions", cfg.PhoneRegions,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPaginationFallback
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
