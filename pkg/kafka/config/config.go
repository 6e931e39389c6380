package kafka_config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"roomly/pkg/logger"
)

// Config holds the kafka-go client tuning shared by the booking event
// producer and the notification consumer.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // "none", "gzip", "snappy", "lz4", "zstd"
	ProducerAsync        bool

	ConsumerStartOffset       int64 // -1 = newest, -2 = oldest
	ConsumerMinBytes          int
	ConsumerMaxBytes          int
	ConsumerMaxWait           time.Duration
	ConsumerCommitInterval    time.Duration
	ConsumerHeartbeatInterval time.Duration
	ConsumerSessionTimeout    time.Duration
	ConsumerRebalanceTimeout  time.Duration
	ConsumerMaxRetries        int

	EnableMiddleware bool
}

// Load reads the client tuning from the environment. Brokers come from the
// service configuration so a single KAFKA_BROKERS drives every component.
func Load(brokers []string) (*Config, error) {
	env := envReader{}
	cfg := &Config{
		Brokers: brokers,

		ProducerMaxAttempts:  env.getInt(EnvProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout: env.getDuration(EnvProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerRequireAcks:  env.getInt(EnvProducerRequireAcks, DefaultProducerRequireAcks),
		ProducerCompression:  env.getStr(EnvProducerCompression, DefaultProducerCompression),
		ProducerAsync:        env.getBool(EnvProducerAsync, DefaultProducerAsync),

		ConsumerStartOffset:       int64(env.getInt(EnvConsumerStartOffset, DefaultConsumerStartOffset)),
		ConsumerMinBytes:          env.getInt(EnvConsumerMinBytes, DefaultConsumerMinBytes),
		ConsumerMaxBytes:          env.getInt(EnvConsumerMaxBytes, DefaultConsumerMaxBytes),
		ConsumerMaxWait:           env.getDuration(EnvConsumerMaxWait, DefaultConsumerMaxWait),
		ConsumerCommitInterval:    env.getDuration(EnvConsumerCommitInterval, DefaultConsumerCommitInterval),
		ConsumerHeartbeatInterval: env.getDuration(EnvConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
		ConsumerSessionTimeout:    env.getDuration(EnvConsumerSessionTimeout, DefaultConsumerSessionTimeout),
		ConsumerRebalanceTimeout:  env.getDuration(EnvConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
		ConsumerMaxRetries:        env.getInt(EnvConsumerMaxRetries, DefaultConsumerMaxRetries),

		EnableMiddleware: env.getBool(EnvEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	validCompressions = map[string]bool{"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true}
	validAcks         = map[int]bool{-1: true, 0: true, 1: true}
)

func (cfg *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(len(cfg.Brokers) > 0, "at least one kafka broker is required")
	for i, broker := range cfg.Brokers {
		check(broker != "", "broker %d cannot be empty", i)
	}

	check(cfg.ProducerMaxAttempts > 0, "%s must be positive, got %d", EnvProducerMaxAttempts, cfg.ProducerMaxAttempts)
	check(cfg.ProducerBatchTimeout > 0, "%s must be positive, got %s", EnvProducerBatchTimeout, cfg.ProducerBatchTimeout)
	check(validCompressions[cfg.ProducerCompression], "%s must be one of none, gzip, snappy, lz4, zstd, got %q", EnvProducerCompression, cfg.ProducerCompression)
	check(validAcks[cfg.ProducerRequireAcks], "%s must be -1, 0 or 1, got %d", EnvProducerRequireAcks, cfg.ProducerRequireAcks)

	check(cfg.ConsumerStartOffset >= -2, "%s must be -1 (newest), -2 (oldest) or >= 0, got %d", EnvConsumerStartOffset, cfg.ConsumerStartOffset)
	check(cfg.ConsumerMinBytes > 0, "%s must be positive, got %d", EnvConsumerMinBytes, cfg.ConsumerMinBytes)
	check(cfg.ConsumerMaxBytes >= cfg.ConsumerMinBytes, "%s must be at least %s, got %d", EnvConsumerMaxBytes, EnvConsumerMinBytes, cfg.ConsumerMaxBytes)
	check(cfg.ConsumerMaxWait > 0, "%s must be positive, got %s", EnvConsumerMaxWait, cfg.ConsumerMaxWait)
	check(cfg.ConsumerCommitInterval > 0, "%s must be positive, got %s", EnvConsumerCommitInterval, cfg.ConsumerCommitInterval)
	check(cfg.ConsumerHeartbeatInterval > 0, "%s must be positive, got %s", EnvConsumerHeartbeatInterval, cfg.ConsumerHeartbeatInterval)
	check(cfg.ConsumerSessionTimeout > cfg.ConsumerHeartbeatInterval, "%s must exceed %s", EnvConsumerSessionTimeout, EnvConsumerHeartbeatInterval)
	check(cfg.ConsumerRebalanceTimeout > 0, "%s must be positive, got %s", EnvConsumerRebalanceTimeout, cfg.ConsumerRebalanceTimeout)
	check(cfg.ConsumerMaxRetries >= 0, "%s cannot be negative, got %d", EnvConsumerMaxRetries, cfg.ConsumerMaxRetries)

	if len(errs) > 0 {
		return fmt.Errorf("kafka configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"producer_max_attempts", cfg.ProducerMaxAttempts,
		"producer_batch_timeout", cfg.ProducerBatchTimeout,
		"producer_require_acks", cfg.ProducerRequireAcks,
		"producer_compression", cfg.ProducerCompression,
		"producer_async", cfg.ProducerAsync,
		"consumer_start_offset", cfg.ConsumerStartOffset,
		"consumer_max_wait", cfg.ConsumerMaxWait,
		"consumer_commit_interval", cfg.ConsumerCommitInterval,
		"consumer_session_timeout", cfg.ConsumerSessionTimeout,
		"consumer_max_retries", cfg.ConsumerMaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

// envReader collects parse failures instead of silently falling back, so a
// typo in a tuning variable is reported at startup.
type envReader struct {
	errs []error
}

func (r *envReader) getStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *envReader) getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
