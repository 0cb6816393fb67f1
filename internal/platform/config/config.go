package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ecoledger/pkg/domain"
	pstrings "ecoledger/pkg/platform/strings"
)

// Config is the full process configuration. Each subcommand reads the
// sections it needs.
type Config struct {
	Server           Server
	Logging          Logging
	Postgres         Postgres
	Redis            RedisConfig
	Kafka            Kafka
	Rules            Rules
	Seal             Seal
	AttachmentPolicy AttachmentPolicy
	ProducerApproval ProducerApproval
	Storage          Storage
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type Logging struct {
	Level  string
	Format string // "json" or "text"
}

type Postgres struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the optional Redis idempotency store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// UnresolvedTTL expires in-progress and failed idempotency records.
	// Completed records are kept forever.
	UnresolvedTTL time.Duration
}

// Kafka configures the event relay.
type Kafka struct {
	Enabled           bool
	Brokers           []string
	ClientID          string
	MaxRetries        int
	RetryBackoff      time.Duration
	CreateTopics      bool
	Partitions        int32
	ReplicationFactor int16
}

// Seal holds certification thresholds and the seal validity window.
type Seal struct {
	BronzeThreshold int
	SilverThreshold int
	GoldThreshold   int
	Validity        time.Duration
	// SweepInterval is how often expired seals are recalculated. Zero disables the sweep.
	SweepInterval time.Duration
	SweepBatch    int
}

// AttachmentPolicy bounds what a movement may carry.
type AttachmentPolicy struct {
	MaxAttachments int
	AllowedTypes   []string
}

// ProducerApproval configures the client that asks the user service whether
// a producer may register movements.
type ProducerApproval struct {
	Enabled    bool
	BaseURL    string
	Timeout    time.Duration
	ClientID   string
	SigningKey string
	TokenTTL   time.Duration
}

// Storage picks store backends. "memory" keeps a subsystem self-contained.
type Storage struct {
	Backend            string // "postgres" or "memory"
	IdempotencyBackend string // "postgres", "redis" or "memory"
}

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Default values applied when the environment is silent.
const (
	DefaultRuleVersion     = "1.0.0"
	DefaultBronze          = 70
	DefaultSilver          = 80
	DefaultGold            = 90
	DefaultSealValidity    = 180 * 24 * time.Hour
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = time.Second
	DefaultMaxAttachments  = 10
	DefaultShutdownTimeout = 10 * time.Second
)

// Defaults returns a configuration usable for local development and tests.
func Defaults() Config {
	return Config{
		Server:  Server{Addr: ":8080", ShutdownTimeout: DefaultShutdownTimeout},
		Logging: Logging{Level: "info", Format: "json"},
		Postgres: Postgres{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:      10,
			MinIdleConns:  2,
			DialTimeout:   5 * time.Second,
			ReadTimeout:   3 * time.Second,
			WriteTimeout:  3 * time.Second,
			UnresolvedTTL: 24 * time.Hour,
		},
		Kafka: Kafka{
			Brokers:           []string{"localhost:9092"},
			ClientID:          "ecoledger",
			MaxRetries:        DefaultMaxRetries,
			RetryBackoff:      DefaultRetryBackoff,
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Rules: DefaultRules(),
		Seal: Seal{
			BronzeThreshold: DefaultBronze,
			SilverThreshold: DefaultSilver,
			GoldThreshold:   DefaultGold,
			Validity:        DefaultSealValidity,
			SweepInterval:   time.Hour,
			SweepBatch:      100,
		},
		AttachmentPolicy: AttachmentPolicy{
			MaxAttachments: DefaultMaxAttachments,
			AllowedTypes:   []string{"application/pdf", "image/jpeg", "image/png"},
		},
		ProducerApproval: ProducerApproval{
			Timeout:  5 * time.Second,
			ClientID: "movement-service",
			TokenTTL: 5 * time.Minute,
		},
		Storage: Storage{Backend: BackendMemory, IdempotencyBackend: BackendMemory},
	}
}

// DefaultRules is the rule set used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		Version: DefaultRuleVersion,
		Quantity: QuantityRule{
			Min: domain.QuantityFromInt(0),
			Max: domain.QuantityFromInt(10000),
		},
	}
}

// FromEnv builds the configuration from environment variables, loading a
// .env file first when one is present. ECOLEDGER_RULES_FILE points at an
// optional YAML rule set that replaces the rule defaults.
func FromEnv() (Config, error) {
	if err := loadDotEnv(os.Getenv("ECOLEDGER_ENV_FILE")); err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	var errs []error

	cfg.Server.Addr = getString("ECOLEDGER_ADDR", cfg.Server.Addr)
	cfg.Server.ShutdownTimeout = getDuration("ECOLEDGER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout, &errs)
	cfg.Logging.Level = getString("ECOLEDGER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getString("ECOLEDGER_LOG_FORMAT", cfg.Logging.Format)

	cfg.Postgres.URL = getString("DATABASE_URL", "")
	cfg.Postgres.MaxOpenConns = getInt("DATABASE_MAX_OPEN_CONNS", cfg.Postgres.MaxOpenConns, &errs)
	cfg.Postgres.MaxIdleConns = getInt("DATABASE_MAX_IDLE_CONNS", cfg.Postgres.MaxIdleConns, &errs)

	cfg.Redis.URL = getString("REDIS_URL", "")
	cfg.Redis.PoolSize = getInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize, &errs)
	cfg.Redis.UnresolvedTTL = getDuration("REDIS_IDEMPOTENCY_UNRESOLVED_TTL", cfg.Redis.UnresolvedTTL, &errs)

	cfg.Kafka.Enabled = getBool("KAFKA_ENABLED", cfg.Kafka.Enabled, &errs)
	cfg.Kafka.Brokers = getList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.ClientID = getString("KAFKA_CLIENT_ID", cfg.Kafka.ClientID)
	cfg.Kafka.MaxRetries = getInt("KAFKA_MAX_RETRIES", cfg.Kafka.MaxRetries, &errs)
	cfg.Kafka.RetryBackoff = getDuration("KAFKA_RETRY_BACKOFF", cfg.Kafka.RetryBackoff, &errs)
	cfg.Kafka.CreateTopics = getBool("KAFKA_CREATE_TOPICS", cfg.Kafka.CreateTopics, &errs)

	cfg.Seal.BronzeThreshold = getInt("SEAL_THRESHOLD_BRONZE", cfg.Seal.BronzeThreshold, &errs)
	cfg.Seal.SilverThreshold = getInt("SEAL_THRESHOLD_SILVER", cfg.Seal.SilverThreshold, &errs)
	cfg.Seal.GoldThreshold = getInt("SEAL_THRESHOLD_GOLD", cfg.Seal.GoldThreshold, &errs)
	if days := getInt("SEAL_VALIDITY_DAYS", 0, &errs); days > 0 {
		cfg.Seal.Validity = time.Duration(days) * 24 * time.Hour
	}
	cfg.Seal.SweepInterval = getDuration("SEAL_EXPIRY_SWEEP_INTERVAL", cfg.Seal.SweepInterval, &errs)
	cfg.Seal.SweepBatch = getInt("SEAL_EXPIRY_SWEEP_BATCH", cfg.Seal.SweepBatch, &errs)

	cfg.AttachmentPolicy.MaxAttachments = getInt("ATTACHMENTS_MAX", cfg.AttachmentPolicy.MaxAttachments, &errs)
	cfg.AttachmentPolicy.AllowedTypes = getList("ATTACHMENTS_ALLOWED_TYPES", cfg.AttachmentPolicy.AllowedTypes)

	cfg.ProducerApproval.Enabled = getBool("PRODUCER_APPROVAL_ENABLED", cfg.ProducerApproval.Enabled, &errs)
	cfg.ProducerApproval.BaseURL = getString("PRODUCER_APPROVAL_URL", "")
	cfg.ProducerApproval.Timeout = getDuration("PRODUCER_APPROVAL_TIMEOUT", cfg.ProducerApproval.Timeout, &errs)
	cfg.ProducerApproval.ClientID = getString("PRODUCER_APPROVAL_CLIENT_ID", cfg.ProducerApproval.ClientID)
	cfg.ProducerApproval.SigningKey = getString("PRODUCER_APPROVAL_SIGNING_KEY", "")
	cfg.ProducerApproval.TokenTTL = getDuration("PRODUCER_APPROVAL_TOKEN_TTL", cfg.ProducerApproval.TokenTTL, &errs)

	cfg.Storage.Backend = getString("ECOLEDGER_STORAGE", defaultBackend(cfg.Postgres.URL))
	cfg.Storage.IdempotencyBackend = getString("ECOLEDGER_IDEMPOTENCY_STORE", cfg.Storage.Backend)

	if path := os.Getenv("ECOLEDGER_RULES_FILE"); path != "" {
		rules, err := LoadRules(path)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.Rules = rules
		}
	} else if v := os.Getenv("RULES_VERSION"); v != "" {
		cfg.Rules.Version = v
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, err)
	}
	s := c.Seal
	if s.BronzeThreshold > s.SilverThreshold || s.SilverThreshold > s.GoldThreshold {
		errs = append(errs, fmt.Errorf("seal thresholds must satisfy bronze <= silver <= gold, got %d/%d/%d",
			s.BronzeThreshold, s.SilverThreshold, s.GoldThreshold))
	}
	if s.Validity <= 0 {
		errs = append(errs, errors.New("seal validity must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled but KAFKA_BROKERS is empty"))
	}
	if c.Kafka.MaxRetries < 0 {
		errs = append(errs, errors.New("kafka max retries must not be negative"))
	}
	for _, b := range []string{c.Storage.Backend, c.Storage.IdempotencyBackend} {
		switch b {
		case BackendMemory, BackendPostgres, BackendRedis:
		default:
			errs = append(errs, fmt.Errorf("unknown storage backend %q", b))
		}
	}
	if c.Storage.Backend == BackendRedis {
		errs = append(errs, errors.New("redis is only supported as an idempotency store"))
	}
	if c.Storage.Backend == BackendPostgres && c.Postgres.URL == "" {
		errs = append(errs, errors.New("postgres storage requires DATABASE_URL"))
	}
	if c.Storage.IdempotencyBackend == BackendRedis && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis idempotency store requires REDIS_URL"))
	}
	if c.ProducerApproval.Enabled && c.ProducerApproval.BaseURL == "" {
		errs = append(errs, errors.New("producer approval enabled but PRODUCER_APPROVAL_URL is empty"))
	}
	return errors.Join(errs...)
}

func defaultBackend(databaseURL string) string {
	if databaseURL != "" {
		return BackendPostgres
	}
	return BackendMemory
}

// loadDotEnv loads path (or ./.env) without overriding variables already set.
// A missing default file is not an error; a missing explicit file is.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func getBool(key string, def bool, errs *[]error) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	if list := pstrings.SplitList(os.Getenv(key)); list != nil {
		return list
	}
	return def
}
