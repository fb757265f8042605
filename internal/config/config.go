package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Chain    ChainConfig
	Payment  PaymentConfig
	Session  SessionConfig
	Scene    SceneConfig
	Admin    AdminConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	PublicURL      string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type LogConfig struct {
	Dir   string
	Level string
}

type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	DSN          string
	AutoMigrate  bool
	SeedTheaters bool
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	GroupID string
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketIssued  string
	CommentPosted string
}

type ChainConfig struct {
	RPCURL            string
	WalletAddress     string
	TokenAddress      string
	TokenDecimals     int
	ReceiptAttempts   int
	ReceiptRetryDelay time.Duration
	LogScanBlocks     uint64
	RequestTimeout    time.Duration
}

type PaymentConfig struct {
	AllowSimulated    bool
	SimulatedPrefix   string
	BindUserOperation bool
}

type SessionConfig struct {
	Duration time.Duration
}

type SceneConfig struct {
	APIKey         string
	APIURL         string
	Condition      string
	MaxAttempts    int
	RateLimit      time.Duration
	RequestTimeout time.Duration
}

type AdminConfig struct {
	APIKey string
}

type MetricsConfig struct {
	Enabled bool
}

const (
	// USDC on Base mainnet.
	DefaultTokenAddress = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	DefaultSceneURL     = "https://trio.machinefi.com/api/check-once"
	DefaultCondition    = "Describe in detail what is happening in this scene. Include visual elements, colors, lighting, movement, any people or objects visible, and the overall atmosphere. What makes this scene interesting or notable?"
)

func Load() *Config {
	driver := strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	defaultDSN := "file:clawnema.db?_pragma=busy_timeout(5000)"
	if driver == "postgres" {
		defaultDSN = ""
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":3000"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			PublicURL:      getEnv("PUBLIC_URL", "http://localhost:3000"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    60 * time.Second,
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", ""),
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
		Database: DatabaseConfig{
			Driver:       driver,
			DSN:          getEnv("DATABASE_DSN", defaultDSN),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
			SeedTheaters: getEnvBool("DB_SEED_THEATERS", true),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			GroupID: getEnv("KAFKA_GROUP_ID", defaultGroupID()),
			Topics: TopicConfig{
				TicketIssued:  getEnv("KAFKA_TOPIC_TICKET_ISSUED", "clawnema.ticket.issued"),
				CommentPosted: getEnv("KAFKA_TOPIC_COMMENT_POSTED", "clawnema.comment.posted"),
			},
		},
		Chain: ChainConfig{
			RPCURL:            getEnv("BASE_RPC_URL", "https://mainnet.base.org"),
			WalletAddress:     getEnv("CLAWNEMA_WALLET_ADDRESS", ""),
			TokenAddress:      getEnv("USDC_CONTRACT_ADDRESS", DefaultTokenAddress),
			TokenDecimals:     getEnvInt("USDC_DECIMALS", 6),
			ReceiptAttempts:   getEnvInt("RECEIPT_LOOKUP_ATTEMPTS", 3),
			ReceiptRetryDelay: getEnvDuration("RECEIPT_RETRY_DELAY", 3*time.Second),
			LogScanBlocks:     uint64(getEnvInt("LOG_SCAN_BLOCKS", 300)),
			RequestTimeout:    getEnvDuration("RPC_REQUEST_TIMEOUT", 10*time.Second),
		},
		Payment: PaymentConfig{
			AllowSimulated:    getEnvBool("ALLOW_SIMULATED_PAYMENTS", false),
			SimulatedPrefix:   getEnv("SIMULATED_PAYMENT_PREFIX", "dev_"),
			BindUserOperation: getEnvBool("PAYMENT_BIND_USER_OPERATION", false),
		},
		Session: SessionConfig{
			Duration: time.Duration(getEnvInt("SESSION_DURATION_HOURS", 2)) * time.Hour,
		},
		Scene: SceneConfig{
			APIKey:         getEnv("TRIO_API_KEY", ""),
			APIURL:         getEnv("TRIO_API_URL", DefaultSceneURL),
			Condition:      getEnv("TRIO_CONDITION", DefaultCondition),
			MaxAttempts:    getEnvInt("TRIO_MAX_ATTEMPTS", 3),
			RateLimit:      time.Duration(getEnvInt("WATCH_RATE_LIMIT_SECONDS", 10)) * time.Second,
			RequestTimeout: getEnvDuration("TRIO_REQUEST_TIMEOUT", 30*time.Second),
		},
		Admin: AdminConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}
}

// IsProduction reports whether ENVIRONMENT names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// Validate rejects configurations that would make the service unsafe to run.
func (c *Config) Validate() error {
	var errs []error

	if c.Payment.AllowSimulated && c.IsProduction() {
		errs = append(errs, errors.New("ALLOW_SIMULATED_PAYMENTS must not be enabled in production"))
	}
	if c.Payment.AllowSimulated && strings.TrimSpace(c.Payment.SimulatedPrefix) == "" {
		errs = append(errs, errors.New("SIMULATED_PAYMENT_PREFIX must not be empty when simulated payments are enabled"))
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN not set"))
	}
	if c.Chain.TokenDecimals < 0 || c.Chain.TokenDecimals > 36 {
		errs = append(errs, fmt.Errorf("USDC_DECIMALS out of range: %d", c.Chain.TokenDecimals))
	}
	if c.Chain.ReceiptAttempts < 1 {
		errs = append(errs, errors.New("RECEIPT_LOOKUP_ATTEMPTS must be at least 1"))
	}
	if c.Session.Duration <= 0 {
		errs = append(errs, errors.New("SESSION_DURATION_HOURS must be positive"))
	}
	if c.Scene.RateLimit < 0 {
		errs = append(errs, errors.New("WATCH_RATE_LIMIT_SECONDS must not be negative"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("3s") or bare milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func defaultGroupID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "clawnema-feed-" + host
}
