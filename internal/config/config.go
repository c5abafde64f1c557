// Package config provides configuration management for the yield streamer service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Streamer  StreamerConfig
	Token     TokenConfig
	Cache     CacheConfig
	Archiver  ArchiverConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Admin     AdminConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// StreamerConfig holds the accounting parameters of the yield engine.
type StreamerConfig struct {
	// DayLength is the length of one accounting day.
	DayLength time.Duration
	// EpochShift is subtracted from wall-clock time before the day index is
	// derived, moving the business-day boundary away from midnight UTC.
	EpochShift time.Duration
	// RateScale divides balance*rate products (and fee products).
	RateScale *big.Int
	// FeeRate is the fraction of claimed yield paid to the fee receiver,
	// expressed against RateScale.
	FeeRate *big.Int
	// FeeReceiver is the address credited with claim fees.
	FeeReceiver string
}

// TokenConfig holds the underlying token source configuration.
type TokenConfig struct {
	// Mode selects the token source implementation: "sim" or "erc20".
	Mode string
	// Address is the ERC-20 contract address (erc20 mode).
	Address string
	// RPCURL is the JSON-RPC endpoint (erc20 mode).
	RPCURL string
	// ChainID is the chain id used for transaction signing (erc20 mode).
	ChainID int64
	// TreasuryKey is the hex private key of the reserve holder (erc20 mode).
	TreasuryKey string
	// ReserveAddress is the account claims are paid from.
	ReserveAddress string
}

// CacheConfig holds preview cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// ArchiverConfig holds the background archiver configuration
type ArchiverConfig struct {
	FlushInterval time.Duration
	BufferSize    int
}

// RateLimitConfig holds rate limiting configuration (requests per second)
type RateLimitConfig struct {
	FreeTier    int
	BasicTier   int
	PremiumTier int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// AdminConfig holds the owner credential for admin operations
type AdminConfig struct {
	Key string
}

// Default accounting parameters. RateScale/FeeRate defaults express rates in
// trillionths; the default fee is 22.5% of claimed yield.
const (
	DefaultRateScale = 1_000_000_000_000
	DefaultFeeRate   = 225_000_000_000
)

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "yield_streamer"),
				User:           getEnv("POSTGRES_USER", "streamer"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "yield_streamer"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Streamer: StreamerConfig{
			DayLength:   getEnvAsDuration("DAY_LENGTH", 24*time.Hour),
			EpochShift:  getEnvAsDuration("DAY_EPOCH_SHIFT", 3*time.Hour),
			RateScale:   getEnvAsBig("RATE_SCALE", DefaultRateScale),
			FeeRate:     getEnvAsBig("FEE_RATE", DefaultFeeRate),
			FeeReceiver: getEnv("FEE_RECEIVER", ""),
		},
		Token: TokenConfig{
			Mode:           getEnv("TOKEN_MODE", "sim"),
			Address:        getEnv("TOKEN_ADDRESS", ""),
			RPCURL:         getEnv("TOKEN_RPC_URL", ""),
			ChainID:        int64(getEnvAsInt("TOKEN_CHAIN_ID", 1)),
			TreasuryKey:    getEnv("TOKEN_TREASURY_KEY", ""),
			ReserveAddress: getEnv("TOKEN_RESERVE_ADDRESS", ""),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 15*time.Second),
		},
		Archiver: ArchiverConfig{
			FlushInterval: getEnvAsDuration("ARCHIVER_FLUSH_INTERVAL", 10*time.Second),
			BufferSize:    getEnvAsInt("ARCHIVER_BUFFER_SIZE", 4096),
		},
		RateLimit: RateLimitConfig{
			FreeTier:    getEnvAsInt("RATE_LIMIT_FREE_TIER", 10),
			BasicTier:   getEnvAsInt("RATE_LIMIT_BASIC_TIER", 100),
			PremiumTier: getEnvAsInt("RATE_LIMIT_PREMIUM_TIER", 1000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Admin: AdminConfig{
			Key: getEnv("ADMIN_KEY", ""),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	if c.Streamer.DayLength <= 0 {
		return fmt.Errorf("DAY_LENGTH must be positive, got %s", c.Streamer.DayLength)
	}
	if c.Streamer.EpochShift < 0 {
		return fmt.Errorf("DAY_EPOCH_SHIFT must not be negative, got %s", c.Streamer.EpochShift)
	}
	if c.Streamer.RateScale.Sign() <= 0 {
		return fmt.Errorf("RATE_SCALE must be positive, got %s", c.Streamer.RateScale)
	}
	if c.Streamer.FeeRate.Sign() < 0 || c.Streamer.FeeRate.Cmp(c.Streamer.RateScale) > 0 {
		return fmt.Errorf("FEE_RATE must be within [0, RATE_SCALE], got %s", c.Streamer.FeeRate)
	}
	if c.Token.Mode != "sim" && c.Token.Mode != "erc20" {
		return fmt.Errorf("TOKEN_MODE must be \"sim\" or \"erc20\", got %q", c.Token.Mode)
	}
	if c.Token.Mode == "erc20" {
		if c.Token.Address == "" || c.Token.RPCURL == "" {
			return fmt.Errorf("TOKEN_ADDRESS and TOKEN_RPC_URL are required in erc20 mode")
		}
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBig gets an environment variable as a big integer with a default value
func getEnvAsBig(key string, defaultValue int64) *big.Int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return big.NewInt(defaultValue)
	}

	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return big.NewInt(defaultValue)
	}
	return value
}
