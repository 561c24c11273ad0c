package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Seal     SealConfig     `mapstructure:"seal"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Currency CurrencyConfig `mapstructure:"currency"`
	Deposits DepositConfig  `mapstructure:"deposits"`
	Gateways GatewayConfig  `mapstructure:"gateways"`
	Games    GamesConfig    `mapstructure:"games"`
	Renewal  RenewalConfig  `mapstructure:"renewal"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig validates player tokens issued by the account service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// SealConfig holds the key used to seal committed server seeds at rest.
type SealConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type LedgerConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
}

// CurrencyConfig lists units of each currency per one unit of Base.
type CurrencyConfig struct {
	Base  string            `mapstructure:"base"`
	Rates map[string]string `mapstructure:"rates"`
}

// NormalizedRates returns Rates keyed by upper-case currency code.
// Viper lower-cases map keys.
func (c CurrencyConfig) NormalizedRates() map[string]string {
	out := make(map[string]string, len(c.Rates))
	for k, v := range c.Rates {
		out[strings.ToUpper(k)] = v
	}
	return out
}

type MethodLimits struct {
	Min int64 `mapstructure:"min"`
	Max int64 `mapstructure:"max"`
}

type DepositConfig struct {
	Methods          map[string]MethodLimits `mapstructure:"methods"` // limits in gateway currency minor units
	CallbackCacheTTL time.Duration           `mapstructure:"callback_cache_ttl"`
}

type VNPayConfig struct {
	TmnCode    string `mapstructure:"tmn_code"`
	HashSecret string `mapstructure:"hash_secret"`
	PayURL     string `mapstructure:"pay_url"`
	ReturnURL  string `mapstructure:"return_url"`
}

type MoMoConfig struct {
	PartnerCode string `mapstructure:"partner_code"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Endpoint    string `mapstructure:"endpoint"`
	RedirectURL string `mapstructure:"redirect_url"`
	IPNURL      string `mapstructure:"ipn_url"`
}

type GatewayConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	VNPay   VNPayConfig   `mapstructure:"vnpay"`
	MoMo    MoMoConfig    `mapstructure:"momo"`
}

type GamesConfig struct {
	HouseWalletID string        `mapstructure:"house_wallet_id"`
	MaxStake      int64         `mapstructure:"max_stake"`
	SeedTTL       time.Duration `mapstructure:"seed_ttl"`
}

type RenewalConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: FPW_.
// Nested keys use underscore: FPW_DATABASE_HOST, FPW_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "fairplay_wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("seal.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.retry_backoff", "25ms")
	v.SetDefault("ledger.lock_timeout", "5s")

	v.SetDefault("currency.base", "USD")
	v.SetDefault("currency.rates", map[string]string{
		"USD": "1",
		"EUR": "0.92",
		"VND": "25000",
		"JPY": "150",
	})

	v.SetDefault("deposits.methods", map[string]any{
		"vnpay": map[string]any{"min": 10000, "max": 50000000},
		"momo":  map[string]any{"min": 10000, "max": 20000000},
	})
	v.SetDefault("deposits.callback_cache_ttl", "24h")

	v.SetDefault("gateways.timeout", "10s")
	v.SetDefault("gateways.vnpay.pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("gateways.momo.endpoint", "https://test-payment.momo.vn")

	v.SetDefault("games.house_wallet_id", "")
	v.SetDefault("games.max_stake", 100000000)
	v.SetDefault("games.seed_ttl", "1h")

	v.SetDefault("renewal.enabled", true)
	v.SetDefault("renewal.interval", "1m")
	v.SetDefault("renewal.batch_size", 100)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// FPW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("FPW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
