package main

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/blinkpay/blinkpay/go/audit"
	"github.com/blinkpay/blinkpay/go/keyprovider"
	"github.com/blinkpay/blinkpay/go/session"
	"github.com/blinkpay/blinkpay/go/webhook"
)

const envPrefix = "BLINKPAY"

// Config is the daemon configuration. Every key can be set from the YAML
// file or from BLINKPAY_<SECTION>_<KEY>.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Solana   SolanaConfig   `mapstructure:"solana" yaml:"solana"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Crypto   CryptoConfig   `mapstructure:"crypto" yaml:"crypto"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Webhook  WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	Quote    QuoteConfig    `mapstructure:"quote" yaml:"quote"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	FrontendURL     string        `mapstructure:"frontend_url" yaml:"frontend_url"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type SolanaConfig struct {
	// RPCURL is optional; without it intents carry a zero blockhash.
	RPCURL    string `mapstructure:"rpc_url" yaml:"rpc_url"`
	ProgramID string `mapstructure:"program_id" yaml:"program_id"`
}

type SessionConfig struct {
	Duration      time.Duration `mapstructure:"duration" yaml:"duration"`
	MaxSessions   int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	PhraseWords   int           `mapstructure:"phrase_words" yaml:"phrase_words"`
}

// CryptoConfig selects the key provider: MasterKey (hex, 32 bytes) wins
// over Passphrase+Salt.
type CryptoConfig struct {
	MasterKey  string `mapstructure:"master_key" yaml:"master_key"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase"`
	Salt       string `mapstructure:"salt" yaml:"salt"`
}

type AuditConfig struct {
	MaxEvents int `mapstructure:"max_events" yaml:"max_events"`
	// SinkBuffer sizes the async queue in front of the log and Redis sinks.
	SinkBuffer int `mapstructure:"sink_buffer" yaml:"sink_buffer"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type WebhookConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl" yaml:"idempotency_ttl"`
}

// QuoteConfig points quotes at a price service. Without RateURL only USD
// is priced, 1:1.
type QuoteConfig struct {
	RateURL      string        `mapstructure:"rate_url" yaml:"rate_url"`
	RateCacheTTL time.Duration `mapstructure:"rate_cache_ttl" yaml:"rate_cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.frontend_url", "http://localhost:3000")
	v.SetDefault("http.rate_limit_rps", 20.0)
	v.SetDefault("http.rate_limit_burst", 40)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("solana.rpc_url", "")
	v.SetDefault("solana.program_id", "")

	v.SetDefault("session.duration", session.DefaultDuration)
	v.SetDefault("session.max_sessions", session.DefaultMaxSessions)
	v.SetDefault("session.sweep_interval", session.DefaultSweepInterval)
	v.SetDefault("session.phrase_words", session.DefaultPhraseWords)

	v.SetDefault("crypto.master_key", "")
	v.SetDefault("crypto.passphrase", "")
	v.SetDefault("crypto.salt", "")

	v.SetDefault("audit.max_events", audit.DefaultMaxEvents)
	v.SetDefault("audit.sink_buffer", 1024)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("webhook.timeout", webhook.DefaultTimeout)
	v.SetDefault("webhook.idempotency_ttl", 24*time.Hour)

	v.SetDefault("quote.rate_url", "")
	v.SetDefault("quote.rate_cache_ttl", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// loadConfig reads defaults, then the optional YAML file at path, then the
// environment.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the libraries would otherwise silently default.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Session.Duration <= 0 {
		return errors.New("session.duration must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return errors.New("session.max_sessions must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive")
	}
	if c.Session.PhraseWords <= 0 {
		return errors.New("session.phrase_words must be positive")
	}
	if c.Crypto.MasterKey == "" && c.Crypto.Passphrase == "" {
		return errors.New("one of crypto.master_key or crypto.passphrase is required")
	}
	if c.Crypto.MasterKey == "" && c.Crypto.Salt == "" {
		return errors.New("crypto.salt is required with crypto.passphrase")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// KeyProvider builds the provider selected by the crypto section.
func (c CryptoConfig) KeyProvider() (*keyprovider.AEADProvider, error) {
	if c.MasterKey != "" {
		key, err := hex.DecodeString(c.MasterKey)
		if err != nil {
			return nil, errors.Wrap(err, "crypto.master_key is not hex")
		}
		return keyprovider.NewStatic(key)
	}
	salt, err := hex.DecodeString(c.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "crypto.salt is not hex")
	}
	return keyprovider.NewPassphrase(c.Passphrase, salt, keyprovider.DefaultArgon2Params)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Crypto.MasterKey = mask(c.Crypto.MasterKey)
	c.Crypto.Passphrase = mask(c.Crypto.Passphrase)
	c.Redis.Password = mask(c.Redis.Password)
	c.Postgres.DSN = mask(c.Postgres.DSN)
	return c
}
