package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	Postgres   DatabaseConfig  `mapstructure:"postgres"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Credits    CreditsConfig   `mapstructure:"credits"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Upstream   UpstreamConfig  `mapstructure:"upstream"`
	Apps       []InternalApp   `mapstructure:"internal_apps"`
	Analytics  AnalyticsConfig `mapstructure:"analytics"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

// CreditsConfig holds the passive-earn award table and grant guardrails.
// Awards is the single source of truth for which apps participate in passive
// earning; slugs absent from it never earn.
type CreditsConfig struct {
	Awards         map[string]int64 `mapstructure:"awards"`
	GrantMaxAmount int64            `mapstructure:"grant_max_amount"`
}

type RateLimitConfig struct {
	AgentPerMinute int `mapstructure:"agent_per_minute"`
	UserPerMinute  int `mapstructure:"user_per_minute"`
	IPPerMinute    int `mapstructure:"ip_per_minute"`
	GrantPerHour   int `mapstructure:"grant_per_hour"`
	ProxyPerMinute int `mapstructure:"proxy_per_minute"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"`
}

// UpstreamConfig describes the partner trading service behind the proxy.
type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	TimeoutMs   int           `mapstructure:"timeout_ms"`
	PublicPaths []string      `mapstructure:"public_paths"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

// InternalApp is a trusted partner credential allowed to grant bonus credits.
type InternalApp struct {
	Slug string `mapstructure:"slug"`
	Key  string `mapstructure:"key"`
}

type AnalyticsConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (CLAWPLAY_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (CLAWPLAY_*)
	v.SetEnvPrefix("CLAWPLAY")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
