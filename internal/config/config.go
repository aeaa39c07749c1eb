package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cron       CronConfig       `mapstructure:"cron"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Journal    JournalConfig    `mapstructure:"journal"`
	PaaS       PaaSConfig       `mapstructure:"paas"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	WriteRatePerSec float64       `mapstructure:"write_rate_per_sec"`
	WriteBurst      int           `mapstructure:"write_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// MarketDataConfig points at the read-only market schema (nifty_prices,
// intraday_bhavcopy, strategy_features, instruments_master).
type MarketDataConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	UniverseLimit   int           `mapstructure:"universe_limit"`
	LookbackDays    int           `mapstructure:"lookback_days"`
	BaselineCandles int           `mapstructure:"baseline_candles"`
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	SessionMonitor string `mapstructure:"session_monitor"`
}

type PipelineConfig struct {
	Timezone string `mapstructure:"timezone"`

	// STEP-2 opening window.
	OpenTime  string `mapstructure:"open_time"`
	IRCandles int    `mapstructure:"ir_candles"`

	// STEP-3B thresholds.
	MinTradedValueCr    float64 `mapstructure:"min_traded_value_cr"`
	MinATRPct           float64 `mapstructure:"min_atr_pct"`
	MaxATRPct           float64 `mapstructure:"max_atr_pct"`
	AbnormalATRMultiple float64 `mapstructure:"abnormal_atr_multiple"`
	RSThreshold         float64 `mapstructure:"rs_threshold"`
	GapFollowMinPct     float64 `mapstructure:"gap_follow_min_pct"`

	// STEP-4 defaults when a request leaves them out.
	DefaultCapital     float64 `mapstructure:"default_capital"`
	DefaultRiskPercent float64 `mapstructure:"default_risk_percent"`
	DefaultEntryBuffer float64 `mapstructure:"default_entry_buffer"`
	DefaultRMultiple   float64 `mapstructure:"default_r_multiple"`
}

// JournalConfig controls plans seeded from frozen STEP-4 trades.
type JournalConfig struct {
	TradeMode string `mapstructure:"trade_mode"`
}

// PaaSConfig wires the easyweb3 gateway: bearer enforcement and the audit
// log sink. An empty BaseURL disables auditing.
type PaaSConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Agent          string `mapstructure:"agent"`
	AuthDisabled   bool   `mapstructure:"auth_disabled"`
	RequireGateway bool   `mapstructure:"require_gateway"`
}

// Load reads .env (if present), then the yaml file unless envOnly, with
// TS_-prefixed environment variables taking precedence.
func Load(path string, envOnly bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("TS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.write_rate_per_sec", 5)
	v.SetDefault("server.write_burst", 10)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("market_data.enabled", false)
	v.SetDefault("market_data.dsn", "")
	v.SetDefault("market_data.query_timeout", "10s")
	v.SetDefault("market_data.max_open_conns", 5)
	v.SetDefault("market_data.universe_limit", 200)
	v.SetDefault("market_data.lookback_days", 30)
	v.SetDefault("market_data.baseline_candles", 20)
	v.SetDefault("market_data.breaker.max_requests", 1)
	v.SetDefault("market_data.breaker.interval", "60s")
	v.SetDefault("market_data.breaker.timeout", "30s")
	v.SetDefault("market_data.breaker.consecutive_failures", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "tradesetup.events")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.session_monitor", "0 */5 9-15 * * MON-FRI")

	v.SetDefault("pipeline.timezone", "Asia/Kolkata")
	v.SetDefault("pipeline.open_time", "09:15")
	v.SetDefault("pipeline.ir_candles", 6)
	v.SetDefault("pipeline.min_traded_value_cr", 100)
	v.SetDefault("pipeline.min_atr_pct", 1.0)
	v.SetDefault("pipeline.max_atr_pct", 4.0)
	v.SetDefault("pipeline.abnormal_atr_multiple", 2.0)
	v.SetDefault("pipeline.rs_threshold", 0.3)
	v.SetDefault("pipeline.gap_follow_min_pct", 1.0)
	v.SetDefault("pipeline.default_capital", 100000)
	v.SetDefault("pipeline.default_risk_percent", 1.0)
	v.SetDefault("pipeline.default_entry_buffer", 0.0)
	v.SetDefault("pipeline.default_r_multiple", 2.0)

	v.SetDefault("journal.trade_mode", "PAPER")

	v.SetDefault("paas.base_url", "")
	v.SetDefault("paas.api_key", "")
	v.SetDefault("paas.agent", "tradesetup")
	v.SetDefault("paas.auth_disabled", true)
	v.SetDefault("paas.require_gateway", false)
}
