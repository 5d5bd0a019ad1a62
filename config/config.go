// Package config loads the trading core's settings from a JSON file
// overridden by environment variables, the same load-then-override shape
// the teacher's own config package uses, trimmed to the keys this core
// actually reads instead of the teacher's multi-tenant SaaS surface.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kvantix/perpfutures-core/internal/circuit"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/logging"
	"github.com/kvantix/perpfutures-core/internal/partialtp"
	"github.com/kvantix/perpfutures-core/internal/regime"
	"github.com/kvantix/perpfutures-core/internal/scheduler"
	"github.com/kvantix/perpfutures-core/internal/stoploss"
)

// Config is the process-wide settings bundle produced by Load.
type Config struct {
	Exchange  ExchangeConfig  `json:"exchange"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

// ExchangeConfig selects and authenticates the adapter variant
// (`exchange_name`, `<exchange>_api_key`, `<exchange>_api_secret`,
// `<exchange>_use_testnet`).
type ExchangeConfig struct {
	Name       string `json:"name"` // "linear" or "inverse"
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	UseTestnet bool   `json:"use_testnet"`
	MockMode   bool   `json:"mock_mode"` // run against internal/exchange/mock instead of a live client
}

// DatabaseConfig holds the store connection string (`database_url`).
type DatabaseConfig struct {
	URL string `json:"url"`
}

// RedisConfig configures the Redis client handed to internal/store, which
// holds it without using it, grounded on the teacher's own
// internal/cache.CacheService connection options.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// LoggingConfig mirrors internal/logging.Config's fields for JSON/env
// configurability.
type LoggingConfig struct {
	Level       string `json:"level"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// SchedulerConfig is the JSON/env-facing mirror of scheduler.Config, plus
// the strategy enum and per-component sub-configs it assembles.
type SchedulerConfig struct {
	TradingIntervalMinutes   int      `json:"trading_interval_minutes"`
	PriceOrderCheckInterval  int      `json:"price_order_check_interval"` // seconds
	TradingStrategy          string   `json:"trading_strategy"`
	TradingSymbols           []string `json:"trading_symbols"`
	MaxPositions             int      `json:"max_positions"`
	MaxLeverage              int      `json:"max_leverage"`
	MaxHoldingHours          float64  `json:"max_holding_hours"`
	MaxConcurrency           int64    `json:"max_concurrency"`
	InitialBalance           float64  `json:"initial_balance"`
	EnableScientificStopLoss bool     `json:"enable_scientific_stop_loss"`
	EnableStopLossFilter     bool     `json:"enable_stop_loss_filter"`
	EnableTrailingStopLoss   bool     `json:"enable_trailing_stop_loss"`

	StopLoss StopLossConfig `json:"stop_loss"`
	Regime   RegimeConfig   `json:"regime"`
	Scorer   ScorerConfig   `json:"scorer"`
	PartialTP PartialTPConfig `json:"partial_tp"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`

	AccountDrawdownWarningPct float64 `json:"account_drawdown_warning_pct"`
}

// StopLossConfig mirrors stoploss.Config's JSON/env-facing fields
// (`atr_period`, `atr_multiplier`, `support_resistance_lookback`,
// `support_resistance_buffer`, `min_stop_loss_percent`,
// `max_stop_loss_percent`, `min_stop_loss_quality_score`).
type StopLossConfig struct {
	ATRPeriod                 int     `json:"atr_period"`
	ATRMultiplier             float64 `json:"atr_multiplier"`
	SupportResistanceLookback int     `json:"support_resistance_lookback"`
	SupportResistanceBuffer   float64 `json:"support_resistance_buffer"`
	MinStopLossPercent        float64 `json:"min_stop_loss_percent"`
	MaxStopLossPercent        float64 `json:"max_stop_loss_percent"`
	MinStopLossQualityScore   float64 `json:"min_stop_loss_quality_score"`
}

// RegimeConfig mirrors regime.MomentumThresholds
// (`oversold_*_threshold`, `overbought_*_threshold`).
type RegimeConfig struct {
	OversoldExtremeThreshold   float64 `json:"oversold_extreme_threshold"`
	OversoldMildThreshold      float64 `json:"oversold_mild_threshold"`
	OverboughtMildThreshold    float64 `json:"overbought_mild_threshold"`
	OverboughtExtremeThreshold float64 `json:"overbought_extreme_threshold"`
}

// ScorerConfig mirrors the scorer parameters (`min_opportunity_score`,
// `max_opportunities_to_show`).
type ScorerConfig struct {
	MinOpportunityScore   int `json:"min_opportunity_score"`
	MaxOpportunitiesToShow int `json:"max_opportunities_to_show"`
}

// PartialTPConfig holds the stage-1..3 quantity fractions. One fraction set
// applies across every strategy; stage triggers are fixed at 1R/2R/3R from
// entry (partialtp.Position.TargetPrice). There are no per-strategy
// R-multiples or fractions and no extreme-stop tier.
type PartialTPConfig struct {
	Stage1Fraction float64 `json:"stage1_fraction"`
	Stage2Fraction float64 `json:"stage2_fraction"`
	Stage3Fraction float64 `json:"stage3_fraction"`
}

// CircuitBreakerConfig mirrors internal/circuit.Config, the account-level
// kill-switch settings alongside the trading/stop-loss/regime/scorer/
// partial-TP groups.
type CircuitBreakerConfig struct {
	Enabled              bool    `json:"enabled"`
	MaxLossPerHourPct    float64 `json:"max_loss_per_hour_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	CooldownMinutes      int     `json:"cooldown_minutes"`
	MaxTradesPerMinute   int     `json:"max_trades_per_minute"`
	MaxDailyLossPct      float64 `json:"max_daily_loss_pct"`
	MaxDailyTrades       int     `json:"max_daily_trades"`
}

// strategyTimeframes maps the `trading_strategy` enum to the
// (primary, confirm, filter) timeframe triple the regime classifier reads
// its inputs from. The exact intervals per enum value are left to the
// operator; this assigns progressively wider windows as the name implies
// increasing holding horizon (see DESIGN.md Open Questions).
var strategyTimeframes = map[string]scheduler.TimeframeTriple{
	"ultra-short": {Primary: exchange.Interval1m, Confirm: exchange.Interval5m, Filter: exchange.Interval15m},
	"aggressive":  {Primary: exchange.Interval5m, Confirm: exchange.Interval15m, Filter: exchange.Interval1h},
	"balanced":    {Primary: exchange.Interval15m, Confirm: exchange.Interval1h, Filter: exchange.Interval4h},
	"conservative": {Primary: exchange.Interval1h, Confirm: exchange.Interval4h, Filter: exchange.Interval1d},
	"swing-trend": {Primary: exchange.Interval4h, Confirm: exchange.Interval1d, Filter: exchange.Interval1d},
}

// Load reads config.json if present, then applies environment overrides
// (which always win), matching the teacher's own file-then-env precedence.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaults()
	}
	applyEnvOverrides(cfg)
	return cfg, cfg.validate()
}

func defaults() *Config {
	return &Config{
		Exchange: ExchangeConfig{Name: "linear"},
		Redis:    RedisConfig{Address: "localhost:6379", PoolSize: 10},
		Logging:  LoggingConfig{Level: "info", JSONFormat: true},
		Scheduler: SchedulerConfig{
			TradingIntervalMinutes:  5,
			PriceOrderCheckInterval: 30,
			TradingStrategy:         "balanced",
			MaxPositions:            5,
			MaxLeverage:             10,
			MaxHoldingHours:         36,
			MaxConcurrency:          4,
			EnableTrailingStopLoss:  true,
			StopLoss: StopLossConfig{
				ATRPeriod:                 14,
				ATRMultiplier:             2.0,
				SupportResistanceLookback: 20,
				SupportResistanceBuffer:   0.005,
				MinStopLossPercent:        0.5,
				MaxStopLossPercent:        5.0,
				MinStopLossQualityScore:   60,
			},
			Regime: RegimeConfig{
				OversoldExtremeThreshold:   20,
				OversoldMildThreshold:      30,
				OverboughtMildThreshold:    70,
				OverboughtExtremeThreshold: 80,
			},
			Scorer: ScorerConfig{MinOpportunityScore: 60, MaxOpportunitiesToShow: 5},
			PartialTP: PartialTPConfig{
				Stage1Fraction: partialtp.DefaultStageFractions.Stage1,
				Stage2Fraction: partialtp.DefaultStageFractions.Stage2,
				Stage3Fraction: partialtp.DefaultStageFractions.Stage3,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:              true,
				MaxLossPerHourPct:    3.0,
				MaxConsecutiveLosses: 5,
				CooldownMinutes:      30,
				MaxTradesPerMinute:   10,
				MaxDailyLossPct:      5.0,
				MaxDailyTrades:       100,
			},
		},
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}
	cfg := defaults()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Exchange.Name = getEnvOrDefault("EXCHANGE_NAME", cfg.Exchange.Name)
	cfg.Exchange.APIKey = getEnvOrDefault(envKeyForExchange(cfg.Exchange.Name, "API_KEY"), cfg.Exchange.APIKey)
	cfg.Exchange.APISecret = getEnvOrDefault(envKeyForExchange(cfg.Exchange.Name, "API_SECRET"), cfg.Exchange.APISecret)
	cfg.Exchange.UseTestnet = getEnvBoolOrDefault(envKeyForExchange(cfg.Exchange.Name, "USE_TESTNET"), cfg.Exchange.UseTestnet)
	cfg.Exchange.MockMode = getEnvBoolOrDefault("EXCHANGE_MOCK_MODE", cfg.Exchange.MockMode)

	cfg.Database.URL = getEnvOrDefault("DATABASE_URL", cfg.Database.URL)

	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)
	cfg.Logging.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.Logging.IncludeFile)

	s := &cfg.Scheduler
	s.TradingIntervalMinutes = getEnvIntOrDefault("TRADING_INTERVAL_MINUTES", s.TradingIntervalMinutes)
	s.PriceOrderCheckInterval = getEnvIntOrDefault("PRICE_ORDER_CHECK_INTERVAL", s.PriceOrderCheckInterval)
	s.TradingStrategy = getEnvOrDefault("TRADING_STRATEGY", s.TradingStrategy)
	if raw := os.Getenv("TRADING_SYMBOLS"); raw != "" {
		s.TradingSymbols = splitCSV(raw)
	}
	s.MaxPositions = getEnvIntOrDefault("MAX_POSITIONS", s.MaxPositions)
	s.MaxLeverage = getEnvIntOrDefault("MAX_LEVERAGE", s.MaxLeverage)
	s.MaxHoldingHours = getEnvFloatOrDefault("MAX_HOLDING_HOURS", s.MaxHoldingHours)
	s.MaxConcurrency = int64(getEnvIntOrDefault("MAX_CONCURRENCY", int(s.MaxConcurrency)))
	s.InitialBalance = getEnvFloatOrDefault("INITIAL_BALANCE", s.InitialBalance)
	s.EnableScientificStopLoss = getEnvBoolOrDefault("ENABLE_SCIENTIFIC_STOP_LOSS", s.EnableScientificStopLoss)
	s.EnableStopLossFilter = getEnvBoolOrDefault("ENABLE_STOP_LOSS_FILTER", s.EnableStopLossFilter)
	s.EnableTrailingStopLoss = getEnvBoolOrDefault("ENABLE_TRAILING_STOP_LOSS", s.EnableTrailingStopLoss)
	s.AccountDrawdownWarningPct = getEnvFloatOrDefault("ACCOUNT_DRAWDOWN_WARNING_PCT", s.AccountDrawdownWarningPct)

	sl := &s.StopLoss
	sl.ATRPeriod = getEnvIntOrDefault("ATR_PERIOD", sl.ATRPeriod)
	sl.ATRMultiplier = getEnvFloatOrDefault("ATR_MULTIPLIER", sl.ATRMultiplier)
	sl.SupportResistanceLookback = getEnvIntOrDefault("SUPPORT_RESISTANCE_LOOKBACK", sl.SupportResistanceLookback)
	sl.SupportResistanceBuffer = getEnvFloatOrDefault("SUPPORT_RESISTANCE_BUFFER", sl.SupportResistanceBuffer)
	sl.MinStopLossPercent = getEnvFloatOrDefault("MIN_STOP_LOSS_PERCENT", sl.MinStopLossPercent)
	sl.MaxStopLossPercent = getEnvFloatOrDefault("MAX_STOP_LOSS_PERCENT", sl.MaxStopLossPercent)
	sl.MinStopLossQualityScore = getEnvFloatOrDefault("MIN_STOP_LOSS_QUALITY_SCORE", sl.MinStopLossQualityScore)

	rg := &s.Regime
	rg.OversoldExtremeThreshold = getEnvFloatOrDefault("OVERSOLD_EXTREME_THRESHOLD", rg.OversoldExtremeThreshold)
	rg.OversoldMildThreshold = getEnvFloatOrDefault("OVERSOLD_MILD_THRESHOLD", rg.OversoldMildThreshold)
	rg.OverboughtMildThreshold = getEnvFloatOrDefault("OVERBOUGHT_MILD_THRESHOLD", rg.OverboughtMildThreshold)
	rg.OverboughtExtremeThreshold = getEnvFloatOrDefault("OVERBOUGHT_EXTREME_THRESHOLD", rg.OverboughtExtremeThreshold)

	sc := &s.Scorer
	sc.MinOpportunityScore = getEnvIntOrDefault("MIN_OPPORTUNITY_SCORE", sc.MinOpportunityScore)
	sc.MaxOpportunitiesToShow = getEnvIntOrDefault("MAX_OPPORTUNITIES_TO_SHOW", sc.MaxOpportunitiesToShow)

	pt := &s.PartialTP
	pt.Stage1Fraction = getEnvFloatOrDefault("PARTIAL_TP_STAGE1_FRACTION", pt.Stage1Fraction)
	pt.Stage2Fraction = getEnvFloatOrDefault("PARTIAL_TP_STAGE2_FRACTION", pt.Stage2Fraction)
	pt.Stage3Fraction = getEnvFloatOrDefault("PARTIAL_TP_STAGE3_FRACTION", pt.Stage3Fraction)

	cb := &s.CircuitBreaker
	cb.Enabled = getEnvBoolOrDefault("CIRCUIT_BREAKER_ENABLED", cb.Enabled)
	cb.MaxLossPerHourPct = getEnvFloatOrDefault("CIRCUIT_BREAKER_MAX_LOSS_PER_HOUR_PCT", cb.MaxLossPerHourPct)
	cb.MaxConsecutiveLosses = getEnvIntOrDefault("CIRCUIT_BREAKER_MAX_CONSECUTIVE_LOSSES", cb.MaxConsecutiveLosses)
	cb.CooldownMinutes = getEnvIntOrDefault("CIRCUIT_BREAKER_COOLDOWN_MINUTES", cb.CooldownMinutes)
	cb.MaxTradesPerMinute = getEnvIntOrDefault("CIRCUIT_BREAKER_MAX_TRADES_PER_MINUTE", cb.MaxTradesPerMinute)
	cb.MaxDailyLossPct = getEnvFloatOrDefault("CIRCUIT_BREAKER_MAX_DAILY_LOSS_PCT", cb.MaxDailyLossPct)
	cb.MaxDailyTrades = getEnvIntOrDefault("CIRCUIT_BREAKER_MAX_DAILY_TRADES", cb.MaxDailyTrades)
}

func envKeyForExchange(name, suffix string) string {
	return strings.ToUpper(name) + "_" + suffix
}

// validate rejects missing or invalid configuration so the process fails
// at startup rather than limping along with bad settings.
func (c *Config) validate() error {
	switch c.Exchange.Name {
	case "linear", "inverse":
	default:
		return fmt.Errorf("config: exchange_name must be linear or inverse, got %q", c.Exchange.Name)
	}
	if !c.Exchange.MockMode {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("config: %s_api_key and %s_api_secret are required unless mock_mode is set", c.Exchange.Name, c.Exchange.Name)
		}
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config: database_url is required")
	}
	if c.Redis.Address == "" {
		return fmt.Errorf("config: redis address is required")
	}
	if _, ok := strategyTimeframes[c.Scheduler.TradingStrategy]; !ok {
		return fmt.Errorf("config: unknown trading_strategy %q", c.Scheduler.TradingStrategy)
	}
	if len(c.Scheduler.TradingSymbols) == 0 {
		return fmt.Errorf("config: trading_symbols must name at least one symbol")
	}
	return nil
}

// ExchangeKind returns the exchange.Kind the ExchangeConfig selects.
func (c *Config) ExchangeKind() exchange.Kind {
	if c.Exchange.Name == "inverse" {
		return exchange.KindInverse
	}
	return exchange.KindLinear
}

// Credentials builds the exchange.Credentials the adapter constructors
// need, defaulting BaseURL to the Binance USDT-M futures host (or its
// testnet variant) for linear, and the coin-M futures host for inverse.
func (c *Config) Credentials() exchange.Credentials {
	return exchange.Credentials{
		APIKey:     c.Exchange.APIKey,
		APISecret:  c.Exchange.APISecret,
		BaseURL:    c.exchangeBaseURL(),
		UseTestnet: c.Exchange.UseTestnet,
	}
}

func (c *Config) exchangeBaseURL() string {
	switch {
	case c.Exchange.Name == "inverse" && c.Exchange.UseTestnet:
		return "https://testnet.binancefuture.com"
	case c.Exchange.Name == "inverse":
		return "https://dapi.binance.com"
	case c.Exchange.UseTestnet:
		return "https://testnet.binancefuture.com"
	default:
		return "https://fapi.binance.com"
	}
}

// ToLoggingConfig converts to internal/logging.Config.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:       c.Logging.Level,
		JSONFormat:  c.Logging.JSONFormat,
		IncludeFile: c.Logging.IncludeFile,
	}
}

// ToSchedulerConfig assembles the internal/scheduler.Config the running
// scheduler needs, resolving the trading_strategy enum into its timeframe
// triple and wiring every sub-config into its collaborator's shape.
func (c *Config) ToSchedulerConfig(holder string) scheduler.Config {
	s := c.Scheduler
	cfg := scheduler.Config{
		Symbols:             s.TradingSymbols,
		Timeframes:          strategyTimeframes[s.TradingStrategy],
		TickInterval:        time.Duration(s.TradingIntervalMinutes) * time.Minute,
		MonitorInterval:     time.Duration(s.PriceOrderCheckInterval) * time.Second,
		MaxPositions:        s.MaxPositions,
		MaxLeverage:         s.MaxLeverage,
		MaxHoldingHours:     s.MaxHoldingHours,
		MaxConcurrency:      s.MaxConcurrency,
		MinOpportunityScore: s.Scorer.MinOpportunityScore,
		MaxOpportunities:    s.Scorer.MaxOpportunitiesToShow,
		EnableTrailingStop:  s.EnableTrailingStopLoss,
		StopConfig: stoploss.Config{
			ATRPeriod:       s.StopLoss.ATRPeriod,
			ATRMultiplier:   s.StopLoss.ATRMultiplier,
			LookbackPeriod:  s.StopLoss.SupportResistanceLookback,
			BufferPercent:   s.StopLoss.SupportResistanceBuffer,
			MinStopPercent:  s.StopLoss.MinStopLossPercent,
			MaxStopPercent:  s.StopLoss.MaxStopLossPercent,
			MinQualityScore: s.StopLoss.MinStopLossQualityScore,
		},
		StageFractions: partialtp.StageFractions{
			Stage1: s.PartialTP.Stage1Fraction,
			Stage2: s.PartialTP.Stage2Fraction,
			Stage3: s.PartialTP.Stage3Fraction,
		},
		AccountDrawdownWarningPct: s.AccountDrawdownWarningPct,
		InitialBalance:            s.InitialBalance,
		Holder:                    holder,
		Circuit: circuit.Config{
			Enabled:              s.CircuitBreaker.Enabled,
			MaxLossPerHourPct:    s.CircuitBreaker.MaxLossPerHourPct,
			MaxConsecutiveLosses: s.CircuitBreaker.MaxConsecutiveLosses,
			CooldownMinutes:      s.CircuitBreaker.CooldownMinutes,
			MaxTradesPerMinute:   s.CircuitBreaker.MaxTradesPerMinute,
			MaxDailyLossPct:      s.CircuitBreaker.MaxDailyLossPct,
			MaxDailyTrades:       s.CircuitBreaker.MaxDailyTrades,
		},
	}
	return cfg
}

// RedisOptions builds the *redis.Options the client handed to
// internal/store is constructed from, grounded on the teacher's own
// CacheService connection options (DialTimeout/ReadTimeout/WriteTimeout and
// a small MinIdleConns/MaxRetries pair tuned for a single-process caller
// rather than the teacher's multi-tenant pool sizing).
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:         c.Redis.Address,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ToMomentumThresholds converts to internal/regime.MomentumThresholds.
func (c *Config) ToMomentumThresholds() regime.MomentumThresholds {
	r := c.Scheduler.Regime
	return regime.MomentumThresholds{
		ExtremeLow: r.OversoldExtremeThreshold,
		MildLow:    r.OversoldMildThreshold,
		MildHigh:   r.OverboughtMildThreshold,
		ExtremeHigh: r.OverboughtExtremeThreshold,
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
