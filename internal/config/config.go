package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/policytone/internal/lag"
	"github.com/rewired-gh/policytone/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Engine     EngineConfig            `mapstructure:"engine"`
	Decompose  DecomposeConfig         `mapstructure:"decompose"`
	Taylor     models.TaylorParams     `mapstructure:"taylor"`
	Classifier models.ClassifierParams `mapstructure:"classifier"`
	Lag        lag.Config              `mapstructure:"lag"`
	Backtest   BacktestConfig          `mapstructure:"backtest"`
	Storage    StorageConfig           `mapstructure:"storage"`
	ECOS       ECOSConfig              `mapstructure:"ecos"`
	NewsFeed   NewsFeedConfig          `mapstructure:"newsfeed"`
	Telegram   TelegramConfig          `mapstructure:"telegram"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// EngineConfig holds tone scoring configuration
type EngineConfig struct {
	ParameterName string             `mapstructure:"parameter_name"`
	Weights       models.Weights     `mapstructure:"weights"`
	MarketWindow  models.Window      `mapstructure:"market_window"`
	NewsWindow    models.Window      `mapstructure:"news_window"`
	MarketScale   float64            `mapstructure:"market_scale"`
	Indicators    []models.Indicator `mapstructure:"indicators"`   // empty = default indicators
	LexiconPath   string             `mapstructure:"lexicon_path"` // empty = embedded dictionary
	MatchMode     string             `mapstructure:"match_mode"`
	Normalize     bool               `mapstructure:"normalize"`
	Workers       int                `mapstructure:"workers"` // 0 = one per CPU
}

// DecomposeConfig holds trend/cycle filter configuration
type DecomposeConfig struct {
	Lambda    float64 `mapstructure:"lambda"`
	MinPoints int     `mapstructure:"min_points"`
}

// BacktestConfig holds the default evaluation range
type BacktestConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ECOSConfig holds Bank of Korea statistics API configuration
type ECOSConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
}

// NewsFeedConfig holds headline feed configuration
type NewsFeedConfig struct {
	URLs    []string      `mapstructure:"urls"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("POLICYTONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	d := models.DefaultParameters()

	// Engine defaults
	v.SetDefault("engine.parameter_name", d.Name)
	v.SetDefault("engine.weights.alpha", d.Weights.Alpha)
	v.SetDefault("engine.weights.beta", d.Weights.Beta)
	v.SetDefault("engine.weights.gamma", d.Weights.Gamma)
	v.SetDefault("engine.market_window.before", d.Scoring.MarketWindow.Before)
	v.SetDefault("engine.market_window.after", d.Scoring.MarketWindow.After)
	v.SetDefault("engine.news_window.before", d.Scoring.NewsWindow.Before)
	v.SetDefault("engine.news_window.after", d.Scoring.NewsWindow.After)
	v.SetDefault("engine.market_scale", d.Scoring.MarketScale)
	v.SetDefault("engine.match_mode", d.Scoring.MatchMode)
	v.SetDefault("engine.normalize", d.Scoring.Normalize)
	v.SetDefault("engine.workers", 0)

	v.SetDefault("decompose.lambda", 1600.0)
	v.SetDefault("decompose.min_points", 8)

	v.SetDefault("taylor.r_star", d.Taylor.RStar)
	v.SetDefault("taylor.pi_star", d.Taylor.PiStar)
	v.SetDefault("taylor.alpha_pi", d.Taylor.AlphaPi)
	v.SetDefault("taylor.alpha_y", d.Taylor.AlphaY)
	v.SetDefault("taylor.gamma", d.Taylor.Gamma)
	v.SetDefault("taylor.rho", d.Taylor.Rho)
	v.SetDefault("taylor.delta", d.Taylor.Delta)

	v.SetDefault("classifier.method", d.Classifier.Method)
	v.SetDefault("classifier.threshold", d.Classifier.Threshold)
	v.SetDefault("classifier.learning_rate", d.Classifier.LearningRate)
	v.SetDefault("classifier.iterations", d.Classifier.Iterations)
	v.SetDefault("classifier.l2", d.Classifier.L2)
	v.SetDefault("classifier.min_per_class", d.Classifier.MinPerClass)

	lc := lag.DefaultConfig()
	v.SetDefault("lag.max_lag", lc.MaxLag)
	v.SetDefault("lag.min_overlap", lc.MinOverlap)
	v.SetDefault("lag.tolerance", lc.Tolerance)

	v.SetDefault("backtest.start", "2021-01-01")
	v.SetDefault("backtest.end", "2025-12-31")

	v.SetDefault("storage.db_path", "./data/policytone.db")

	// ECOS defaults
	v.SetDefault("ecos.base_url", "https://ecos.bok.or.kr/api")
	v.SetDefault("ecos.timeout", "30s")
	v.SetDefault("ecos.retries", 3)
	v.SetDefault("ecos.rate_limit", 2.0)

	v.SetDefault("newsfeed.timeout", "15s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := models.ValidateWeights("config", "engine.weights", c.Engine.Weights); err != nil {
		return err
	}
	if c.Engine.ParameterName == "" {
		return fmt.Errorf("engine.parameter_name is required")
	}
	if c.Engine.MarketWindow.Before < 0 || c.Engine.MarketWindow.After < 0 {
		return fmt.Errorf("engine.market_window bounds must not be negative")
	}
	if c.Engine.NewsWindow.Before < 0 || c.Engine.NewsWindow.After < 0 {
		return fmt.Errorf("engine.news_window bounds must not be negative")
	}
	if c.Engine.MarketScale <= 0 {
		return fmt.Errorf("engine.market_scale must be positive")
	}
	for _, ind := range c.Engine.Indicators {
		if ind.Series == "" || ind.Weight <= 0 {
			return fmt.Errorf("engine.indicators entries need a series and a positive weight")
		}
	}
	validModes := map[string]bool{"word_prefix": true, "substring": true}
	if !validModes[c.Engine.MatchMode] {
		return fmt.Errorf("engine.match_mode must be one of: word_prefix, substring")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must not be negative")
	}

	if c.Decompose.Lambda <= 0 {
		return fmt.Errorf("decompose.lambda must be positive")
	}
	if c.Decompose.MinPoints < 3 {
		return fmt.Errorf("decompose.min_points must be at least 3")
	}

	if c.Taylor.Rho < 0 || c.Taylor.Rho >= 1 {
		return fmt.Errorf("taylor.rho must be in [0, 1)")
	}
	for _, coef := range []struct {
		name  string
		value float64
	}{
		{"r_star", c.Taylor.RStar}, {"pi_star", c.Taylor.PiStar}, {"alpha_pi", c.Taylor.AlphaPi},
		{"alpha_y", c.Taylor.AlphaY}, {"gamma", c.Taylor.Gamma}, {"delta", c.Taylor.Delta},
	} {
		if math.IsNaN(coef.value) || math.IsInf(coef.value, 0) {
			return fmt.Errorf("taylor.%s must be finite", coef.name)
		}
	}

	if c.Classifier.Method != "logistic" && c.Classifier.Method != "heuristic" {
		return fmt.Errorf("classifier.method must be one of: logistic, heuristic")
	}
	if c.Classifier.Threshold <= 0 || c.Classifier.Threshold >= 1 {
		return fmt.Errorf("classifier.threshold must be between 0.0 and 1.0")
	}
	if c.Classifier.LearningRate <= 0 {
		return fmt.Errorf("classifier.learning_rate must be positive")
	}
	if c.Classifier.Iterations < 1 {
		return fmt.Errorf("classifier.iterations must be at least 1")
	}
	if c.Classifier.L2 < 0 {
		return fmt.Errorf("classifier.l2 must not be negative")
	}
	if c.Classifier.MinPerClass < 1 {
		return fmt.Errorf("classifier.min_per_class must be at least 1")
	}

	if c.Lag.MaxLag < 1 {
		return fmt.Errorf("lag.max_lag must be at least 1")
	}
	if c.Lag.MinOverlap < 3 {
		return fmt.Errorf("lag.min_overlap must be at least 3")
	}
	if c.Lag.Tolerance < 0 {
		return fmt.Errorf("lag.tolerance must not be negative")
	}

	start, err := time.Parse(time.DateOnly, c.Backtest.Start)
	if err != nil {
		return fmt.Errorf("backtest.start must be a YYYY-MM-DD date")
	}
	end, err := time.Parse(time.DateOnly, c.Backtest.End)
	if err != nil {
		return fmt.Errorf("backtest.end must be a YYYY-MM-DD date")
	}
	if end.Before(start) {
		return fmt.Errorf("backtest.end must not be before backtest.start")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.ECOS.BaseURL == "" {
		return fmt.Errorf("ecos.base_url is required")
	}
	if c.ECOS.Timeout < time.Second {
		return fmt.Errorf("ecos.timeout must be at least 1 second")
	}
	if c.ECOS.Retries < 0 {
		return fmt.Errorf("ecos.retries must not be negative")
	}
	if c.ECOS.RateLimit <= 0 {
		return fmt.Errorf("ecos.rate_limit must be positive")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Parameters returns the model parameter set described by the configuration,
// with its content version filled in. Every engine setting that changes the
// adjusted tone is part of the set, so it takes part in the version.
func (c *Config) Parameters() models.ModelParameters {
	scoring := models.ScoringParams{
		MarketWindow: c.Engine.MarketWindow,
		NewsWindow:   c.Engine.NewsWindow,
		MarketScale:  c.Engine.MarketScale,
		Indicators:   append([]models.Indicator(nil), c.Engine.Indicators...),
		MatchMode:    c.Engine.MatchMode,
		Normalize:    c.Engine.Normalize,
	}
	if len(scoring.Indicators) == 0 {
		scoring.Indicators = models.DefaultIndicators()
	}
	p := models.ModelParameters{
		Name:       c.Engine.ParameterName,
		Weights:    c.Engine.Weights,
		Scoring:    scoring,
		Taylor:     c.Taylor,
		Classifier: c.Classifier,
	}
	p.Version = p.ComputeVersion()
	return p
}

// BacktestRange returns the parsed default backtest range. Call after Validate.
func (c *Config) BacktestRange() (time.Time, time.Time) {
	start, _ := time.Parse(time.DateOnly, c.Backtest.Start)
	end, _ := time.Parse(time.DateOnly, c.Backtest.End)
	return start, end
}
