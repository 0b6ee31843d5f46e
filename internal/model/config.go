package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds engine, provider and storage settings
type Config struct {
	Consensus   ConsensusConfig   `yaml:"consensus" mapstructure:"consensus"`
	Timeouts    TimeoutConfig     `yaml:"timeouts" mapstructure:"timeouts"`
	Stake       StakeConfig       `yaml:"stake" mapstructure:"stake"`
	Providers   []ProviderConfig  `yaml:"providers" mapstructure:"providers"`
	Solvers     []SolverConfig    `yaml:"solvers,omitempty" mapstructure:"solvers"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Reliability ReliabilityConfig `yaml:"reliability" mapstructure:"reliability"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
}

// ConsensusConfig are the defaults applied to new intents
type ConsensusConfig struct {
	RequiredSources     int       `yaml:"required_sources" mapstructure:"required_sources"`
	ConfidenceThreshold float64   `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	Algorithm           Algorithm `yaml:"algorithm" mapstructure:"algorithm"`
}

// TimeoutConfig bounds evidence gathering and challenge windows
type TimeoutConfig struct {
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout" mapstructure:"evaluation_timeout"`   // Per provider
	MaxEvaluationTime time.Duration `yaml:"max_evaluation_time" mapstructure:"max_evaluation_time"` // Whole gather phase
	DefaultDeadline   time.Duration `yaml:"default_deadline" mapstructure:"default_deadline"`       // Added to creation time
}

// StakeConfig holds staking requirements for solvers
type StakeConfig struct {
	MinStake Amount `yaml:"min_stake" mapstructure:"min_stake"`
}

// ProviderConfig configures one evidence provider
type ProviderConfig struct {
	Name      string        `yaml:"name" mapstructure:"name"`
	Kind      string        `yaml:"kind" mapstructure:"kind"` // openai, anthropic, ollama, static
	Model     string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	File      string        `yaml:"file,omitempty" mapstructure:"file"` // static provider answers
	Priority  int           `yaml:"priority" mapstructure:"priority"`   // Lower wins dedup ties
	Rate      float64       `yaml:"rate,omitempty" mapstructure:"rate"` // Requests per second, 0 = unlimited
	Burst     int           `yaml:"burst,omitempty" mapstructure:"burst"`
	Timeout   time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
}

// SolverConfig registers an evaluator at startup. When no solvers are
// configured, any solver meeting stake.min_stake may evaluate.
type SolverConfig struct {
	ID    string `yaml:"id" mapstructure:"id"`
	Stake Amount `yaml:"stake" mapstructure:"stake"`
}

// CacheConfig controls provider answer caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LedgerConfig selects where records are published
type LedgerConfig struct {
	Driver    string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres, redis
	DSN       string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	RedisAddr string `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisDB   int    `yaml:"redis_db,omitempty" mapstructure:"redis_db"`
}

// StoreConfig selects where intents are persisted
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DSN    string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// ReliabilityConfig extends the built-in domain reliability table
type ReliabilityConfig struct {
	High   []string `yaml:"high,omitempty" mapstructure:"high"`
	Medium []string `yaml:"medium,omitempty" mapstructure:"medium"`
}

// ConcurrencyConfig holds parallelism settings
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// HTTPConfig holds outbound HTTP settings for providers
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Consensus: ConsensusConfig{
			RequiredSources:     3,
			ConfidenceThreshold: 0.7,
			Algorithm:           AlgorithmMedian,
		},
		Timeouts: TimeoutConfig{
			EvaluationTimeout: 30 * time.Second,
			MaxEvaluationTime: 2 * time.Minute,
			DefaultDeadline:   24 * time.Hour,
		},
		Stake: StakeConfig{
			MinStake: NewAmount(0),
		},
		Providers: []ProviderConfig{
			{Name: "openai", Kind: "openai", Model: "gpt-4o-mini", Priority: 0, Rate: 2, Burst: 2, MaxTokens: 1500},
			{Name: "anthropic", Kind: "anthropic", Model: "claude-3-5-haiku-latest", Priority: 1, Rate: 2, Burst: 2, MaxTokens: 1500},
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.veracity/cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Ledger: LedgerConfig{
			Driver: "sqlite",
			DSN:    "~/.veracity/ledger.db",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "~/.veracity/intents.db",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var errs []error
	if c.Consensus.RequiredSources < 1 {
		errs = append(errs, fmt.Errorf("consensus.required_sources must be >= 1, got %d", c.Consensus.RequiredSources))
	}
	if t := c.Consensus.ConfidenceThreshold; t < 0 || t > 1 || math.IsNaN(t) {
		errs = append(errs, fmt.Errorf("consensus.confidence_threshold must be in [0,1], got %v", t))
	}
	if !c.Consensus.Algorithm.Valid() {
		errs = append(errs, fmt.Errorf("consensus.algorithm: unknown algorithm %q", c.Consensus.Algorithm))
	}
	if c.Timeouts.EvaluationTimeout <= 0 {
		errs = append(errs, errors.New("timeouts.evaluation_timeout must be positive"))
	}
	if c.Timeouts.MaxEvaluationTime <= 0 {
		errs = append(errs, errors.New("timeouts.max_evaluation_time must be positive"))
	}
	if c.Timeouts.DefaultDeadline <= 0 {
		errs = append(errs, errors.New("timeouts.default_deadline must be positive"))
	}
	if c.Concurrency.Workers < 1 {
		errs = append(errs, fmt.Errorf("concurrency.workers must be >= 1, got %d", c.Concurrency.Workers))
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.Rate < 0 {
			errs = append(errs, fmt.Errorf("providers[%d]: rate must be >= 0", i))
		}
	}
	solvers := make(map[string]bool, len(c.Solvers))
	for i, s := range c.Solvers {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Errorf("solvers[%d]: id is required", i))
		case solvers[s.ID]:
			errs = append(errs, fmt.Errorf("solvers[%d]: duplicate id %q", i, s.ID))
		case c.Stake.MinStake.Gt(s.Stake):
			errs = append(errs, fmt.Errorf("solvers[%d]: stake %s below stake.min_stake %s", i, s.Stake, c.Stake.MinStake))
		}
		solvers[s.ID] = true
	}
	switch c.Ledger.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("ledger.driver: unsupported driver %q", c.Ledger.Driver))
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}
