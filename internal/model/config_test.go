package model

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero sources", func(c *Config) { c.Consensus.RequiredSources = 0 }, "required_sources"},
		{"threshold above one", func(c *Config) { c.Consensus.ConfidenceThreshold = 1.01 }, "confidence_threshold"},
		{"unknown algorithm", func(c *Config) { c.Consensus.Algorithm = "mode" }, "algorithm"},
		{"zero evaluation timeout", func(c *Config) { c.Timeouts.EvaluationTimeout = 0 }, "evaluation_timeout"},
		{"negative deadline", func(c *Config) { c.Timeouts.DefaultDeadline = -time.Hour }, "default_deadline"},
		{"no workers", func(c *Config) { c.Concurrency.Workers = 0 }, "workers"},
		{"unnamed provider", func(c *Config) { c.Providers[0].Name = "" }, "name is required"},
		{"duplicate provider", func(c *Config) { c.Providers[1].Name = c.Providers[0].Name }, "duplicate name"},
		{"negative rate", func(c *Config) { c.Providers[0].Rate = -1 }, "rate"},
		{"solver without id", func(c *Config) { c.Solvers = []SolverConfig{{Stake: NewAmount(1)}} }, "id is required"},
		{"duplicate solver", func(c *Config) {
			c.Solvers = []SolverConfig{{ID: "a"}, {ID: "a"}}
		}, "duplicate id"},
		{"solver below minimum", func(c *Config) {
			c.Stake.MinStake = NewAmount(10)
			c.Solvers = []SolverConfig{{ID: "a", Stake: NewAmount(5)}}
		}, "below stake.min_stake"},
		{"ledger driver", func(c *Config) { c.Ledger.Driver = "etcd" }, "ledger.driver"},
		{"store driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
