package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/gateway"
	"github.com/ppiankov/veracity/internal/ledger"
	"github.com/ppiankov/veracity/internal/lifecycle"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/solver"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/validate"
	"github.com/ppiankov/veracity/internal/worker"
)

// app holds everything a command needs. Build it with newApp and Close it
// when the command is done.
type app struct {
	cfg         *model.Config
	log         *zap.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	store       store.Store
	chain       ledger.Ledger
	gateway     *gateway.Gateway
	solvers     *solver.Registry
	reliability *validate.ReliabilityClassifier
	lifecycle   *lifecycle.Lifecycle
}

// newApp loads configuration and opens storage, ledger and providers
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	log, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		registry:    prometheus.NewRegistry(),
		reliability: validate.NewReliabilityClassifier(&cfg.Reliability),
	}
	a.metrics = metrics.New(a.registry)

	if a.store, err = openStore(ctx, cfg.Store); err != nil {
		_ = a.Close()
		return nil, err
	}

	ledgerCfg := cfg.Ledger
	if ledgerCfg.Driver == "sqlite" {
		if ledgerCfg.DSN, err = prepareSQLitePath(ledgerCfg.DSN); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if a.chain, err = ledger.Open(ctx, ledgerCfg); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	a.gateway = a.buildGateway()

	if len(cfg.Solvers) > 0 {
		a.solvers = solver.NewRegistry(cfg.Stake.MinStake)
		for _, s := range cfg.Solvers {
			if _, err := a.solvers.Register(s.ID, s.Stake); err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("register solver %s: %w", s.ID, err)
			}
		}
	}

	opts := []lifecycle.Option{
		lifecycle.WithChain(a.chain),
		lifecycle.WithMetrics(a.metrics),
		lifecycle.WithLogger(log),
	}
	if len(a.gateway.Providers()) > 0 {
		opts = append(opts, lifecycle.WithGatherer(a.gateway))
	}
	if a.solvers != nil {
		opts = append(opts, lifecycle.WithSolvers(a.solvers))
	}
	a.lifecycle = lifecycle.New(a.store, lifecycle.ConfigFromModel(cfg), opts...)

	return a, nil
}

// buildGateway creates every configured provider. Providers that cannot be
// built, usually for a missing API key, are skipped with a warning.
func (a *app) buildGateway() *gateway.Gateway {
	limiter := worker.NewLimiter(0, 0)
	var entries []gateway.Entry
	for _, pc := range a.cfg.Providers {
		p, err := llm.NewProvider(llm.ConfigFromModel(pc, a.cfg.HTTP))
		if err != nil {
			a.log.Warn("provider unavailable", zap.String("provider", pc.Name), zap.Error(err))
			continue
		}
		if pc.Rate > 0 {
			limiter.SetRate(p.Name(), pc.Rate, pc.Burst)
		}
		entries = append(entries, gateway.Entry{Provider: p, Priority: pc.Priority})
	}

	return gateway.New(entries, gateway.Options{
		Workers:  a.cfg.Concurrency.Workers,
		Limiter:  limiter,
		Cache:    cache.New(a.cfg.Cache),
		CacheTTL: a.cfg.Cache.MemoryTTL,
		Logger:   a.log,
		Metrics:  a.metrics,
	})
}

// Close releases storage and flushes the logger
func (a *app) Close() error {
	var errs []error
	if a.chain != nil {
		errs = append(errs, a.chain.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg model.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		dsn, err := prepareSQLitePath(cfg.DSN)
		if err != nil {
			return nil, err
		}
		s, err := store.Open(ctx, "sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open intent store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := store.Open(ctx, "postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open intent store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// prepareSQLitePath expands ~ and creates the parent directory of a file DSN
func prepareSQLitePath(dsn string) (string, error) {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error finding home directory: %w", err)
		}
		dsn = filepath.Join(home, strings.TrimPrefix(dsn, "~"))
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dsn, nil
}
