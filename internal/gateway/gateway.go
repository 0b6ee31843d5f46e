// Package gateway fans a question out to every configured evidence provider
// and merges their answers in provider priority order.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
)

// ErrNoResult is reported for providers that had not answered when the
// gather deadline passed
var ErrNoResult = errors.New("provider did not answer before the deadline")

// Entry is a provider and its priority. Lower priority values rank first.
type Entry struct {
	Provider llm.Provider
	Priority int
}

// Failure records a provider that contributed no sources
type Failure struct {
	Provider string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("provider %s: %v", f.Provider, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result holds the merged answers and the providers that failed
type Result struct {
	Answers  []model.SourceAnswer
	Failures []Failure
}

// Options configures a Gateway. Zero values are valid.
type Options struct {
	Workers  int              // Parallel fetches; defaults to the number of providers
	Limiter  *worker.Limiter  // Per-provider rate limits, keyed by provider name
	Cache    cache.Cache      // Successful answers are cached per provider and question
	CacheTTL time.Duration    // 0 uses the cache default
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Gateway queries providers in parallel
type Gateway struct {
	entries []Entry
	opts    Options
	log     *zap.Logger
}

// New creates a gateway. Entries are ordered by priority, ties keep the given order.
func New(entries []Entry, opts Options) *Gateway {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Gateway{
		entries: sorted,
		opts:    opts,
		log:     log.Named("gateway"),
	}
}

// Providers returns the entries in rank order
func (g *Gateway) Providers() []Entry {
	return append([]Entry(nil), g.entries...)
}

// FetchAnswers asks every provider for answers, each bounded by perProvider
// (0 means only ctx bounds it). The result lists answers grouped by
// provider rank with Provider and Rank set. Providers that fail, time out or
// have not answered when ctx ends are reported as failures.
func (g *Gateway) FetchAnswers(ctx context.Context, question string, perProvider time.Duration) *Result {
	res := &Result{}
	if len(g.entries) == 0 {
		return res
	}

	workers := g.opts.Workers
	if workers <= 0 || workers > len(g.entries) {
		workers = len(g.entries)
	}

	jobs := make([]worker.Job, len(g.entries))
	for rank, e := range g.entries {
		jobs[rank] = &fetchJob{
			gateway:  g,
			provider: e.Provider,
			rank:     rank,
			question: question,
			timeout:  perProvider,
		}
	}

	byRank := make([]*fetchResult, len(g.entries))
	for _, r := range worker.NewPool(ctx, workers).Run(jobs) {
		fr := r.(*fetchResult)
		byRank[fr.rank] = fr
	}

	for rank, fr := range byRank {
		name := g.entries[rank].Provider.Name()
		switch {
		case fr == nil:
			err := ctx.Err()
			if err == nil {
				err = ErrNoResult
			}
			res.Failures = append(res.Failures, Failure{Provider: name, Err: err})
		case fr.err != nil:
			res.Failures = append(res.Failures, Failure{Provider: name, Err: fr.err})
		default:
			res.Answers = append(res.Answers, fr.answers...)
		}
	}

	for _, f := range res.Failures {
		g.log.Warn("provider failed", zap.String("provider", f.Provider), zap.Error(f.Err))
	}
	g.log.Debug("gathered answers",
		zap.Int("answers", len(res.Answers)),
		zap.Int("failures", len(res.Failures)))

	return res
}

// fetchJob queries a single provider
type fetchJob struct {
	gateway  *Gateway
	provider llm.Provider
	rank     int
	question string
	timeout  time.Duration
}

type fetchResult struct {
	rank    int
	answers []model.SourceAnswer
	err     error
}

func (r *fetchResult) GetError() error {
	return r.err
}

func (j *fetchJob) Execute(ctx context.Context) worker.Result {
	g := j.gateway
	name := j.provider.Name()
	key := cache.Key(name, normalizeQuestion(j.question))

	if answers, ok := g.cached(key); ok {
		g.opts.Metrics.ObserveProviderCacheHit(name)
		return &fetchResult{rank: j.rank, answers: j.stamp(answers)}
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	if g.opts.Limiter != nil {
		if err := g.opts.Limiter.Wait(ctx, name); err != nil {
			return &fetchResult{rank: j.rank, err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	start := time.Now()
	answers, err := j.provider.FetchAnswers(ctx, j.question)
	g.opts.Metrics.ObserveProvider(name, time.Since(start), err)
	if err != nil {
		return &fetchResult{rank: j.rank, err: err}
	}

	g.store(key, answers)
	return &fetchResult{rank: j.rank, answers: j.stamp(answers)}
}

// stamp copies answers and sets provider attribution and rank
func (j *fetchJob) stamp(answers []model.SourceAnswer) []model.SourceAnswer {
	out := make([]model.SourceAnswer, len(answers))
	for i, a := range answers {
		a.Provider = j.provider.Name()
		a.Rank = j.rank
		out[i] = a
	}
	return out
}

func (g *Gateway) cached(key string) ([]model.SourceAnswer, bool) {
	if g.opts.Cache == nil {
		return nil, false
	}
	data, ok := g.opts.Cache.Get(key)
	if !ok {
		return nil, false
	}
	var answers []model.SourceAnswer
	if err := json.Unmarshal(data, &answers); err != nil || len(answers) == 0 {
		return nil, false
	}
	return answers, true
}

func (g *Gateway) store(key string, answers []model.SourceAnswer) {
	if g.opts.Cache == nil || len(answers) == 0 {
		return
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return
	}
	if err := g.opts.Cache.Set(key, data, g.opts.CacheTTL); err != nil {
		g.log.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
