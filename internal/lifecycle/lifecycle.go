// Package lifecycle owns intents and drives them through evaluation,
// challenge and settlement.
//
//	pending -> evaluated -> challenged -> settled
//	                     \-> settled (no challenge before the deadline)
//	pending | evaluated -> error
//
// All state changes are serialized. Evidence gathering and ledger
// publication run outside the lock.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/consensus"
	"github.com/ppiankov/veracity/internal/gateway"
	"github.com/ppiankov/veracity/internal/ledger"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/settlement"
	"github.com/ppiankov/veracity/internal/solver"
	"github.com/ppiankov/veracity/internal/store"
)

// Gatherer fetches answers for a question from independent providers
type Gatherer interface {
	FetchAnswers(ctx context.Context, question string, perProvider time.Duration) *gateway.Result
}

// Solver identifies who evaluates an intent and the stake they put at risk
type Solver struct {
	ID    string
	Stake model.Amount
}

// Config holds defaults and limits applied to intents
type Config struct {
	Consensus         consensus.Params
	EvaluationTimeout time.Duration // Per provider
	MaxEvaluationTime time.Duration // Whole gather phase, also capped by the deadline
	DefaultDeadline   time.Duration
	MinStake          model.Amount
}

// ConfigFromModel extracts lifecycle settings from configuration
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Consensus:         consensus.ParamsFromConfig(cfg.Consensus),
		EvaluationTimeout: cfg.Timeouts.EvaluationTimeout,
		MaxEvaluationTime: cfg.Timeouts.MaxEvaluationTime,
		DefaultDeadline:   cfg.Timeouts.DefaultDeadline,
		MinStake:          cfg.Stake.MinStake,
	}
}

// Option configures a Lifecycle
type Option func(*Lifecycle)

// WithGatherer sets the evidence source used by Evaluate
func WithGatherer(g Gatherer) Option {
	return func(l *Lifecycle) { l.gatherer = g }
}

// WithChain publishes records after each transition
func WithChain(c ledger.Client) Option {
	return func(l *Lifecycle) { l.chain = c }
}

// WithSolvers checks solver eligibility and tracks reputation at settlement
func WithSolvers(r *solver.Registry) Option {
	return func(l *Lifecycle) { l.solvers = r }
}

// WithMetrics records transition counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(l *Lifecycle) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source for deadlines and timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// Lifecycle is the only component that mutates intents
type Lifecycle struct {
	mu       sync.Mutex
	store    store.Store
	cfg      Config
	engine   *consensus.Engine
	calc     *settlement.Calculator
	gatherer Gatherer
	chain    ledger.Client
	solvers  *solver.Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
	inflight map[string]*gather
}

// gather is an evidence fetch in progress for one intent
type gather struct {
	cancel context.CancelFunc
}

// New creates a lifecycle over st
func New(st store.Store, cfg Config, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:    st,
		cfg:      cfg,
		log:      zap.NewNop(),
		now:      time.Now,
		inflight: make(map[string]*gather),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.Named("lifecycle")
	l.engine = consensus.New(consensus.WithClock(l.now))
	l.calc = settlement.New(settlement.WithClock(l.now))
	return l
}

// Create registers a new pending credibility intent. Unset fields take the
// configured defaults.
func (l *Lifecycle) Create(ctx context.Context, spec model.CredibilitySpec) (*model.Intent, error) {
	question := strings.TrimSpace(spec.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}

	params := l.cfg.Consensus
	if spec.RequiredSources < 0 {
		return nil, fmt.Errorf("%w: required sources must be >= 1, got %d", ErrInvalidRequest, spec.RequiredSources)
	}
	if spec.RequiredSources > 0 {
		params.RequiredSources = spec.RequiredSources
	}
	if spec.ConfidenceThreshold != nil {
		params.ConfidenceThreshold = *spec.ConfidenceThreshold
	}
	if spec.Algorithm != "" {
		params.Algorithm = spec.Algorithm
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := l.now().UTC()
	deadline := spec.Deadline.UTC()
	if spec.Deadline.IsZero() {
		deadline = now.Add(l.cfg.DefaultDeadline)
	}
	if !deadline.After(now) {
		return nil, fmt.Errorf("%w: deadline %s is not in the future", ErrInvalidRequest, deadline.Format(time.RFC3339))
	}

	intent := &model.Intent{
		ID:                  uuid.NewString(),
		Type:                model.IntentCredibilityEvaluation,
		Initiator:           spec.Initiator,
		Question:            question,
		RequiredSources:     params.RequiredSources,
		ConfidenceThreshold: params.ConfidenceThreshold,
		Algorithm:           params.Algorithm,
		Deadline:            deadline,
		Reward:              spec.Reward,
		Status:              model.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	l.mu.Lock()
	err := l.store.Put(ctx, intent)
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store intent: %w", err)
	}

	l.log.Info("intent created",
		zap.String("intent", intent.ID),
		zap.Int("required_sources", intent.RequiredSources),
		zap.Time("deadline", intent.Deadline))
	return intent.Clone(), nil
}

// Submit dispatches a request by intent variant
func (l *Lifecycle) Submit(ctx context.Context, spec model.IntentSpec) (*model.Intent, error) {
	switch s := spec.(type) {
	case model.CredibilitySpec:
		return l.Create(ctx, s)
	case *model.CredibilitySpec:
		if s != nil {
			return l.Create(ctx, *s)
		}
	case model.ChallengeSpec:
		return l.Challenge(ctx, s)
	case *model.ChallengeSpec:
		if s != nil {
			return l.Challenge(ctx, *s)
		}
	case model.SettlementSpec:
		return l.Settle(ctx, s.IntentID)
	case *model.SettlementSpec:
		if s != nil {
			return l.Settle(ctx, s.IntentID)
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownIntentType, spec)
}

// Get returns a copy of an intent
func (l *Lifecycle) Get(ctx context.Context, id string) (*model.Intent, error) {
	return l.load(ctx, id)
}

// List returns intents with the given status, or all when status is empty
func (l *Lifecycle) List(ctx context.Context, status model.IntentStatus) ([]*model.Intent, error) {
	return l.store.List(ctx, status)
}

// Expire moves pending intents whose deadline has passed to error
func (l *Lifecycle) Expire(ctx context.Context) ([]*model.Intent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending, err := l.store.List(ctx, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}

	now := l.now()
	var expired []*model.Intent
	for _, intent := range pending {
		if now.Before(intent.Deadline) {
			continue
		}
		if err := l.expire(ctx, intent, now); err != nil {
			return expired, err
		}
		expired = append(expired, intent.Clone())
	}
	return expired, nil
}

// expire fails a pending intent whose deadline passed. Caller holds mu.
func (l *Lifecycle) expire(ctx context.Context, intent *model.Intent, now time.Time) error {
	if err := transition(intent, model.StatusError); err != nil {
		return err
	}
	intent.Failure = model.FailureDeadlineExceeded
	intent.UpdatedAt = now.UTC()
	l.cancelGather(intent.ID)

	if err := l.store.Put(ctx, intent); err != nil {
		return fmt.Errorf("store intent: %w", err)
	}
	l.metrics.ObserveEvaluation(string(model.EvaluationError), string(model.FailureDeadlineExceeded), 0)
	l.log.Info("intent expired", zap.String("intent", intent.ID))
	return nil
}

// load reads an intent, mapping store misses to ErrNotFound
func (l *Lifecycle) load(ctx context.Context, id string) (*model.Intent, error) {
	intent, err := l.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load intent: %w", err)
	}
	return intent, nil
}

// cancelGather stops an in-flight fetch for id. Caller holds mu.
func (l *Lifecycle) cancelGather(id string) {
	if g, ok := l.inflight[id]; ok {
		g.cancel()
		delete(l.inflight, id)
	}
}

func (l *Lifecycle) params(intent *model.Intent) consensus.Params {
	return consensus.Params{
		RequiredSources:     intent.RequiredSources,
		ConfidenceThreshold: intent.ConfidenceThreshold,
		Algorithm:           intent.Algorithm,
	}
}

// QuestionEvaluator creates and evaluates one intent per question.
// It satisfies worker.Evaluator for batch runs.
type QuestionEvaluator struct {
	Lifecycle *Lifecycle
	Solver    Solver
	Spec      model.CredibilitySpec // Template; Question is replaced
}

// EvaluateQuestion creates an intent for question and evaluates it
func (q QuestionEvaluator) EvaluateQuestion(ctx context.Context, question string) (*model.Intent, error) {
	spec := q.Spec
	spec.Question = question
	intent, err := q.Lifecycle.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	return q.Lifecycle.Evaluate(ctx, intent.ID, q.Solver)
}
