// Package settlement turns a verdict and challenge outcome into reward and
// slashing distributions.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/hashing"
	"github.com/ppiankov/veracity/internal/model"
)

var (
	// ErrInvariantViolation means a distribution would create value. It
	// signals a bug and the settlement must never be published.
	ErrInvariantViolation = errors.New("settlement invariant violation")

	ErrInvalidWinner     = errors.New("invalid winner")
	ErrMissingChallenge  = errors.New("winner requires a challenge")
	ErrMissingAccount    = errors.New("missing account")
	ErrMissingEvaluation = errors.New("missing evaluation")
)

// Party is an account with value at risk
type Party struct {
	Account string
	Stake   model.Amount
}

// Stakes is everything under dispute for one intent
type Stakes struct {
	Reward     model.Amount
	Initiator  string // Receives the reward back on a tie
	Evaluator  Party
	Challenger Party // Zero without a challenge
}

// StakesFor derives the disputed stakes from the evaluation and challenge
func StakesFor(ev *model.Evaluation, ch *model.RefutationChallenge, reward model.Amount, initiator string) Stakes {
	s := Stakes{
		Reward:    reward,
		Initiator: initiator,
		Evaluator: Party{Account: ev.SolverID, Stake: ev.Stake},
	}
	if ch != nil {
		s.Challenger = Party{Account: ch.Challenger, Stake: ch.Stake}
	}
	return s
}

// Pool is the total value under dispute
func (s Stakes) Pool() (model.Amount, bool) {
	return model.Sum(s.Reward, s.Evaluator.Stake, s.Challenger.Stake)
}

// Calculator computes settlements
type Calculator struct {
	now func() time.Time
}

// Option configures a Calculator
type Option func(*Calculator)

// WithClock overrides the settlement timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// New creates a calculator
func New(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settle builds the settlement record for a resolved intent.
//
//	evaluator, no challenge   evaluator <- reward
//	evaluator, challenged     evaluator <- reward + challenger stake; challenger stake slashed
//	challenger                challenger <- reward + evaluator stake; evaluator stake slashed
//	tie                       stakes returned to owners, reward refunded to initiator
//
// The record is hashed only after the conservation check passes.
func (c *Calculator) Settle(ev *model.Evaluation, ch *model.RefutationChallenge, winner model.Winner, stakes Stakes) (*model.Settlement, error) {
	if ev == nil {
		return nil, ErrMissingEvaluation
	}

	d := newDistribution()
	switch winner {
	case model.WinnerEvaluator:
		if ch == nil {
			d.reward(stakes.Evaluator.Account, stakes.Reward)
			break
		}
		d.reward(stakes.Evaluator.Account, stakes.Reward, stakes.Challenger.Stake)
		d.slash(stakes.Challenger.Account, stakes.Challenger.Stake)
	case model.WinnerChallenger:
		if ch == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingChallenge, winner)
		}
		d.reward(stakes.Challenger.Account, stakes.Reward, stakes.Evaluator.Stake)
		d.slash(stakes.Evaluator.Account, stakes.Evaluator.Stake)
	case model.WinnerTie:
		d.reward(stakes.Evaluator.Account, stakes.Evaluator.Stake)
		if ch != nil {
			d.reward(stakes.Challenger.Account, stakes.Challenger.Stake)
		}
		d.reward(stakes.Initiator, stakes.Reward)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidWinner, winner)
	}
	if d.err != nil {
		return nil, d.err
	}

	s := &model.Settlement{
		EvaluationHash:       ev.Hash,
		Winner:               winner,
		RewardDistribution:   d.rewards,
		SlashingDistribution: d.slashes,
		Timestamp:            c.now().UTC(),
	}
	if ch != nil {
		s.ChallengeHash = ch.Hash
	}

	if err := CheckConservation(s, stakes); err != nil {
		return nil, err
	}

	hash, err := hashing.SettlementHash(s)
	if err != nil {
		return nil, fmt.Errorf("hash settlement: %w", err)
	}
	s.Hash = hash
	return s, nil
}

// CheckConservation verifies that no value is created. Slashed stake moves
// to the winner, so it appears in both mappings and the two sums are bounded
// separately:
//
//	sum(rewards)  <= reward + evaluator stake + challenger stake
//	sum(slashing) <= evaluator stake + challenger stake, per party <= its stake
//	sum(rewards)  <= reward + sum(slashing) + refunded stakes (tie only)
//
// The last bound limits the net payout to the reward plus value taken from
// the losing side.
func CheckConservation(s *model.Settlement, stakes Stakes) error {
	pool, ok := stakes.Pool()
	if !ok {
		return fmt.Errorf("%w: stake pool overflows", ErrInvariantViolation)
	}
	staked, ok := model.Sum(stakes.Evaluator.Stake, stakes.Challenger.Stake)
	if !ok {
		return fmt.Errorf("%w: stakes overflow", ErrInvariantViolation)
	}

	rewards, ok := sumMap(s.RewardDistribution)
	if !ok {
		return fmt.Errorf("%w: reward distribution overflows", ErrInvariantViolation)
	}
	slashes, ok := sumMap(s.SlashingDistribution)
	if !ok {
		return fmt.Errorf("%w: slashing distribution overflows", ErrInvariantViolation)
	}

	if rewards.Gt(pool) {
		return fmt.Errorf("%w: rewards %s exceed pool %s", ErrInvariantViolation, rewards, pool)
	}
	if slashes.Gt(staked) {
		return fmt.Errorf("%w: slashing %s exceeds stakes %s", ErrInvariantViolation, slashes, staked)
	}
	if err := checkSlashedParties(s.SlashingDistribution, stakes); err != nil {
		return err
	}

	var refunded model.Amount
	if s.Winner == model.WinnerTie {
		refunded = staked
	}
	limit, ok := model.Sum(stakes.Reward, slashes, refunded)
	if !ok {
		return fmt.Errorf("%w: payout limit overflows", ErrInvariantViolation)
	}
	if rewards.Gt(limit) {
		return fmt.Errorf("%w: rewards %s exceed reward plus forfeited stake %s", ErrInvariantViolation, rewards, limit)
	}
	return nil
}

// checkSlashedParties requires every slashed account to be a staked party
// losing at most its own stake
func checkSlashedParties(slashes map[string]model.Amount, stakes Stakes) error {
	for account, amount := range slashes {
		var held model.Amount
		for _, p := range []Party{stakes.Evaluator, stakes.Challenger} {
			if p.Account != "" && p.Account == account {
				held, _ = held.Add(p.Stake)
			}
		}
		if amount.Gt(held) {
			return fmt.Errorf("%w: %s slashed %s but staked %s", ErrInvariantViolation, account, amount, held)
		}
	}
	return nil
}

func sumMap(m map[string]model.Amount) (model.Amount, bool) {
	var total model.Amount
	for _, v := range m {
		var overflow bool
		total, overflow = total.Add(v)
		if overflow {
			return model.Amount{}, false
		}
	}
	return total, true
}

// distribution accumulates per-account amounts; zero amounts are skipped
type distribution struct {
	rewards map[string]model.Amount
	slashes map[string]model.Amount
	err     error
}

func newDistribution() *distribution {
	return &distribution{
		rewards: make(map[string]model.Amount),
		slashes: make(map[string]model.Amount),
	}
}

func (d *distribution) reward(account string, amounts ...model.Amount) {
	d.add(d.rewards, account, amounts)
}

func (d *distribution) slash(account string, amounts ...model.Amount) {
	d.add(d.slashes, account, amounts)
}

func (d *distribution) add(m map[string]model.Amount, account string, amounts []model.Amount) {
	if d.err != nil {
		return
	}
	total, ok := model.Sum(amounts...)
	if !ok {
		d.err = fmt.Errorf("%w: amount overflow for %s", ErrInvariantViolation, account)
		return
	}
	if total.IsZero() {
		return
	}
	if account == "" {
		d.err = fmt.Errorf("%w: %s has no owner", ErrMissingAccount, total)
		return
	}
	next, overflow := m[account].Add(total)
	if overflow {
		d.err = fmt.Errorf("%w: amount overflow for %s", ErrInvariantViolation, account)
		return
	}
	m[account] = next
}
