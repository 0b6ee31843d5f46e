package settlement

import (
	"math/big"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/hashing"
	"github.com/ppiankov/veracity/internal/model"
)

const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

var fixedNow = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func fixture(reward, evalStake, challengeStake uint64) (*model.Evaluation, *model.RefutationChallenge, Stakes) {
	ev := &model.Evaluation{Hash: "evhash", SolverID: "solver", Stake: model.NewAmount(evalStake)}
	ch := &model.RefutationChallenge{Hash: "chhash", EvaluationHash: "evhash", Challenger: "challenger", Stake: model.NewAmount(challengeStake)}
	return ev, ch, StakesFor(ev, ch, model.NewAmount(reward), "initiator")
}

func amounts(m map[string]model.Amount) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}

func TestSettle_Rules(t *testing.T) {
	calc := New(WithClock(func() time.Time { return fixedNow }))

	tests := []struct {
		name       string
		winner     model.Winner
		challenged bool
		rewards    map[string]string
		slashes    map[string]string
	}{
		{
			name:    "evaluator unchallenged",
			winner:  model.WinnerEvaluator,
			rewards: map[string]string{"solver": "100"},
			slashes: map[string]string{},
		},
		{
			name:       "evaluator defends challenge",
			winner:     model.WinnerEvaluator,
			challenged: true,
			rewards:    map[string]string{"solver": "150"},
			slashes:    map[string]string{"challenger": "50"},
		},
		{
			name:       "challenger wins",
			winner:     model.WinnerChallenger,
			challenged: true,
			rewards:    map[string]string{"challenger": "130"},
			slashes:    map[string]string{"solver": "30"},
		},
		{
			name:       "tie returns stakes",
			winner:     model.WinnerTie,
			challenged: true,
			rewards:    map[string]string{"solver": "30", "challenger": "50", "initiator": "100"},
			slashes:    map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ch, stakes := fixture(100, 30, 50)
			if !tt.challenged {
				ch = nil
				stakes = StakesFor(ev, nil, model.NewAmount(100), "initiator")
			}

			s, err := calc.Settle(ev, ch, tt.winner, stakes)

			require.NoError(t, err)
			assert.Equal(t, tt.winner, s.Winner)
			assert.Equal(t, tt.rewards, amounts(s.RewardDistribution))
			assert.Equal(t, tt.slashes, amounts(s.SlashingDistribution))
			assert.Equal(t, "evhash", s.EvaluationHash)
			assert.Equal(t, fixedNow, s.Timestamp)
			if tt.challenged {
				assert.Equal(t, "chhash", s.ChallengeHash)
			} else {
				assert.Empty(t, s.ChallengeHash)
			}
			assert.NoError(t, hashing.VerifySettlement(s))
		})
	}
}

func TestSettle_TieCollidingAccountsAccumulate(t *testing.T) {
	calc := New()
	ev, _, _ := fixture(100, 30, 50)
	stakes := StakesFor(ev, nil, model.NewAmount(100), "solver")

	s, err := calc.Settle(ev, nil, model.WinnerTie, stakes)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"solver": "130"}, amounts(s.RewardDistribution))
}

func TestSettle_ZeroAmountsSkipped(t *testing.T) {
	calc := New()
	ev, ch, stakes := fixture(0, 0, 10)

	s, err := calc.Settle(ev, ch, model.WinnerChallenger, stakes)

	require.NoError(t, err)
	assert.Empty(t, s.RewardDistribution)
	assert.Empty(t, s.SlashingDistribution)
	assert.NotNil(t, s.RewardDistribution)
	assert.NotNil(t, s.SlashingDistribution)
}

func TestSettle_Errors(t *testing.T) {
	calc := New()
	ev, ch, stakes := fixture(100, 30, 50)

	_, err := calc.Settle(ev, nil, model.WinnerChallenger, stakes)
	assert.ErrorIs(t, err, ErrMissingChallenge)

	_, err = calc.Settle(ev, ch, "draw", stakes)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	_, err = calc.Settle(nil, ch, model.WinnerEvaluator, stakes)
	assert.ErrorIs(t, err, ErrMissingEvaluation)

	noOwner := stakes
	noOwner.Evaluator.Account = ""
	_, err = calc.Settle(ev, nil, model.WinnerEvaluator, noOwner)
	assert.ErrorIs(t, err, ErrMissingAccount)
}

func TestSettle_OverflowIsInvariantViolation(t *testing.T) {
	calc := New()
	ev, ch, stakes := fixture(0, 30, 50)
	stakes.Reward = model.MustAmount(maxUint256)

	_, err := calc.Settle(ev, ch, model.WinnerEvaluator, stakes)

	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestCheckConservation(t *testing.T) {
	_, _, stakes := fixture(100, 30, 50)
	amt := model.NewAmount

	tests := []struct {
		name    string
		winner  model.Winner
		rewards map[string]model.Amount
		slashes map[string]model.Amount
		wantErr bool
	}{
		{"tie pays out the whole pool", model.WinnerTie, map[string]model.Amount{"a": amt(180)}, nil, false},
		{"rewards exceed pool", model.WinnerTie, map[string]model.Amount{"a": amt(150), "b": amt(31)}, nil, true},
		{"slashing exceeds stakes", model.WinnerChallenger, nil, map[string]model.Amount{"solver": amt(30), "challenger": amt(51)}, true},
		{"forfeited stake paid to winner", model.WinnerEvaluator,
			map[string]model.Amount{"solver": amt(150)}, map[string]model.Amount{"challenger": amt(50)}, false},
		{"payout without forfeit", model.WinnerEvaluator, map[string]model.Amount{"solver": amt(150)}, nil, true},
		{"stakes kept outside a tie", model.WinnerChallenger, map[string]model.Amount{"challenger": amt(180)}, map[string]model.Amount{"solver": amt(30)}, true},
		{"slashing a non-party", model.WinnerEvaluator,
			map[string]model.Amount{"solver": amt(110)}, map[string]model.Amount{"initiator": amt(10)}, true},
		{"slashing more than own stake", model.WinnerEvaluator,
			map[string]model.Amount{"solver": amt(140)}, map[string]model.Amount{"solver": amt(40)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &model.Settlement{Winner: tt.winner, RewardDistribution: tt.rewards, SlashingDistribution: tt.slashes}
			err := CheckConservation(s, stakes)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvariantViolation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func bigSum(m map[string]model.Amount) *big.Int {
	total := new(big.Int)
	for _, v := range m {
		n, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			panic("bad amount " + v.String())
		}
		total.Add(total, n)
	}
	return total
}

func bigOf(vs ...uint64) *big.Int {
	total := new(big.Int)
	for _, v := range vs {
		total.Add(total, new(big.Int).SetUint64(v))
	}
	return total
}

// Totals are recomputed with math/big from the inputs, independently of the
// calculator's own uint256 bookkeeping.
func TestSettle_NeverCreatesValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	calc := New()
	winners := []model.Winner{model.WinnerEvaluator, model.WinnerChallenger, model.WinnerTie}

	properties.Property("payouts match the winner's rule and stay within the pool", prop.ForAll(
		func(reward, evalStake, extra uint64, winnerIdx int) bool {
			e := evalStake >> 1
			c := e + (extra >> 1) + 1
			ev, ch, stakes := fixture(reward, e, c)
			s, err := calc.Settle(ev, ch, winners[winnerIdx], stakes)
			if err != nil {
				return false
			}

			rewards, slashes := bigSum(s.RewardDistribution), bigSum(s.SlashingDistribution)
			pool := bigOf(reward, e, c)
			if rewards.Cmp(pool) > 0 || slashes.Cmp(bigOf(e, c)) > 0 {
				return false
			}

			var wantRewards, wantSlashes *big.Int
			switch s.Winner {
			case model.WinnerEvaluator:
				wantRewards, wantSlashes = bigOf(reward, c), bigOf(c)
			case model.WinnerChallenger:
				wantRewards, wantSlashes = bigOf(reward, e), bigOf(e)
			case model.WinnerTie:
				wantRewards, wantSlashes = pool, bigOf()
			}
			if rewards.Cmp(wantRewards) != 0 || slashes.Cmp(wantSlashes) != 0 {
				return false
			}

			// Net payout beyond refunded stakes never exceeds reward plus forfeited stake
			net := new(big.Int).Sub(rewards, slashes)
			if s.Winner == model.WinnerTie {
				net.Sub(net, bigOf(e, c))
			}
			return net.Cmp(bigOf(reward)) <= 0
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.UInt64(),
		gen.IntRange(0, len(winners)-1),
	))

	properties.TestingRun(t)
}
