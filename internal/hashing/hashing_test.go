package hashing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func TestCanonical_SortsKeysAndSkipsHTMLEscaping(t *testing.T) {
	got, err := Canonical(map[string]any{
		"b": 1.0,
		"a": "<x>",
		"c": map[string]any{"z": true, "y": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1,"c":{"y":null,"z":true}}`, string(got))
}

func TestDigest_KnownValue(t *testing.T) {
	got, err := Digest(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a", got)
}

func TestDigestJSON_KeyOrderIrrelevant(t *testing.T) {
	a, err := DigestJSON([]byte(`{"question":"q","answer":true,"sources":[{"url":"u","title":"t"}]}`))
	require.NoError(t, err)
	b, err := DigestJSON([]byte(`{ "sources":[{"title":"t","url":"u"}], "answer":true, "question":"q" }`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDigestJSON_RejectsInvalid(t *testing.T) {
	_, err := DigestJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestEvaluationHash_SensitiveToContent(t *testing.T) {
	sources := []model.Source{{Title: "A", URL: "https://a.org"}, {Title: "B", URL: "https://b.org"}}

	base, err := EvaluationHash("Is water wet?", sources, true)
	require.NoError(t, err)
	assert.Len(t, base, 64)

	flipped, err := EvaluationHash("Is water wet?", sources, false)
	require.NoError(t, err)
	assert.NotEqual(t, base, flipped)

	other, err := EvaluationHash("Is fire wet?", sources, true)
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	fewer, err := EvaluationHash("Is water wet?", sources[:1], true)
	require.NoError(t, err)
	assert.NotEqual(t, base, fewer)
}

func TestEvaluationHash_SourceOrderIrrelevant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("permuting sources keeps the hash", prop.ForAll(
		func(urls []string, seed int64, answer bool) bool {
			sources := make([]model.Source, len(urls))
			for i, u := range urls {
				sources[i] = model.Source{Title: "t" + u, URL: "https://" + u + ".org"}
			}
			shuffled := append([]model.Source{}, sources...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			h1, err1 := EvaluationHash("question", sources, answer)
			h2, err2 := EvaluationHash("question", shuffled, answer)
			return err1 == nil && err2 == nil && h1 == h2
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Int64(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestEvaluationHash_DoesNotMutateInput(t *testing.T) {
	sources := []model.Source{{Title: "Z", URL: "https://z.org"}, {Title: "A", URL: "https://a.org"}}
	_, err := EvaluationHash("q", sources, true)
	require.NoError(t, err)
	assert.Equal(t, "Z", sources[0].Title)
}

func TestSettlementHash_IgnoresOwnHash(t *testing.T) {
	s := &model.Settlement{
		EvaluationHash:       "abc",
		Winner:               model.WinnerEvaluator,
		RewardDistribution:   map[string]model.Amount{"solver.near": model.NewAmount(100)},
		SlashingDistribution: map[string]model.Amount{},
		Timestamp:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	h1, err := SettlementHash(s)
	require.NoError(t, err)

	s.Hash = h1
	h2, err := SettlementHash(s)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NoError(t, VerifySettlement(s))

	s.RewardDistribution["solver.near"] = model.NewAmount(101)
	assert.ErrorIs(t, VerifySettlement(s), ErrMismatch)
}

func TestSettlementHash_TimezoneIrrelevant(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &model.Settlement{EvaluationHash: "e", Winner: model.WinnerTie, Timestamp: ts}
	b := &model.Settlement{EvaluationHash: "e", Winner: model.WinnerTie, Timestamp: ts.In(time.FixedZone("X", 3600))}

	ha, err := SettlementHash(a)
	require.NoError(t, err)
	hb, err := SettlementHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestChallengeHash_RoundTrip(t *testing.T) {
	c := &model.RefutationChallenge{
		EvaluationHash: "e",
		Challenger:     "bob",
		Stake:          model.MustAmount("1000000000000000000000000"),
		CounterEvidence: []model.SourceAnswer{
			{Source: model.Source{Title: "X", URL: "https://x.org"}, Answer: false, Confidence: 0.9},
		},
		SubmittedAt: time.Unix(1700000000, 0).UTC(),
	}

	h, err := ChallengeHash(c)
	require.NoError(t, err)
	c.Hash = h
	assert.NoError(t, VerifyChallenge(c))

	c.Challenger = "mallory"
	assert.ErrorIs(t, VerifyChallenge(c), ErrMismatch)
}

func TestChallengeHash_IgnoresProviderAndOrder(t *testing.T) {
	x := model.SourceAnswer{Source: model.Source{Title: "X", URL: "https://x.org"}, Answer: false, Confidence: 0.9, Provider: "openai", Rank: 0}
	y := model.SourceAnswer{Source: model.Source{Title: "Y", URL: "https://y.org"}, Answer: false, Confidence: 0.8, Provider: "ollama", Rank: 2}
	base := model.RefutationChallenge{
		EvaluationHash: "e",
		Challenger:     "bob",
		Stake:          model.NewAmount(10),
		SubmittedAt:    time.Unix(1700000000, 0).UTC(),
	}

	a := base
	a.CounterEvidence = []model.SourceAnswer{x, y}
	ha, err := ChallengeHash(&a)
	require.NoError(t, err)

	xs, ys := x, y
	xs.Provider, xs.Rank = "static", 5
	ys.Provider, ys.Rank = "", 0
	b := base
	b.CounterEvidence = []model.SourceAnswer{ys, xs}
	hb, err := ChallengeHash(&b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	c := base
	flipped := y
	flipped.Answer = true
	c.CounterEvidence = []model.SourceAnswer{x, flipped}
	hc, err := ChallengeHash(&c)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc, "verdicts are part of the hashed content")
}

func TestVerifyEvaluation(t *testing.T) {
	sources := []model.Source{{Title: "A", URL: "https://a.org"}}
	h, err := EvaluationHash("q", sources, true)
	require.NoError(t, err)

	assert.NoError(t, VerifyEvaluation("q", sources, true, h))
	assert.ErrorIs(t, VerifyEvaluation("q", sources, false, h), ErrMismatch)
}
