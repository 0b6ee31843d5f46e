package consensus

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/veracity/internal/model"
)

// Aggregate reduces surviving answers to a verdict and an overall confidence.
//
// majority_vote picks the answer held by a strict majority of sources and
// reports the agreeing fraction. median and weighted_average pick the answer
// with the larger confidence mass, then reduce per-source support scores: a
// source's confidence when it agrees with the verdict, 1-confidence when it
// dissents. weighted_average weights each score by the source's own confidence.
// Exact splits return ErrInconclusive.
func Aggregate(alg model.Algorithm, answers []model.SourceAnswer) (bool, float64, error) {
	if len(answers) == 0 {
		return false, 0, fmt.Errorf("%w: no sources", ErrInsufficientSources)
	}

	switch alg {
	case model.AlgorithmMajorityVote:
		return majority(answers)
	case model.AlgorithmMedian:
		answer, err := byMass(answers)
		if err != nil {
			return false, 0, err
		}
		return answer, median(supports(answers, answer)), nil
	case model.AlgorithmWeightedAverage:
		answer, err := byMass(answers)
		if err != nil {
			return false, 0, err
		}
		weights := make([]float64, len(answers))
		for i, a := range answers {
			weights[i] = a.Confidence
		}
		return answer, stat.Mean(supports(answers, answer), weights), nil
	default:
		return false, 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, alg)
	}
}

func majority(answers []model.SourceAnswer) (bool, float64, error) {
	yes := 0
	for _, a := range answers {
		if a.Answer {
			yes++
		}
	}
	no := len(answers) - yes
	if yes == no {
		return false, 0, fmt.Errorf("%w: majority vote split %d-%d", ErrInconclusive, yes, no)
	}
	if yes > no {
		return true, float64(yes) / float64(len(answers)), nil
	}
	return false, float64(no) / float64(len(answers)), nil
}

// byMass returns the answer backed by the larger total confidence
func byMass(answers []model.SourceAnswer) (bool, error) {
	var yes, no float64
	for _, a := range answers {
		if a.Answer {
			yes += a.Confidence
		} else {
			no += a.Confidence
		}
	}
	if yes == no {
		return false, fmt.Errorf("%w: equal confidence mass %.4f", ErrInconclusive, yes)
	}
	return yes > no, nil
}

func supports(answers []model.SourceAnswer, verdict bool) []float64 {
	out := make([]float64, len(answers))
	for i, a := range answers {
		if a.Answer == verdict {
			out[i] = a.Confidence
		} else {
			out[i] = 1 - a.Confidence
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
