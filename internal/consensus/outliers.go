package consensus

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/veracity/internal/model"
)

const (
	outlierSigmas = 3.0

	// minSigma floors the deviation scale: a confidence within 0.15 of the
	// others' mean is never rejected.
	minSigma = 0.05
)

// RejectOutliers applies the 3-sigma rule to confidences. Each source is
// compared with the mean and population standard deviation of the other
// sources (leave-one-out).
//
// Filtering needs at least three sources and is skipped entirely when it would
// leave fewer than required survivors. Input order is preserved in both slices.
func RejectOutliers(answers []model.SourceAnswer, required int) (kept, dropped []model.SourceAnswer) {
	n := len(answers)
	if n < 3 {
		return answers, nil
	}

	conf := make([]float64, n)
	for i, a := range answers {
		conf[i] = a.Confidence
	}

	others := make([]float64, 0, n-1)
	for i, a := range answers {
		others = others[:0]
		others = append(others, conf[:i]...)
		others = append(others, conf[i+1:]...)

		mean, std := stat.PopMeanStdDev(others, nil)
		sigma := math.Max(std, minSigma)
		if math.Abs(a.Confidence-mean) > outlierSigmas*sigma {
			dropped = append(dropped, a)
			continue
		}
		kept = append(kept, a)
	}

	if len(kept) < required {
		return answers, nil
	}
	return kept, dropped
}
