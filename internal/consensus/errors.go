package consensus

import "errors"

var (
	// ErrInsufficientSources is returned when fewer distinct valid sources
	// than required survive validation and deduplication.
	ErrInsufficientSources = errors.New("insufficient sources")

	// ErrLowConfidence is returned when the aggregate confidence is below the threshold.
	ErrLowConfidence = errors.New("confidence below threshold")

	// ErrInconclusive is returned when the evidence is evenly split.
	ErrInconclusive = errors.New("evidence inconclusive")

	// ErrInvalidParams is returned for out-of-range engine parameters.
	ErrInvalidParams = errors.New("invalid consensus parameters")
)
