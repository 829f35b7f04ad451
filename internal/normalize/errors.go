package normalize

import (
	"fmt"

	"github.com/foofork/riptide/internal"
	"github.com/foofork/riptide/internal/metadata"
)

type NormalizationErrorCause string

const (
	ErrCauseBrokenH1Invariant       NormalizationErrorCause = "broken H1 invariant"
	ErrCauseEmptyContent            NormalizationErrorCause = "empty content"
	ErrCauseOrphanContent           NormalizationErrorCause = "orphan content before H1"
	ErrCauseSkippedHeadingLevels    NormalizationErrorCause = "skipped heading levels"
	ErrCauseEmptySection            NormalizationErrorCause = "empty section"
	ErrCauseBrokenAtomicBlock       NormalizationErrorCause = "broken atomic block"
	ErrCauseTitleExtractionFailed   NormalizationErrorCause = "title extraction failed"
	ErrCauseSectionDerivationFailed NormalizationErrorCause = "section derivation failed"
	ErrCauseHashComputationFailed   NormalizationErrorCause = "hash computation failed"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() internal.Severity {
	if e.Retryable {
		return internal.SeverityRecoverable
	}
	return internal.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBrokenH1Invariant, ErrCauseOrphanContent,
		ErrCauseSkippedHeadingLevels, ErrCauseEmptySection,
		ErrCauseBrokenAtomicBlock, ErrCauseHashComputationFailed:
		return metadata.CauseInvariantViolation
	case ErrCauseEmptyContent, ErrCauseTitleExtractionFailed,
		ErrCauseSectionDerivationFailed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
