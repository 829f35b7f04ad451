package assets

import (
	"fmt"

	"github.com/foofork/riptide/internal"
	"github.com/foofork/riptide/internal/metadata"
)

type AssetsErrorCause string

const (
	ErrCauseImageDownloadFailure  AssetsErrorCause = "failed to download image"
	ErrCauseNetworkFailure        AssetsErrorCause = "network failure during asset fetch"
	ErrCauseAssetTooLarge         AssetsErrorCause = "asset exceeds configured size limit"
	ErrCauseRequest5xx            AssetsErrorCause = "asset origin returned 5xx"
	ErrCauseRequestTooMany        AssetsErrorCause = "asset origin rate limited the request"
	ErrCauseRequestPageForbidden  AssetsErrorCause = "asset origin returned 4xx"
	ErrCauseRedirectLimitExceeded AssetsErrorCause = "asset request redirected unexpectedly"
	ErrCauseReadResponseBodyError AssetsErrorCause = "failed to read asset response body"
	ErrCauseHashError             AssetsErrorCause = "failed to hash asset content"
	ErrCausePathError             AssetsErrorCause = "failed to prepare asset directory"
	ErrCauseWriteFailure          AssetsErrorCause = "failed to write asset to disk"
	ErrCauseDiskFull              AssetsErrorCause = "disk full while writing asset"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

// IsRetryable reports the error's own retryable bit, which retry.Retry
// consults before making another attempt.
func (e *AssetsError) IsRetryable() bool {
	return e.Retryable
}

func (e *AssetsError) Severity() internal.Severity {
	if e.Retryable {
		return internal.SeverityRecoverable
	}
	return internal.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseImageDownloadFailure, ErrCauseNetworkFailure, ErrCauseRequest5xx:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestTooMany:
		return metadata.CauseRetryFailure
	case ErrCauseRequestPageForbidden, ErrCauseRedirectLimitExceeded:
		return metadata.CauseContentInvalid
	case ErrCauseReadResponseBodyError, ErrCauseAssetTooLarge, ErrCauseHashError:
		return metadata.CauseContentInvalid
	case ErrCausePathError, ErrCauseWriteFailure, ErrCauseDiskFull:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
