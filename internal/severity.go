// Package internal re-exports the classified-error severity vocabulary so
// that leaf packages (robots, fetcher, extractor, ...) can declare their own
// XxxError types without importing pkg/failure directly in every file.
package internal

import "github.com/foofork/riptide/pkg/failure"

type Severity = failure.Severity

const (
	SeverityFatal       = failure.SeverityFatal
	SeverityRecoverable = failure.SeverityRecoverable
)
